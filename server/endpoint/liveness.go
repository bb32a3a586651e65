package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Liveness answers as long as the process can serve HTTP. uptime counts from
// the moment the handler is built, which is server construction.
func Liveness(serviceName string) gin.HandlerFunc {
	started := time.Now()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "alive",
			"service": serviceName,
			"uptime":  time.Since(started).Round(time.Second).String(),
		})
	}
}
