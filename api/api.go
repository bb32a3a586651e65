package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/runemaster/dag"
	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/logger"
	"github.com/kbukum/runemaster/manager"
	"github.com/kbukum/runemaster/server"
)

// Handler serves the pipeline API over a manager.
type Handler struct {
	manager *manager.Manager
	log     *logger.Logger
}

// New creates a Handler.
func New(m *manager.Manager, log *logger.Logger) *Handler {
	return &Handler{manager: m, log: log.WithComponent("api")}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/pipelines", h.listPipelines)
	r.POST("/pipelines", h.applyPipeline)
	r.DELETE("/pipelines/:name", h.removePipeline)
	r.GET("/pipelines/:name/tasks", h.listTasks)
	r.POST("/pipelines/:name/tasks", h.addTask)
	r.DELETE("/pipelines/:name/tasks/:task", h.removeTask)
	r.POST("/pipelines/:name/runs", h.runPipeline)
	r.GET("/types", h.listTypes)
}

// AddTaskRequest is the body of POST /pipelines/:name/tasks.
type AddTaskRequest struct {
	Name       string            `json:"name" binding:"required"`
	Type       string            `json:"type" binding:"required"`
	Attributes map[string]string `json:"attributes"`
}

func (h *Handler) listPipelines(c *gin.Context) {
	out, err := h.manager.ListPipelines(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, out)
}

// applyPipeline accepts a YAML or JSON definition.
func (h *Handler) applyPipeline(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	def, err := dag.ParseDefinition(body)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	p, err := h.manager.Apply(c.Request.Context(), def)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, NewPipelineView(p))
}

func (h *Handler) removePipeline(c *gin.Context) {
	if err := h.manager.RemovePipeline(c.Request.Context(), c.Param("name")); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

func (h *Handler) listTasks(c *gin.Context) {
	out, err := h.manager.ListTasks(c.Request.Context(), c.Param("name"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, out)
}

func (h *Handler) addTask(c *gin.Context) {
	var req AddTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	p, err := h.manager.AddTask(c.Request.Context(), c.Param("name"), req.Name, req.Type, req.Attributes)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, NewPipelineView(p))
}

func (h *Handler) removeTask(c *gin.Context) {
	p, err := h.manager.RemoveTask(c.Request.Context(), c.Param("name"), c.Param("task"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, NewPipelineView(p))
}

func (h *Handler) runPipeline(c *gin.Context) {
	res, err := h.manager.RunPipeline(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.log.WithError(err).Warn("run request failed", logger.Fields(logger.FieldPipeline, c.Param("name")))
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, res)
}

func (h *Handler) listTypes(c *gin.Context) {
	server.RespondOK(c, h.manager.ListTypes())
}
