// Package httpclient is the HTTP client remote task sources fetch through.
// Failures are classified so only transient ones (timeouts, connection
// errors, 429 and 5xx) are retried.
//
//	client, err := httpclient.New(httpclient.Config{
//	    Timeout: 30 * time.Second,
//	    Retry:   httpclient.DefaultRetryConfig(),
//	})
//	resp, err := client.Get(ctx, "https://example.com/data.csv")
package httpclient
