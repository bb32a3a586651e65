// Package api exposes the manager over HTTP.
//
//	GET    /pipelines
//	POST   /pipelines                    YAML or JSON definition
//	DELETE /pipelines/:name
//	GET    /pipelines/:name/tasks
//	POST   /pipelines/:name/tasks        {"name", "type", "attributes"}
//	DELETE /pipelines/:name/tasks/:task
//	POST   /pipelines/:name/runs
//	GET    /types
//
// Failures are rendered as {"error": {code, message, retryable, details}}
// with the status of the underlying error.
package api
