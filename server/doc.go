// Package server hosts the runemaster HTTP API: a gin engine on a ServeMux,
// served over HTTP/1.1 and h2c, with lifecycle managed through the component
// registry.
//
// Middleware (server/middleware) is applied at the handler level so it also
// covers anything mounted with Handle:
//
//   - Recovery: panic recovery rendered as INTERNAL_ERROR
//   - RequestID: X-Request-Id generation and propagation
//   - BodySizeLimit: request body cap
//   - RequestLogger: one structured line per request
//
// Endpoints (server/endpoint): /health aggregates component health, /alive
// is a liveness probe and /version reports build information.
package server
