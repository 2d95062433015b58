// Package api hosts the HTTP server, middleware, and REST handlers for the search
// service. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/search?q=...&k=... for hybrid retrieval.
//   - GET /v1/articles/stats for store and index document counts.
package api
