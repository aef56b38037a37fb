// Package api exposes the analytics service over HTTP.
//
// # Endpoints
//
//	GET    /api/v1/analytics/users/{id}                  - User analytics report
//	POST   /api/v1/analytics/users/{id}/refresh          - Recompute user snapshot
//	GET    /api/v1/analytics/creators/{id}               - Creator analytics report
//	POST   /api/v1/analytics/creators/{id}/refresh       - Recompute creator snapshot
//	GET    /api/v1/analytics/creators/{id}/forecast      - Revenue forecast (?months=N)
//	GET    /api/v1/analytics/creators/{id}/benchmarks    - Peer benchmark comparison
//	GET    /api/v1/analytics/creators/{id}/subscribers   - Subscriber insights
//	POST   /api/v1/analytics/sessions                    - Track a session (202)
//	GET    /health/live, /health/ready                   - Health probes
//	GET    /metrics                                      - Prometheus metrics
//
// # Usage
//
//	server := api.NewServer(service,
//		api.WithLogger(logger),
//		api.WithMetrics(metrics, registry),
//		api.WithHealthChecker(health),
//	)
//	http.ListenAndServe(":8080", server)
//
// Errors are returned as {"error": "...", "request_id": "..."} with the
// status chosen by httputil.StatusFor.
package api
