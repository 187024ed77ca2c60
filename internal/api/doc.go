// Package api hosts the HTTP trigger service for operators and schedulers that
// prefer calling an endpoint over exec'ing the CLI. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to execute one pipeline run synchronously.
package api
