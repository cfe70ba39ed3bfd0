// Package main is the entry point for the cronograma backend.
//
// The server drives a headless Chrome against the schedule portal, fills
// its search form and returns the JSON the portal answers with. Results
// are cached for five minutes per query.
//
// Endpoints:
//   - POST /cronograma: query by programa, sede and recurso (or jornada)
//   - GET /health: liveness probe
//   - GET /metrics: Prometheus metrics
//
// Configuration:
//   - Environment variables, optionally loaded from .env
//   - YAML file via -config or CONFIG_FILE
//   - CLI flags (override both)
//
// Usage:
//
//	PORTAL_URL=https://portal.example/cronograma ./server -port 3000
//
//	# Development mode (colored logs)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
