// Package config provides 12-factor configuration management for the
// cronograma backend.
//
// Configuration is loaded from environment variables with sensible defaults.
// A YAML file can overlay the environment, and CLI flags override both.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, base URL, shutdown)
//   - Portal: upstream portal URL, response marker, form defaults
//   - Browser: launch profile, executable, identity, viewport
//   - Scrape: per-step timeouts, retry and backoff, circuit breaker
//   - Cache: result cache TTL
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg, err := config.LoadFile(os.Getenv("CONFIG_FILE"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT, STATIC_DIR
//   - PORTAL_URL, PORTAL_RESPONSE_MARKER, PORTAL_SEARCH_SELECTOR
//   - BROWSER_PROFILE, BROWSER_EXEC_PATH, BROWSER_REUSE, RENDER
//   - SCRAPE_NAV_TIMEOUT, SCRAPE_MAX_RETRIES, SCRAPE_BACKOFF_MODE
//   - CACHE_TTL, LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED, RATE_LIMIT_IDLE_TTL
package config
