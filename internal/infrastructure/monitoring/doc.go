/*
Package monitoring provides Prometheus metrics for the cronograma service.

# Overview

Collectors cover the HTTP surface, scrape attempts and fetch runs, the
result cache, browser sessions and the resources the page filter blocks.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics)
	// ... run one scrape attempt ...
	timer.Stop("success")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
