// Package http implements the HTTP handlers for the cronograma service:
// the timetable query endpoint, the liveness probe and service info.
package http
