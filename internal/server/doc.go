// Package server provides the HTTP server for the SensorBoard dashboard and API.
//
// This package is internal to SensorBoard and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: JSON endpoints for the live snapshot, rolling log and history
//   - Control: POST endpoints that forward start, stop and reset upstream
//   - Server-Sent Events: Real-time updates at "/api/sse"
//   - Metrics: Prometheus exposition at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the sensorboard library should not need to interact with this
// package directly. The server is started automatically by [sensorboard.Board.Start].
package server
