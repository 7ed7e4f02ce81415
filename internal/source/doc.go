// Package source reads sensor data from the upstream HTTP API.
//
// This package is internal to SensorBoard. It wraps the upstream's
// black-box JSON endpoints and reports failures with typed errors that keep
// infrastructure failure apart from legitimate null readings.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeout and size limits
//   - [HTTPReader]: historical records per sensor and the shared live snapshot
//   - [Controller]: start/stop/reset triggers for the upstream simulation
//   - [SourceUnavailableError], [MalformedResponseError]: per-sensor failures
//
// A sensor reporting null is an absent reading, never an error.
package source
