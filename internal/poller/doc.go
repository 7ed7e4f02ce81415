// Package poller runs the live poll loop for SensorBoard.
//
// This package is internal to SensorBoard. On every tick it reads all
// sensors through a [Fetcher], merges the readings into one aligned row and
// appends that row to the rolling log. Failed ticks leave the log untouched.
//
// The main components are:
//
//   - [Scheduler]: fixed-period ticker with skip-if-in-flight and clean stop
//   - [Tick]: outcome of one tick, emitted on [Scheduler.Results]
//   - [Fetcher]: the per-tick read, implemented by the fetch package
//
// Users of the sensorboard library should not need to interact with this
// package directly. Configuration is done through the main sensorboard package.
package poller
