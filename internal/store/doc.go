// Package store holds the live sensor snapshot and publishes its updates.
//
// This package is internal to SensorBoard. It keeps the latest successful
// readings together with the error indicator of the most recent tick, and
// implements a publish-subscribe pattern for real-time updates to connected
// dashboard clients.
//
// The main components are:
//
//   - [Store]: Interface defining snapshot and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Status]: The snapshot served by the REST API and SSE stream
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the system).
//
// Users of the sensorboard library should not need to interact with this
// package directly. Storage is managed internally by SensorBoard.
package store
