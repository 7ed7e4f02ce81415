// Package dashboard provides the embedded web UI assets for SensorBoard.
//
// The page subscribes to /api/sse and renders the live sensor readings, the
// rolling log, and the start/stop/reset controls. It is compiled into the
// binary so the board ships as a single file.
package dashboard

import "embed"

// Assets holds assets/index.html, served at "/" with its {{.Title}}
// placeholder replaced.
//
//go:embed assets/*
var Assets embed.FS
