//go:build !go1.22

package main

import "log/slog"

// slog.SetLogLoggerLevel does not exist before Go 1.22; on older toolchains
// the bridge from the log package keeps its fixed default level.
func setLogLoggerLevel(_ slog.Level) {}
