// Package pkg provides shared utilities for the fightkey USB keyboard
// firmware stack.
//
// This package contains common functionality used by both the device
// firmware core and its mock host, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for USB protocol errors and the firmware's
//     own error taxonomy (NotAttached, UnsupportedDescriptor, ...)
//   - Component identifiers for log filtering
//
// Logging and errors are the two ambient concerns with no sensible
// third-party substitute in this corpus; configuration is delegated to
// viper in [github.com/crockeo/fightkey/config], whose tests also use
// testify for assertions (the other test suites use plain testing).
//
// # Logging
//
// The logging subsystem wraps [log/slog] with USB-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentDevice, "device configured", "config", 1)
//
// # Errors
//
// Common USB errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrStall) {
//	    // Handle endpoint stall
//	}
package pkg
