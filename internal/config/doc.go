// Package config loads, normalizes, and validates framecast configuration.
//
// Configuration lives in a TOML file. Every path field is expanded (~ and
// relative forms) during Load so the rest of the codebase only ever sees
// absolute paths.
package config
