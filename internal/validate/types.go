// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import "github.com/rs/zerolog"

// ErrInvalidLogLevel is returned by ParseLogLevel.
var ErrInvalidLogLevel = Error{
	Field:   "logging.level",
	Message: "invalid log level (must be: trace, debug, info, warn, error)",
}

// ParseLogLevel maps a configured level name onto the logger's level.
func ParseLogLevel(s string) (zerolog.Level, error) {
	switch s {
	case "trace", "debug", "info", "warn", "error":
		return zerolog.ParseLevel(s)
	}
	return zerolog.NoLevel, ErrInvalidLogLevel
}
