// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config log.levels
// These ensure consistent logger names across the codebase

// GetStorageLogger returns a logger for the event store
func GetStorageLogger() zerolog.Logger {
	return GetLogger("storage")
}

// GetPoolLogger returns a logger for the task pool projection
func GetPoolLogger() zerolog.Logger {
	return GetLogger("pool")
}

// GetRecurrenceLogger returns a logger for the recurrence engine
func GetRecurrenceLogger() zerolog.Logger {
	return GetLogger("recurrence")
}

// GetReportLogger returns a logger for report building
func GetReportLogger() zerolog.Logger {
	return GetLogger("report")
}

// GetCLILogger returns a logger for CLI commands
func GetCLILogger() zerolog.Logger {
	return GetLogger("cli")
}
