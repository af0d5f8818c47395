package config

import (
	"fmt"
)

// Flags carries command-line overrides. Nil pointers mean the flag was not
// given; boolean flags can only switch a setting on.
type Flags struct {
	Threads       *int
	Port          *int
	Heartbeat     *int
	DryRun        bool
	Verbose       bool
	NoWarnThreads bool
}

// ApplyFlags overlays command-line values on a loaded configuration.
//
// Invalid port and thread values are copied as given so that Validate
// rejects them. A heartbeat below -1 is ignored and the configured interval
// is kept; the returned warnings say so. They are returned rather than logged
// because the logger is configured from the result.
//
// Call Validate afterwards.
func ApplyFlags(cfg *Config, f Flags) []string {
	var warnings []string

	if f.Threads != nil {
		cfg.Server.Threads = *f.Threads
	}
	if f.Port != nil {
		cfg.Server.Port = *f.Port
	}
	if f.Heartbeat != nil {
		if *f.Heartbeat < -1 {
			warnings = append(warnings, fmt.Sprintf("invalid argument for --hbtime, using %d", cfg.Server.HeartbeatInterval))
		} else {
			cfg.Server.HeartbeatInterval = *f.Heartbeat
		}
	}
	if f.DryRun {
		cfg.Server.DryRun = true
	}
	if f.Verbose {
		cfg.Logging.Level = "DEBUG"
	}
	if f.NoWarnThreads {
		cfg.Server.NoWarnThreads = true
	}

	return warnings
}
