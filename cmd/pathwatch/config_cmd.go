package main

import (
	"errors"
	"flag"
	"fmt"

	"pathwatch/internal/config"
)

func runConfigSchema(args []string, s streams) int {
	if len(args) > 0 {
		return reportError(s.Stderr, usageError("config schema takes no arguments"))
	}
	payload, err := config.SchemaJSON()
	if err != nil {
		return reportError(s.Stderr, err)
	}
	fmt.Fprintln(s.Stdout, string(payload))
	return exitOK
}

// runConfigValidate exits 1 for invalid settings: here a bad file is the
// answer, not a usage mistake.
func runConfigValidate(args []string, s streams) int {
	fs := flag.NewFlagSet("config validate", flag.ContinueOnError)
	fs.SetOutput(s.Stderr)
	configPath := fs.String("config", "", "settings file (.toml, .yaml)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	settings, err := loadSettings(*configPath, s.Environ, nil)
	if err != nil {
		fmt.Fprintf(s.Stderr, "pathwatch: %v\n", err)
		return exitFailure
	}
	source := *configPath
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(s.Stdout, "%s: ok (%d watches, strategy %s)\n", source, len(settings.Watches), settings.Watcher.Strategy)
	return exitOK
}
