package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"

	"pathwatch/internal/version"
)

func runVersion(args []string, s streams) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(s.Stderr)
	asJSON := fs.Bool("json", false, "print build information as JSON")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	info := version.Get()
	if *asJSON {
		encoder := json.NewEncoder(s.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(info); err != nil {
			return reportError(s.Stderr, err)
		}
		return exitOK
	}
	fmt.Fprintln(s.Stdout, info.String())
	return exitOK
}
