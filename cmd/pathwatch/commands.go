package main

import (
	"fmt"
	"io"
	"os"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type command interface {
	Run(args []string) int
}

// streams is what a subcommand may touch besides its arguments.
type streams struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Environ []string
}

type commandDeps struct {
	Stdout            io.Writer
	Stderr            io.Writer
	Environ           func() []string
	RunWatch          func(args []string, s streams) int
	RunServe          func(args []string, s streams) int
	RunConfigSchema   func(args []string, s streams) int
	RunConfigValidate func(args []string, s streams) int
	RunVersion        func(args []string, s streams) int
}

func defaultCommandDeps() commandDeps {
	return commandDeps{
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
		Environ:           os.Environ,
		RunWatch:          runWatch,
		RunServe:          runServe,
		RunConfigSchema:   runConfigSchema,
		RunConfigValidate: runConfigValidate,
		RunVersion:        runVersion,
	}
}

func (deps commandDeps) ioStreams() streams {
	s := streams{Stdout: deps.Stdout, Stderr: deps.Stderr}
	if deps.Environ != nil {
		s.Environ = deps.Environ()
	}
	return s
}

type subcommand struct {
	deps commandDeps
	run  func(args []string, s streams) int
}

func (c subcommand) Run(args []string) int {
	return c.run(args, c.deps.ioStreams())
}

type usageCommand struct {
	deps    commandDeps
	problem string
}

func (c usageCommand) Run(args []string) int {
	if c.problem == "" {
		fmt.Fprint(c.deps.Stdout, usageText)
		return exitOK
	}
	fmt.Fprintf(c.deps.Stderr, "pathwatch: %s\n\n%s", c.problem, usageText)
	return exitUsage
}

const usageText = `usage: pathwatch <command> [flags]

commands:
  watch [-config f] [-folder] [-format text|json] [-log-level l] [-strategy s] PATTERN...
  serve [-config f] [-addr a] [-log-level l]
  config schema
  config validate [-config f]
  version [-json]
`

func resolveCommand(args []string, deps commandDeps) (command, []string) {
	if len(args) == 0 {
		return usageCommand{deps: deps, problem: "missing command"}, nil
	}
	switch args[0] {
	case "watch":
		return subcommand{deps: deps, run: deps.RunWatch}, args[1:]
	case "serve":
		return subcommand{deps: deps, run: deps.RunServe}, args[1:]
	case "version", "--version", "-version":
		return subcommand{deps: deps, run: deps.RunVersion}, args[1:]
	case "help", "-h", "-help", "--help":
		return usageCommand{deps: deps}, nil
	case "config":
		if len(args) > 1 && args[1] == "schema" {
			return subcommand{deps: deps, run: deps.RunConfigSchema}, args[2:]
		}
		if len(args) > 1 && args[1] == "validate" {
			return subcommand{deps: deps, run: deps.RunConfigValidate}, args[2:]
		}
		return usageCommand{deps: deps, problem: "config needs schema or validate"}, nil
	}
	return usageCommand{deps: deps, problem: fmt.Sprintf("unknown command %q", args[0])}, nil
}
