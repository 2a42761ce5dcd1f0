package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRunConfigSchemaPrintsJSON(t *testing.T) {
	var stdout bytes.Buffer
	if code := runConfigSchema(nil, streams{Stdout: &stdout, Stderr: &bytes.Buffer{}}); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var schema map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &schema); err != nil {
		t.Fatalf("expected json schema: %v", err)
	}
	if schema["title"] != "pathwatch settings" {
		t.Fatalf("unexpected title %v", schema["title"])
	}

	var stderr bytes.Buffer
	if code := runConfigSchema([]string{"extra"}, streams{Stdout: &stdout, Stderr: &stderr}); code != exitUsage {
		t.Fatalf("expected usage exit, got %d", code)
	}
}

func TestRunConfigValidate(t *testing.T) {
	good := writeConfig(t, "good.yaml", "watches:\n  - pattern: "+t.TempDir()+"\n    kind: folder\n")
	bad := writeConfig(t, "bad.toml", "[watcher]\nstrategy = \"fastest\"\n")

	cases := []struct {
		name   string
		args   []string
		code   int
		stdout string
		stderr string
	}{
		{name: "defaults", args: nil, code: exitOK, stdout: "defaults: ok (0 watches, strategy optimized)"},
		{name: "good file", args: []string{"-config", good}, code: exitOK, stdout: "ok (1 watches"},
		{name: "bad file", args: []string{"-config", bad}, code: exitFailure, stderr: "watcher.strategy"},
		{name: "bad flag", args: []string{"-nope"}, code: exitUsage},
	}
	for _, testCase := range cases {
		var stdout, stderr bytes.Buffer
		code := runConfigValidate(testCase.args, streams{Stdout: &stdout, Stderr: &stderr})
		if code != testCase.code {
			t.Fatalf("%s: expected %d, got %d (%s)", testCase.name, testCase.code, code, stderr.String())
		}
		if !strings.Contains(stdout.String(), testCase.stdout) || !strings.Contains(stderr.String(), testCase.stderr) {
			t.Fatalf("%s: unexpected output %q / %q", testCase.name, stdout.String(), stderr.String())
		}
	}
}

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	if code := runVersion(nil, streams{Stdout: &stdout, Stderr: &bytes.Buffer{}}); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "pathwatch ") {
		t.Fatalf("unexpected version line %q", stdout.String())
	}

	stdout.Reset()
	if code := runVersion([]string{"-json"}, streams{Stdout: &stdout, Stderr: &bytes.Buffer{}}); code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var info map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil || info["version"] == "" {
		t.Fatalf("expected version json, got %s (%v)", stdout.String(), err)
	}
}
