package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"pathwatch/internal/pathutil"
	"pathwatch/internal/pattern"
	"pathwatch/internal/watcher"
)

func writeSettings(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	settings := Defaults()
	if settings.Watcher.Strategy != "optimized" || settings.Watcher.CaseComparison != "environment" {
		t.Fatalf("unexpected watcher defaults %+v", settings.Watcher)
	}
	if settings.Log.Level != "info" || settings.Serve.Addr != "127.0.0.1:7420" {
		t.Fatalf("unexpected defaults %+v", settings)
	}
	if settings.Serve.AllowedOrigins != nil || settings.Watches != nil {
		t.Fatalf("expected empty lists, got %+v", settings)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "missing.toml"), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(settings, Defaults()) {
		t.Fatalf("expected defaults, got %+v", settings)
	}
}

func TestLoadTOMLAndYAMLAgree(t *testing.T) {
	tomlPath := writeSettings(t, "pathwatch.toml", `[watcher]
strategy = "non-locking"
case_comparison = "ignore"

[log]
level = "debug"

[[watches]]
pattern = "/srv/app/*.conf"

[[watches]]
pattern = "/srv/data"
kind = "folder"
`)
	yamlPath := writeSettings(t, "pathwatch.yaml", `watcher:
  strategy: non-locking
  case-comparison: ignore
log:
  level: debug
watches:
  - pattern: /srv/app/*.conf
  - pattern: /srv/data
    kind: folder
`)

	fromTOML, err := Load(tomlPath, nil)
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	fromYAML, err := Load(yamlPath, nil)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if !reflect.DeepEqual(fromTOML, fromYAML) {
		t.Fatalf("expected equal settings:\n%+v\n%+v", fromTOML, fromYAML)
	}
	if fromTOML.Serve.Addr != "127.0.0.1:7420" {
		t.Fatalf("expected default addr to survive, got %q", fromTOML.Serve.Addr)
	}
	expected := []WatchEntry{
		{Pattern: "/srv/app/*.conf"},
		{Pattern: "/srv/data", Kind: KindFolder},
	}
	if !reflect.DeepEqual(fromTOML.Watches, expected) {
		t.Fatalf("expected watches %+v, got %+v", expected, fromTOML.Watches)
	}
}

func TestLoadRejectsMalformedFiles(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
	}{
		{name: "toml syntax", file: "a.toml", content: "watcher = ["},
		{name: "yaml syntax", file: "a.yml", content: "watcher: ["},
		{name: "watches not tables", file: "a.toml", content: "watches = [\"/srv\"]\n"},
		{name: "pattern not string", file: "a.toml", content: "[[watches]]\npattern = 3\n"},
		{name: "origins not strings", file: "a.toml", content: "[serve]\nallowed-origins = [1]\n"},
		{name: "unknown extension", file: "a.ini", content: "x=1"},
	}
	for _, testCase := range cases {
		if _, err := Load(writeSettings(t, testCase.file, testCase.content), nil); err == nil {
			t.Fatalf("%s: expected error", testCase.name)
		}
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := writeSettings(t, "pathwatch.toml", "[log]\nlevel = \"debug\"\n")
	overrides := EnvOverrides([]string{
		"PATHWATCH_LOG_LEVEL=error",
		"PATHWATCH_ALLOWED_ORIGINS=http://a.test, http://b.test",
		"PATHWATCH_ADDR=",
		"PATHWATCH_UNKNOWN=1",
		"HOME=/root",
	})
	if len(overrides) != 2 {
		t.Fatalf("expected 2 overrides, got %v", overrides)
	}

	settings, err := Load(path, overrides)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.Log.Level != "error" {
		t.Fatalf("expected env level, got %q", settings.Log.Level)
	}
	if !reflect.DeepEqual(settings.Serve.AllowedOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Fatalf("unexpected origins %v", settings.Serve.AllowedOrigins)
	}
}

func TestMergeOverrides(t *testing.T) {
	merged := MergeOverrides(
		map[string]any{"log.level": "info", "serve.addr": ":1"},
		map[string]any{"log.level": "debug"},
	)
	if merged["log.level"] != "debug" || merged["serve.addr"] != ":1" {
		t.Fatalf("unexpected merge %v", merged)
	}
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.Watches = []WatchEntry{{Pattern: "/srv/*.log"}, {Pattern: "/srv/data", Kind: KindFolder}}
	if err := valid.Validate(pathutil.Unix); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}

	invalid := Defaults()
	invalid.Watcher.Strategy = "fastest"
	invalid.Log.Level = "loud"
	invalid.Watches = []WatchEntry{
		{Pattern: "relative/x"},
		{Pattern: "/srv/*/x"},
		{Pattern: "/srv/x", Kind: "socket"},
		{},
	}
	err := invalid.Validate(pathutil.Unix)
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
	if !errors.Is(err, pattern.ErrInvalidPattern) {
		t.Fatalf("expected pattern error to be wrapped, got %v", err)
	}
	for _, fragment := range []string{"watcher.strategy", "log.level", "watches[0]", "watches[1]", "watches[2].kind", "watches[3].pattern: required"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
}

func TestWatcherOptions(t *testing.T) {
	settings := Defaults()
	settings.Watcher.Strategy = "non-locking"
	settings.Watcher.CaseComparison = "respect"
	options := settings.WatcherOptions()
	if options.Strategy != watcher.StrategyNonLocking || options.CaseComparison != pathutil.RespectCase {
		t.Fatalf("unexpected options %+v", options)
	}
	if (WatchEntry{}).KindOrDefault() != KindFile {
		t.Fatalf("expected file as default kind")
	}
}

func TestSchemaDescribesSettings(t *testing.T) {
	payload, err := SchemaJSON()
	if err != nil {
		t.Fatalf("schema json: %v", err)
	}
	var decoded struct {
		Title                string                    `json:"title"`
		AdditionalProperties *bool                     `json:"additionalProperties"`
		Properties           map[string]map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if decoded.Title != "pathwatch settings" {
		t.Fatalf("unexpected title %q", decoded.Title)
	}
	for _, name := range []string{"watcher", "log", "serve", "watches"} {
		if _, ok := decoded.Properties[name]; !ok {
			t.Fatalf("expected property %q in %s", name, payload)
		}
	}
	if decoded.AdditionalProperties == nil || *decoded.AdditionalProperties {
		t.Fatalf("expected additional properties to be rejected")
	}
}
