// Package config loads pathwatch settings from embedded defaults, an optional
// TOML or YAML file and PATHWATCH_* environment overrides.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pathwatch/internal/config/keys"
)

//go:embed defaults.toml
var defaultsPayload []byte

type Settings struct {
	Watcher WatcherSettings `json:"watcher" jsonschema:"description=Watch graph behavior"`
	Log     LogSettings     `json:"log"`
	Serve   ServeSettings   `json:"serve"`
	Watches []WatchEntry    `json:"watches,omitempty" jsonschema:"description=Patterns watched at startup"`
}

type WatcherSettings struct {
	Strategy       string `json:"strategy,omitempty" jsonschema:"enum=optimized,enum=non-locking"`
	CaseComparison string `json:"case-comparison,omitempty" jsonschema:"enum=environment,enum=respect,enum=ignore"`
}

type LogSettings struct {
	Level string `json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warning,enum=error"`
}

type ServeSettings struct {
	Addr           string   `json:"addr,omitempty"`
	AllowedOrigins []string `json:"allowed-origins,omitempty" jsonschema:"description=Origins accepted for websocket upgrades; empty allows same-origin only"`
}

type WatchEntry struct {
	Pattern string `json:"pattern" jsonschema:"required"`
	Kind    string `json:"kind,omitempty" jsonschema:"enum=file,enum=folder"`
}

const (
	KindFile   = "file"
	KindFolder = "folder"
)

// Defaults returns the embedded default settings.
func Defaults() Settings {
	store, err := keys.DecodeTOML(defaultsPayload)
	if err != nil {
		panic(fmt.Sprintf("embedded defaults: %v", err))
	}
	settings, err := fromValues(store.Flat(), Settings{})
	if err != nil {
		panic(fmt.Sprintf("embedded defaults: %v", err))
	}
	return settings
}

// Load reads path on top of the defaults, then applies overrides keyed by
// dotted setting names. A missing file leaves the defaults in place; the
// extension picks the format.
func Load(path string, overrides map[string]any) (Settings, error) {
	values := map[string]any{}
	if strings.TrimSpace(path) != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Settings{}, fmt.Errorf("read settings: %w", err)
			}
		} else {
			store, err := decodeFile(path, payload)
			if err != nil {
				return Settings{}, fmt.Errorf("%s: %w", path, err)
			}
			values = store.Flat()
		}
	}

	for key, value := range overrides {
		normalized := keys.NormalizeKey(key)
		if normalized == "" {
			continue
		}
		values[normalized] = value
	}
	return fromValues(values, Defaults())
}

func decodeFile(path string, payload []byte) (keys.Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return keys.DecodeYAML(payload)
	case ".toml", "":
		return keys.DecodeTOML(payload)
	default:
		return keys.Store{}, fmt.Errorf("unsupported settings format %q", filepath.Ext(path))
	}
}

func fromValues(values map[string]any, settings Settings) (Settings, error) {
	store := keys.FromRaw(values)

	if value, ok := store.GetString("watcher.strategy"); ok {
		settings.Watcher.Strategy = strings.TrimSpace(value)
	}
	if value, ok := store.GetString("watcher.case-comparison"); ok {
		settings.Watcher.CaseComparison = strings.TrimSpace(value)
	}
	if value, ok := store.GetString("log.level"); ok {
		settings.Log.Level = strings.TrimSpace(value)
	}
	if value, ok := store.GetString("serve.addr"); ok {
		settings.Serve.Addr = strings.TrimSpace(value)
	}
	if _, present := values["serve.allowed-origins"]; present {
		origins, ok := store.GetStrings("serve.allowed-origins")
		if !ok {
			return Settings{}, fmt.Errorf("serve.allowed-origins must be a list of strings")
		}
		if len(origins) == 0 {
			origins = nil
		}
		settings.Serve.AllowedOrigins = origins
	}
	if _, present := values["watches"]; present {
		tables, ok := store.GetTables("watches")
		if !ok {
			return Settings{}, fmt.Errorf("watches must be a list of tables")
		}
		settings.Watches = nil
		for index, table := range tables {
			entry := WatchEntry{}
			pattern, ok := table["pattern"].(string)
			if !ok {
				return Settings{}, fmt.Errorf("watches[%d].pattern must be a string", index)
			}
			entry.Pattern = strings.TrimSpace(pattern)
			if kind, ok := table["kind"]; ok {
				text, ok := kind.(string)
				if !ok {
					return Settings{}, fmt.Errorf("watches[%d].kind must be a string", index)
				}
				entry.Kind = strings.TrimSpace(text)
			}
			settings.Watches = append(settings.Watches, entry)
		}
	}
	return settings, nil
}
