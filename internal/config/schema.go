package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema describes the settings file in JSON Schema form.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := reflector.Reflect(Settings{})
	if s.Version == "" {
		s.Version = jsonschema.Version
	}
	s.Title = "pathwatch settings"
	return s
}

// SchemaJSON renders Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
