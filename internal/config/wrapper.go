package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// WrapperSchema is the JSON Schema of a wrapper definition file
const WrapperSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "agent"],
  "additionalProperties": false,
  "properties": {
    "name": {
      "type": "string",
      "minLength": 1,
      "description": "Wrapper name shown at startup"
    },
    "agent": {
      "type": "string",
      "pattern": "^[A-Za-z0-9][A-Za-z0-9_-]*$",
      "description": "Agent activated first"
    },
    "context": {
      "type": "object",
      "description": "Key/value context handed to the wrapped agent",
      "additionalProperties": { "type": "string" }
    }
  }
}`

// WrapperDefinition names the agent a wrapper invocation starts with and the context
// handed to it
type WrapperDefinition struct {
	Name    string            `yaml:"name"`
	Agent   string            `yaml:"agent"`
	Context map[string]string `yaml:"context"`
}

var wrapperSchemaLoader = gojsonschema.NewStringLoader(WrapperSchema)

// LoadWrapper reads and validates a wrapper definition file
func LoadWrapper(path string) (*WrapperDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wrapper file: %w", err)
	}
	return ParseWrapper(data)
}

// ParseWrapper decodes a YAML wrapper definition and validates it against WrapperSchema
func ParseWrapper(data []byte) (*WrapperDefinition, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse wrapper YAML: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("wrapper file is empty")
	}

	result, err := gojsonschema.Validate(wrapperSchemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("wrapper schema validation errors: %s", strings.Join(msgs, "; "))
	}

	var def WrapperDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode wrapper: %w", err)
	}
	return &def, nil
}
