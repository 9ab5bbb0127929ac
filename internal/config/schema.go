package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// buildConfigSchema returns the closed configuration schema as a generic map.
// Unknown top-level sections and unknown keys inside a section are rejected
// so typos fail loudly at startup instead of silently disabling rules.
func buildConfigSchema() map[string]any {
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	fieldPattern := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"patterns":        stringList,
			"required":        map[string]any{"type": "boolean"},
			"last_match_wins": map[string]any{"type": "boolean"},
		},
		"required": []string{"patterns"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"field_patterns": map[string]any{
				"type":                 "object",
				"additionalProperties": fieldPattern,
			},
			"table_settings": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"vertical_strategy":   map[string]any{"type": "string"},
					"horizontal_strategy": map[string]any{"type": "string"},
				},
			},
			"line_item_rules": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"header_contains": stringList,
					"column_aliases": map[string]any{
						"type":                 "object",
						"additionalProperties": stringList,
					},
					"min_columns":            map[string]any{"type": "integer", "minimum": 1},
					"text_fallback_patterns": stringList,
				},
			},
			"normalization": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"currency_default":   map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
					"date_input_layouts": stringList,
				},
			},
			"validation": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"money_tolerance":            map[string]any{"type": "number", "minimum": 0},
					"money_error_tolerance":      map[string]any{"type": "number", "minimum": 0},
					"relative_tolerance":         map[string]any{"type": "number", "minimum": 0},
					"required_fields":            stringList,
					"check_row_arithmetic":       map[string]any{"type": "boolean"},
					"check_currency_consistency": map[string]any{"type": "boolean"},
				},
			},
			"ocr": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"min_native_text_chars": map[string]any{"type": "integer", "minimum": 0},
					"dpi":                   map[string]any{"type": "integer", "minimum": 72},
					"page_timeout_seconds":  map[string]any{"type": "integer", "minimum": 1},
				},
			},
		},
	}
}

// validateSchema checks a raw YAML document against the configuration schema.
func validateSchema(rawYAML []byte) error {
	var doc any
	if err := yaml.Unmarshal(rawYAML, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil
	}

	b, err := json.Marshal(buildConfigSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	// Round-trip through JSON so the instance uses the types the validator
	// expects regardless of what the YAML decoder produced.
	jb, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var instance any
	if err := json.Unmarshal(jb, &instance); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}
