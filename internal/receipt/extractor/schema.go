package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const extractionSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["confidence"],
	"properties": {
		"merchant_name": {"type": ["string", "null"]},
		"receipt_date": {"type": ["string", "null"], "format": "date"},
		"address": {"type": ["string", "null"]},
		"total_amount": {
			"type": ["number", "string", "null"],
			"minimum": 0,
			"pattern": "^[0-9]+(\\.[0-9]+)?$"
		},
		"currency": {"type": ["string", "null"], "maxLength": 3},
		"confidence": {
			"type": "object",
			"properties": {
				"overall": {"$ref": "#/$defs/confidence"},
				"merchant": {"$ref": "#/$defs/confidence"},
				"date": {"$ref": "#/$defs/confidence"},
				"address": {"$ref": "#/$defs/confidence"},
				"total": {"$ref": "#/$defs/confidence"}
			}
		}
	},
	"$defs": {
		"confidence": {"type": ["number", "null"], "minimum": 0, "maximum": 1}
	}
}`

// responseValidator checks perception responses before they are mapped.
type responseValidator struct {
	schema *jsonschema.Schema
}

func newResponseValidator() (*responseValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource("extraction.json", strings.NewReader(extractionSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &responseValidator{schema: schema}, nil
}

func (v *responseValidator) Validate(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("unmarshal extraction: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("extraction does not match schema: %w", err)
	}
	return nil
}
