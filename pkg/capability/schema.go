package capability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// documentSchema is the structural contract for the capability document.
// It is deliberately permissive: unknown fields are allowed everywhere
// (the schema is append-only), only the types of known fields are
// enforced.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "schema_version": {"type": "string"},
    "profile": {"type": "string"},
    "modules": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "enabled": {"type": "boolean"},
          "visible": {"type": "boolean"},
          "entry": {"$ref": "#/$defs/decision"},
          "actions": {
            "type": "object",
            "additionalProperties": {"$ref": "#/$defs/decision"}
          }
        }
      }
    },
    "routes": {"type": "object", "additionalProperties": {"type": "string"}},
    "features": {"type": "object", "additionalProperties": {"type": "boolean"}},
    "panels": {"type": "array", "items": {"type": "string"}},
    "warnings": {"type": "array", "items": {"type": "string"}}
  },
  "$defs": {
    "decision": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "reason": {"type": "string"},
        "reason_code": {"type": "string"},
        "permission": {"type": "string"}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource("capability.json", bytes.NewReader([]byte(documentSchema))); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = c.Compile("capability.json")
	})
	return compiledSchema, schemaErr
}

func validateDocument(raw []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("compile capability schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	return nil
}
