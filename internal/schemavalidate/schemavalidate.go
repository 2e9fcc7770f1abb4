// Package schemavalidate checks a document against a vault-fetched JSON
// Schema entirely locally — no network round trip. The Schema Vault's
// POST /schema/validate endpoint exists for a job handler's output; an
// input already carries its own json_schema and can be checked against it
// directly once fetched.
package schemavalidate

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

// Validate reports whether data satisfies schema. Unset keywords (no type,
// no required fields, no properties map) place no constraint on data.
func Validate(schema vaultmodel.JSONSchema, data map[string]interface{}) (bool, error) {
	doc := map[string]interface{}{}
	if schema.JSONType != "" {
		doc["type"] = schema.JSONType
	}
	if len(schema.Required) > 0 {
		doc["required"] = schema.Required
	}
	if schema.Properties != nil {
		doc["properties"] = schema.Properties
	}
	schemaJSON, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("schemavalidate: encoding schema: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return false, fmt.Errorf("schemavalidate: validating: %w", err)
	}
	return result.Valid(), nil
}
