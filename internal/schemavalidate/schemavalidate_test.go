package schemavalidate

import (
	"testing"

	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

func TestValidateAcceptsConformingData(t *testing.T) {
	schema := vaultmodel.JSONSchema{
		JSONType: "object",
		Required: []string{"videoId"},
		Properties: map[string]interface{}{
			"videoId": map[string]interface{}{"type": "string"},
		},
	}
	data := map[string]interface{}{"videoId": "abc123"}

	ok, err := Validate(schema, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected data to satisfy schema")
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	schema := vaultmodel.JSONSchema{
		JSONType: "object",
		Required: []string{"videoId"},
	}
	data := map[string]interface{}{"other": "value"}

	ok, err := Validate(schema, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected data missing a required field to fail validation")
	}
}

func TestValidateRejectsWrongPropertyType(t *testing.T) {
	schema := vaultmodel.JSONSchema{
		JSONType: "object",
		Properties: map[string]interface{}{
			"videoId": map[string]interface{}{"type": "string"},
		},
	}
	data := map[string]interface{}{"videoId": 12345}

	ok, err := Validate(schema, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected a non-string videoId to fail validation")
	}
}

func TestValidateErrorsOnMalformedSchema(t *testing.T) {
	schema := vaultmodel.JSONSchema{JSONType: "not-a-real-json-type"}

	if _, err := Validate(schema, map[string]interface{}{}); err == nil {
		t.Fatal("expected an invalid schema document to error")
	}
}
