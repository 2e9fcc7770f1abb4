package vaultmodel

// JSONSchema is the subset of a JSON Schema document the vaults exchange:
// required fields, the properties map, and the top-level type.
type JSONSchema struct {
	Required   []string               `json:"required"`
	Properties map[string]interface{} `json:"properties"`
	JSONType   string                 `json:"type"`
}

// Schema is a stored schema document for one (provider, service, source,
// schema_type) tuple.
type Schema struct {
	ID              string     `json:"_id"`
	Service         string     `json:"service"`
	Source          string     `json:"source"`
	Provider        string     `json:"provider"`
	SchemaType      string     `json:"schema_type"`
	JSONSchema      JSONSchema `json:"json_schema"`
	SchemaVersionID string     `json:"schema_version_id"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
}

// SchemaData is the payload validated against a Schema's JSONSchema.
type SchemaData struct {
	Service    string                 `json:"service"`
	Source     string                 `json:"source"`
	Provider   string                 `json:"provider"`
	SchemaType string                 `json:"schema_type"`
	Data       map[string]interface{} `json:"data"`
}

// SchemaType enumerates the two stages a document is validated at.
type SchemaType string

const (
	SchemaTypeInput  SchemaType = "input"
	SchemaTypeOutput SchemaType = "output"
)

// ValidationResult is what the Schema Vault's /schema/validate endpoint
// returns.
type ValidationResult struct {
	Valid bool `json:"valid"`
}
