// Package schemavault is a typed REST facade over the Schema Vault
// service: the remote store of JSON Schema documents this worker fetches
// to validate a ProcessOrder's input and a job handler's output.
package schemavault

import (
	"context"
	"fmt"
	"time"

	"github.com/VeRJiL/crawlerd/internal/httprate"
	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

const schemasEndpoint = "/schema"

// Client talks to one Schema Vault instance.
type Client struct {
	http *httprate.Client
}

// New builds a Client rate-limited to maxCalls requests per period against
// baseURL.
func New(baseURL string, maxCalls int, period, timeout time.Duration, retries int) *Client {
	return &Client{
		http: httprate.New(baseURL, maxCalls, period,
			httprate.WithTimeout(timeout),
			httprate.WithRetries(retries),
		),
	}
}

// Create stores a new Schema.
func (c *Client) Create(ctx context.Context, data vaultmodel.Schema) (vaultmodel.Schema, error) {
	var out vaultmodel.Schema
	err := c.http.Do(ctx, "POST", schemasEndpoint, data, &out)
	return out, err
}

// UpdateSchema updates an existing Schema.
func (c *Client) UpdateSchema(ctx context.Context, data vaultmodel.Schema) (vaultmodel.Schema, error) {
	var out vaultmodel.Schema
	err := c.http.Do(ctx, "PUT", schemasEndpoint, data, &out)
	return out, err
}

// ListAllSchemas returns every stored Schema.
func (c *Client) ListAllSchemas(ctx context.Context) ([]vaultmodel.Schema, error) {
	var out []vaultmodel.Schema
	err := c.http.Do(ctx, "GET", schemasEndpoint, nil, &out)
	return out, err
}

// GetSchemaByID returns a single Schema.
func (c *Client) GetSchemaByID(ctx context.Context, schemaID string) (vaultmodel.Schema, error) {
	var out vaultmodel.Schema
	endpoint := fmt.Sprintf("%s/%s", schemasEndpoint, schemaID)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}

// DeleteSchema removes a Schema.
func (c *Client) DeleteSchema(ctx context.Context, schemaID string) error {
	endpoint := fmt.Sprintf("%s/%s", schemasEndpoint, schemaID)
	return c.http.Do(ctx, "DELETE", endpoint, nil, nil)
}

// ListSchemasByServiceAndProvider returns every Schema for a
// (provider, service) pair.
func (c *Client) ListSchemasByServiceAndProvider(ctx context.Context, provider, service string) ([]vaultmodel.Schema, error) {
	var out []vaultmodel.Schema
	endpoint := fmt.Sprintf("%s/provider/%s/service/%s", schemasEndpoint, provider, service)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}

// ListSchemasBySourceAndProvider returns every Schema for a
// (provider, source) pair.
func (c *Client) ListSchemasBySourceAndProvider(ctx context.Context, provider, source string) ([]vaultmodel.Schema, error) {
	var out []vaultmodel.Schema
	endpoint := fmt.Sprintf("%s/provider/%s/source/%s", schemasEndpoint, provider, source)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}

// ListSchemasByServiceSourceAndProvider returns every Schema for a
// (provider, service, source) triple.
func (c *Client) ListSchemasByServiceSourceAndProvider(ctx context.Context, provider, service, source string) ([]vaultmodel.Schema, error) {
	var out []vaultmodel.Schema
	endpoint := fmt.Sprintf("%s/provider/%s/service/%s/source/%s", schemasEndpoint, provider, service, source)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}

// ListSchemasByServiceSourceProviderAndSchemaType returns the single Schema
// for a (provider, service, source, schema_type) tuple — this is the lookup
// the Event Controller performs for both input and output validation.
func (c *Client) ListSchemasByServiceSourceProviderAndSchemaType(ctx context.Context, provider, service, source string, schemaType vaultmodel.SchemaType) (vaultmodel.Schema, error) {
	var out vaultmodel.Schema
	endpoint := fmt.Sprintf("%s/provider/%s/service/%s/source/%s/schema-type/%s", schemasEndpoint, provider, service, source, schemaType)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}

// ValidateSchema submits data for validation against its declared schema
// and reports whether it passed.
func (c *Client) ValidateSchema(ctx context.Context, data vaultmodel.SchemaData) (bool, error) {
	var out vaultmodel.ValidationResult
	endpoint := schemasEndpoint + "/validate"
	if err := c.http.Do(ctx, "POST", endpoint, data, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}
