// Package configvault is a typed REST facade over the Config Vault
// service: the remote store of pipeline Configs this worker reads once at
// startup. Configs are not re-read while the worker runs.
package configvault

import (
	"context"
	"fmt"
	"time"

	"github.com/VeRJiL/crawlerd/internal/httprate"
	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

const configsEndpoint = "/config"

// Client talks to one Config Vault instance.
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

// Create stores a new Config.
func (c *Client) Create(ctx context.Context, data vaultmodel.Config) (vaultmodel.Config, error) {
	var out vaultmodel.Config
	err := c.http.Do(ctx, "POST", configsEndpoint, data, &out)
	return out, err
}

// UpdateConfig updates an existing Config.
func (c *Client) UpdateConfig(ctx context.Context, data vaultmodel.Config) (vaultmodel.Config, error) {
	var out vaultmodel.Config
	err := c.http.Do(ctx, "PUT", configsEndpoint, data, &out)
	return out, err
}

// ListAllConfigs returns every stored Config.
func (c *Client) ListAllConfigs(ctx context.Context) ([]vaultmodel.Config, error) {
	var out []vaultmodel.Config
	err := c.http.Do(ctx, "GET", configsEndpoint, nil, &out)
	return out, err
}

// GetConfigByID returns a single Config.
func (c *Client) GetConfigByID(ctx context.Context, configID string) (vaultmodel.Config, error) {
	var out vaultmodel.Config
	endpoint := fmt.Sprintf("%s/%s", configsEndpoint, configID)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}

// DeleteConfig removes a Config.
func (c *Client) DeleteConfig(ctx context.Context, configID string) error {
	endpoint := fmt.Sprintf("%s/%s", configsEndpoint, configID)
	return c.http.Do(ctx, "DELETE", endpoint, nil, nil)
}

// ListConfigsByServiceAndProvider returns every Config for a
// (provider, service) pair.
func (c *Client) ListConfigsByServiceAndProvider(ctx context.Context, provider, service string) ([]vaultmodel.Config, error) {
	var out []vaultmodel.Config
	endpoint := fmt.Sprintf("%s/provider/%s/service/%s", configsEndpoint, provider, service)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}

// ListConfigsBySourceAndProvider returns every Config for a
// (provider, source) pair.
func (c *Client) ListConfigsBySourceAndProvider(ctx context.Context, provider, source string) ([]vaultmodel.Config, error) {
	var out []vaultmodel.Config
	endpoint := fmt.Sprintf("%s/provider/%s/source/%s", configsEndpoint, provider, source)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}

// ListConfigsByServiceProviderAndActive returns every Config for a
// (provider, service) pair filtered by active status.
func (c *Client) ListConfigsByServiceProviderAndActive(ctx context.Context, provider, service string, active bool) ([]vaultmodel.Config, error) {
	var out []vaultmodel.Config
	endpoint := fmt.Sprintf("%s/provider/%s/service/%s/active/%t", configsEndpoint, provider, service, active)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}

// ListConfigsByServiceSourceAndProvider returns every Config for a
// (provider, service, source) triple.
func (c *Client) ListConfigsByServiceSourceAndProvider(ctx context.Context, provider, service, source string) ([]vaultmodel.Config, error) {
	var out []vaultmodel.Config
	endpoint := fmt.Sprintf("%s/provider/%s/service/%s/source/%s", configsEndpoint, provider, service, source)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}

// ListConfigsByProviderAndDependencies returns every Config that depends on
// the given (service, source) under a provider.
func (c *Client) ListConfigsByProviderAndDependencies(ctx context.Context, provider, service, source string) ([]vaultmodel.Config, error) {
	var out []vaultmodel.Config
	endpoint := fmt.Sprintf("%s/provider/%s/dependencies/service/%s/source/%s", configsEndpoint, provider, service, source)
	err := c.http.Do(ctx, "GET", endpoint, nil, &out)
	return out, err
}
