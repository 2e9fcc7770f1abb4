// Package configloader fetches every Config for this worker's
// (service, provider) at startup and keeps them indexed by ID, refusing a
// second Config that reuses an ID already registered.
package configloader

import (
	"context"
	"fmt"

	"github.com/VeRJiL/crawlerd/internal/vaultmodel"
)

// Fetcher is the upstream this loader pulls Configs from — satisfied by
// configvault.Client.
type Fetcher interface {
	ListConfigsByServiceAndProvider(ctx context.Context, provider, service string) ([]vaultmodel.Config, error)
}

// DuplicateConfigError is returned when two Configs for the same service
// claim the same ID — this is treated as a fatal misconfiguration rather
// than a silent overwrite.
type DuplicateConfigError struct {
	ConfigID string
}

func (e *DuplicateConfigError) Error() string {
	return fmt.Sprintf("configloader: duplicate config id %q", e.ConfigID)
}

// Loader holds the set of Configs currently registered for this worker's
// service.
type Loader struct {
	fetcher Fetcher
	configs map[string]vaultmodel.Config
}

// New builds an empty Loader.
func New(fetcher Fetcher) *Loader {
	return &Loader{fetcher: fetcher, configs: make(map[string]vaultmodel.Config)}
}

// FetchConfigsForService loads every Config for (service, provider) from
// the Config Vault and registers each by ID, failing on the first
// duplicate ID it encounters.
func (l *Loader) FetchConfigsForService(ctx context.Context, service, provider string) (map[string]vaultmodel.Config, error) {
	configs, err := l.fetcher.ListConfigsByServiceAndProvider(ctx, provider, service)
	if err != nil {
		return nil, fmt.Errorf("configloader: fetching configs for service %s, provider %s: %w", service, provider, err)
	}

	for _, cfg := range configs {
		if err := l.registerConfig(cfg); err != nil {
			return nil, err
		}
	}
	return l.configs, nil
}

func (l *Loader) registerConfig(cfg vaultmodel.Config) error {
	if _, exists := l.configs[cfg.ConfigID]; exists {
		return &DuplicateConfigError{ConfigID: cfg.ConfigID}
	}
	l.configs[cfg.ConfigID] = cfg
	return nil
}

// Configs returns every Config registered so far.
func (l *Loader) Configs() []vaultmodel.Config {
	out := make([]vaultmodel.Config, 0, len(l.configs))
	for _, cfg := range l.configs {
		out = append(out, cfg)
	}
	return out
}
