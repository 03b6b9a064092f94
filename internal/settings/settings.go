// Package settings resolves application settings from an ordered list of
// providers: database-stored values first, environment variables as the
// fallback.
package settings

import (
	"context"
	"fmt"
	"os"
)

// Provider supplies one layer of settings. The boolean reports whether
// the key exists in this layer.
type Provider interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// Chain queries providers in order and returns the first hit.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Get resolves a key through the chain. A provider error stops the chain;
// a miss falls through to the next provider.
func (c *Chain) Get(ctx context.Context, key string) (string, bool, error) {
	for _, p := range c.providers {
		value, ok, err := p.Get(ctx, key)
		if err != nil {
			return "", false, fmt.Errorf("settings provider failed for %q: %w", key, err)
		}
		if ok {
			return value, true, nil
		}
	}
	return "", false, nil
}

// EnvProvider reads settings from environment variables.
type EnvProvider struct{}

func (EnvProvider) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := os.LookupEnv(key)
	return value, ok, nil
}

// SettingStore is the storage interface for DB-backed settings.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// DBProvider reads settings from the setting table.
type DBProvider struct {
	store SettingStore
}

func NewDBProvider(store SettingStore) *DBProvider {
	return &DBProvider{store: store}
}

func (p *DBProvider) Get(ctx context.Context, key string) (string, bool, error) {
	return p.store.GetSetting(ctx, key)
}
