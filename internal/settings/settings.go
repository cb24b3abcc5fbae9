// Package settings resolves the active model-provider configuration.
//
// The persisted "ai_config" value is re-read on every Resolve so that an
// administrator's change takes effect on the next adjudication without a
// restart. Storage problems never fail a resolve; they fall back to the
// process defaults.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manthanabc/EDAI-5/internal/model"
	"github.com/manthanabc/EDAI-5/internal/storage"
)

// Key is the settings key holding the persisted provider configuration.
const Key = "ai_config"

// ErrInvalidConfig is returned by Save when required fields are missing.
var ErrInvalidConfig = errors.New("settings: provider and apiKey are required")

// Store is the subset of storage.Store the resolver needs.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Resolver overlays persisted settings on process defaults.
type Resolver struct {
	store    Store
	defaults model.ProviderConfig
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store Store, defaults model.ProviderConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, defaults: defaults.Clone(), logger: logger}
}

// Resolve returns the configuration for one adjudication. A missing
// credential yields an empty APIKey, not an error.
func (r *Resolver) Resolve(ctx context.Context) model.ProviderConfig {
	stored, err := r.Stored(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return r.defaults.Clone()
	case err != nil:
		r.logger.Warn("settings: persisted provider config unavailable, using defaults", "error", err)
		return r.defaults.Clone()
	}
	return r.defaults.Clone().Merge(stored)
}

// Stored returns the persisted configuration as saved. It returns an error
// wrapping storage.ErrNotFound when nothing has been saved.
func (r *Resolver) Stored(ctx context.Context) (model.ProviderConfig, error) {
	raw, err := r.store.GetSetting(ctx, Key)
	if err != nil {
		return model.ProviderConfig{}, err
	}
	var cfg model.ProviderConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return model.ProviderConfig{}, fmt.Errorf("settings: decode %s: %w", Key, err)
	}
	return cfg, nil
}

// Save validates and persists cfg, replacing any previous value.
func (r *Resolver) Save(ctx context.Context, cfg model.ProviderConfig) error {
	cfg.Provider = strings.TrimSpace(cfg.Provider)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Provider == "" || cfg.APIKey == "" {
		return ErrInvalidConfig
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := r.store.PutSetting(ctx, Key, string(raw)); err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	r.logger.Info("settings: provider config saved", "provider", cfg.Provider, "backend_key_length", len(cfg.APIKey))
	return nil
}
