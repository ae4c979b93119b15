// Package jobs persists the mapping from evaluation category to the external
// crowdsourcing job that collects judgments for it, and answers the reverse
// lookup needed when a result arrives.
package jobs

import (
	"context"
	"fmt"

	"melaknowma/internal/store"
	"melaknowma/internal/types"
)

// configKey is the hash holding the category -> external job id mapping.
const configKey = "crowd:configuration"

// Config reads and writes the job configuration through the shared store, so
// every process sees the same mapping and reconfiguration takes effect
// without restarts.
type Config struct {
	store store.Store
}

// New creates a Config over the given store.
func New(s store.Store) *Config {
	return &Config{store: s}
}

// Configure overwrites the job id for each given category. Partial maps are
// fine; untouched categories keep their previous job ids. Each category maps
// to at most one job id: reconfiguration overwrites, it never merges.
func (c *Config) Configure(ctx context.Context, mapping map[types.Category]string) error {
	for category, jobID := range mapping {
		if !category.IsValid() {
			return fmt.Errorf("unknown category %q", category)
		}
		if err := c.store.WriteField(ctx, configKey, string(category), jobID); err != nil {
			return fmt.Errorf("configuring %s: %w", category, err)
		}
	}
	return nil
}

// Snapshot returns the current category -> job id mapping. Categories never
// configured are absent.
func (c *Config) Snapshot(ctx context.Context) (map[types.Category]string, error) {
	fields, err := c.store.ReadAll(ctx, configKey)
	if err != nil {
		return nil, fmt.Errorf("reading job configuration: %w", err)
	}
	mapping := make(map[types.Category]string)
	for _, category := range types.Categories {
		if jobID, ok := fields[string(category)]; ok && jobID != "" {
			mapping[category] = jobID
		}
	}
	return mapping, nil
}

// ResolveCategory finds the category whose configured job id matches. A miss
// returns ok=false with no error: the caller drops the payload without
// creating partial state. Linear scan; the mapping has one entry per
// required category, and the contract is only "match by job id, none found
// means none".
func (c *Config) ResolveCategory(ctx context.Context, jobID string) (types.Category, bool, error) {
	if jobID == "" {
		return "", false, nil
	}
	mapping, err := c.Snapshot(ctx)
	if err != nil {
		return "", false, err
	}
	for _, category := range types.Categories {
		if mapping[category] == jobID {
			return category, true, nil
		}
	}
	return "", false, nil
}
