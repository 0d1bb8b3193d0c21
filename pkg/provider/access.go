package provider

import (
	"context"

	"github.com/thoreinstein/strata/pkg/store"
)

// Get returns the merged value at key. A key is a string parsed with the
// provider's addressor, a keypath.Path or []string of segments, or nil for
// the root.
func (p *Provider) Get(ctx context.Context, key any) (any, bool, error) {
	path, err := p.path(key)
	if err != nil {
		return nil, false, err
	}
	return p.agg.GetSync(ctx, path)
}

// Set writes value at key in every store and returns the merged result.
func (p *Provider) Set(ctx context.Context, key any, value any) (any, error) {
	path, err := p.path(key)
	if err != nil {
		return nil, err
	}
	v, _, err := p.agg.SetSync(ctx, path, value)
	return v, err
}

// Merge deep-merges value at key in every store.
func (p *Provider) Merge(ctx context.Context, key any, value any) (any, error) {
	path, err := p.path(key)
	if err != nil {
		return nil, err
	}
	v, _, err := p.agg.MergeSync(ctx, path, value)
	return v, err
}

// Clear removes key from every store.
func (p *Provider) Clear(ctx context.Context, key any) (any, error) {
	path, err := p.path(key)
	if err != nil {
		return nil, err
	}
	v, _, err := p.agg.ClearSync(ctx, path)
	return v, err
}

// Reset empties every writable store.
func (p *Provider) Reset(ctx context.Context) error {
	_, _, err := p.agg.ResetSync(ctx)
	return err
}

// Load reloads every store and returns the merged tree.
func (p *Provider) Load(ctx context.Context) (any, error) {
	v, _, err := p.agg.LoadSync(ctx)
	return v, err
}

// Save persists every store.
func (p *Provider) Save(ctx context.Context) error {
	_, _, err := p.agg.SaveSync(ctx)
	return err
}

// GetAsync is Get for registries holding asynchronous stores.
func (p *Provider) GetAsync(ctx context.Context, key any) *store.Result {
	path, err := p.path(key)
	if err != nil {
		return store.Rejected(err)
	}
	return p.agg.Get(ctx, path)
}

// SetAsync is Set for registries holding asynchronous stores.
func (p *Provider) SetAsync(ctx context.Context, key any, value any) *store.Result {
	path, err := p.path(key)
	if err != nil {
		return store.Rejected(err)
	}
	return p.agg.Set(ctx, path, value)
}

// MergeAsync is Merge for registries holding asynchronous stores.
func (p *Provider) MergeAsync(ctx context.Context, key any, value any) *store.Result {
	path, err := p.path(key)
	if err != nil {
		return store.Rejected(err)
	}
	return p.agg.Merge(ctx, path, value)
}

// ClearAsync is Clear for registries holding asynchronous stores.
func (p *Provider) ClearAsync(ctx context.Context, key any) *store.Result {
	path, err := p.path(key)
	if err != nil {
		return store.Rejected(err)
	}
	return p.agg.Clear(ctx, path)
}

// ResetAsync is Reset for registries holding asynchronous stores.
func (p *Provider) ResetAsync(ctx context.Context) *store.Result {
	return p.agg.Reset(ctx)
}

// LoadAsync is Load for registries holding asynchronous stores.
func (p *Provider) LoadAsync(ctx context.Context) *store.Result {
	return p.agg.Load(ctx)
}

// SaveAsync is Save for registries holding asynchronous stores.
func (p *Provider) SaveAsync(ctx context.Context) *store.Result {
	return p.agg.Save(ctx)
}
