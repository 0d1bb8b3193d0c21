package provider

import (
	"context"

	"github.com/thoreinstein/strata/pkg/aggregate"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/store/argv"
	"github.com/thoreinstein/strata/pkg/store/dir"
	"github.com/thoreinstein/strata/pkg/store/env"
	"github.com/thoreinstein/strata/pkg/store/etcd"
	"github.com/thoreinstein/strata/pkg/store/file"
	"github.com/thoreinstein/strata/pkg/store/httpstore"
)

// Names used by the helpers that register a single well-known store.
const (
	DefaultsName  = "defaults"
	OverridesName = "overrides"
	EnvName       = "env"
	ArgvName      = "argv"
)

// Literal registers a writable in-memory store seeded with values.
func (p *Provider) Literal(ctx context.Context, name string, values map[string]any) *store.Result {
	return p.agg.Add(ctx, store.NewMemory(name, store.WithRoot(values)))
}

// Defaults registers values as read-only, lowest-precedence configuration.
// Calling it again replaces the previous defaults.
func (p *Provider) Defaults(ctx context.Context, values map[string]any) *store.Result {
	return p.agg.Add(ctx, store.NewMemory(DefaultsName, store.WithRoot(values)),
		aggregate.WithReadOnly(), aggregate.WithTier(aggregate.TierDefaults))
}

// Overrides registers values as read-only, highest-precedence configuration.
// Calling it again replaces the previous overrides.
func (p *Provider) Overrides(ctx context.Context, values map[string]any) *store.Result {
	return p.agg.Add(ctx, store.NewMemory(OverridesName, store.WithRoot(values)),
		aggregate.WithReadOnly(), aggregate.WithTier(aggregate.TierOverrides))
}

// File registers a cached file store. Edits stay in memory until Save.
func (p *Provider) File(ctx context.Context, name string, opts file.Options) *store.Result {
	s, err := file.New(name, opts)
	if err != nil {
		return store.Rejected(err)
	}
	return p.agg.Add(ctx, store.NewCached(s))
}

// Dir registers a directory store.
func (p *Provider) Dir(ctx context.Context, name string, opts dir.Options) *store.Result {
	s, err := dir.New(name, opts)
	if err != nil {
		return store.Rejected(err)
	}
	return p.agg.Add(ctx, s)
}

// HTTP registers a cached HTTP store.
func (p *Provider) HTTP(ctx context.Context, name string, opts httpstore.Options) *store.Result {
	if opts.Logger == nil {
		opts.Logger = p.logger
	}
	s, err := httpstore.New(name, opts)
	if err != nil {
		return store.Rejected(err)
	}
	return p.agg.Add(ctx, store.NewCached(s))
}

// Etcd registers an etcd store.
func (p *Provider) Etcd(ctx context.Context, name string, opts etcd.Options) *store.Result {
	if opts.Logger == nil {
		opts.Logger = p.logger
	}
	return p.agg.Add(ctx, etcd.New(name, opts))
}

// Env registers the process environment as read-only configuration.
func (p *Provider) Env(ctx context.Context, opts env.Options) *store.Result {
	return p.agg.Add(ctx, env.New(EnvName, opts), aggregate.WithReadOnly())
}

// Argv registers command-line arguments as read-only configuration.
func (p *Provider) Argv(ctx context.Context, opts argv.Options) *store.Result {
	if opts.Addressor.Delimiter == 0 {
		opts.Addressor = p.addr
	}
	return p.agg.Add(ctx, argv.New(ArgvName, opts), aggregate.WithReadOnly())
}
