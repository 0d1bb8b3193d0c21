// Package provider is the caller-facing configuration facade.
//
// A Provider owns an aggregate of stores built from declarative Specs by a
// map of engines, and resolves string keys through its addressor:
//
//	p := provider.New()
//	p.Env(ctx, env.Options{Prefix: "APP_", Lowercase: true})
//	p.File(ctx, "user", file.Options{File: "config.yaml"})
//	p.Defaults(ctx, map[string]any{"port": 8080})
//
//	port, _, err := p.Get(ctx, "port")
//
// The synchronous methods refuse to run when a registered store cannot
// complete the operation immediately; the Async variants always work.
package provider

import (
	"context"
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/aggregate"
	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
)

// DefaultName names the aggregate when WithName is not given.
const DefaultName = "strata"

// ErrUnknownType is returned for a Spec whose Type has no engine.
var ErrUnknownType = errors.New("unknown store type")

// Spec declares a store to build and how to register it.
type Spec struct {
	Type     string `mapstructure:"type" yaml:"type"`
	ReadOnly bool   `mapstructure:"readonly" yaml:"readonly,omitempty"`
	Tier     string `mapstructure:"tier" yaml:"tier,omitempty"`

	// Cached wraps the store in a synchronous in-memory mirror.
	Cached bool `mapstructure:"cached" yaml:"cached,omitempty"`

	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// Option configures a Provider.
type Option func(*Provider)

// WithEngines replaces the default engines.
func WithEngines(engines Engines) Option {
	return func(p *Provider) {
		p.engines = engines
	}
}

// WithAddressor sets the addressor used to parse string keys.
func WithAddressor(a keypath.Addressor) Option {
	return func(p *Provider) {
		p.addr = a
	}
}

// WithLogger sets the logger for the provider and its aggregate.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithName names the underlying aggregate.
func WithName(name string) Option {
	return func(p *Provider) {
		p.name = name
	}
}

// Provider resolves configuration from an ordered set of stores.
type Provider struct {
	name    string
	agg     *aggregate.Aggregate
	engines Engines
	addr    keypath.Addressor
	logger  *slog.Logger
}

// New returns an empty Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		name:   DefaultName,
		addr:   keypath.Default,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.engines == nil {
		p.engines = DefaultEngines(Deps{Logger: p.logger})
	}
	p.agg = aggregate.New(p.name, aggregate.WithLogger(p.logger))
	return p
}

// Aggregate returns the underlying aggregate store.
func (p *Provider) Aggregate() *aggregate.Aggregate { return p.agg }

// Addressor returns the addressor used for string keys.
func (p *Provider) Addressor() keypath.Addressor { return p.addr }

// Build constructs the store described by spec without registering it.
func (p *Provider) Build(name string, spec Spec) (store.Store, error) {
	engine, ok := p.engines[spec.Type]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q (known: %v)", spec.Type, p.engines.Types())
	}

	opts := spec.Options
	if opts == nil {
		opts = map[string]any{}
	}
	s, err := engine(name, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s store %q", spec.Type, name)
	}
	if spec.Cached {
		s = store.NewCached(s)
	}
	return s, nil
}

// Add builds spec, registers it under name at the front of its tier and
// loads it. An existing entry with the same name is replaced.
func (p *Provider) Add(ctx context.Context, name string, spec Spec) *store.Result {
	tier, err := aggregate.ParseTier(spec.Tier)
	if err != nil {
		return store.Rejected(err)
	}
	s, err := p.Build(name, spec)
	if err != nil {
		return store.Rejected(err)
	}

	opts := []aggregate.AddOption{aggregate.WithName(name), aggregate.WithTier(tier)}
	if spec.ReadOnly {
		opts = append(opts, aggregate.WithReadOnly())
	}

	p.logger.Debug("adding store", "name", name, "type", spec.Type, "cached", spec.Cached)
	return p.agg.Add(ctx, s, opts...)
}

// Use is Add; it exists to make replacement explicit at call sites.
func (p *Provider) Use(ctx context.Context, name string, spec Spec) *store.Result {
	return p.Add(ctx, name, spec)
}

// AddStore registers an already constructed store and loads it.
func (p *Provider) AddStore(ctx context.Context, s store.Store, opts ...aggregate.AddOption) *store.Result {
	return p.agg.Add(ctx, s, opts...)
}

// Remove unregisters the named store and closes it when it holds
// resources. It reports whether the store was registered.
func (p *Provider) Remove(name string) bool {
	s, ok := p.agg.Lookup(name)
	if !ok {
		return false
	}
	p.agg.Remove(name)
	_ = closeStore(s, p.logger)
	return true
}

// Stores returns the registered entries, highest precedence first.
func (p *Provider) Stores() []aggregate.Entry {
	return p.agg.Entries()
}

// Store returns the registered store named name.
func (p *Provider) Store(name string) (store.Store, bool) {
	return p.agg.Lookup(name)
}

// OnReload subscribes fn to reloads of any registered store.
func (p *Provider) OnReload(fn func(store.Event)) (cancel func()) {
	return p.agg.OnReload(fn)
}

// Close releases every registered store that holds resources.
func (p *Provider) Close() error {
	var errs []error
	for _, e := range p.agg.Entries() {
		if err := closeStore(e.Store, p.logger); err != nil {
			errs = append(errs, errors.Wrapf(err, "closing %s", e.Name))
		}
	}
	return errors.Join(errs...)
}

func closeStore(s store.Store, logger *slog.Logger) error {
	c, ok := store.As[io.Closer](s)
	if !ok {
		return nil
	}
	err := c.Close()
	if err != nil {
		logger.Warn("closing store failed", "store", s.Name(), "error", err)
	}
	return err
}

func (p *Provider) path(key any) (keypath.Path, error) {
	return p.addr.Resolve(key)
}
