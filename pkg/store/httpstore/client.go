// Package httpstore exposes configuration over HTTP.
//
// The wire mapping is the same in both directions: GET returns the encoded
// sub-tree at the URL path, PUT replaces it, POST merges into it and DELETE
// clears it. URL path segments follow the "/" addressor, so a segment that
// contains a slash is sent percent-encoded.
//
// Store is the client side, an asynchronous store.Store that talks to such
// an endpoint. NewHandler is the server side and serves any store.Store.
package httpstore

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/codec"
	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
)

// ErrMissingURL is returned when no endpoint is configured.
var ErrMissingURL = errors.New("missing required option `url`")

// ErrEmptyKeyPath is returned for the single-segment path "". Its URL would be
// the endpoint root, so it cannot be told apart from the whole tree.
var ErrEmptyKeyPath = errors.New(`the key "" has no distinct URL`)

// DefaultTimeout bounds each request when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options configures an HTTP store.
type Options struct {
	URL     string            `mapstructure:"url"`
	Format  string            `mapstructure:"format"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Headers map[string]string `mapstructure:"headers"`

	Client *http.Client `mapstructure:"-"`
	Logger *slog.Logger `mapstructure:"-"`
}

// Store is an asynchronous client store.
type Store struct {
	store.Notifier

	name    string
	base    *url.URL
	format  codec.Format
	headers map[string]string
	client  *http.Client
	logger  *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New returns a client for the endpoint at opts.URL.
func New(name string, opts Options) (*Store, error) {
	if opts.URL == "" {
		return nil, ErrMissingURL
	}
	base, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing url %q", opts.URL)
	}

	formatName := opts.Format
	if formatName == "" {
		formatName = codec.JSON.Name
	}
	format, err := codec.Lookup(formatName)
	if err != nil {
		return nil, err
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		name:    name,
		base:    base,
		format:  format,
		headers: opts.Headers,
		client:  client,
		logger:  logger,
	}, nil
}

// Name returns the store's registration name.
func (s *Store) Name() string { return s.name }

// Sync reports false: every operation is a network round trip.
func (s *Store) Sync() bool { return false }

// URL returns the endpoint address of p. Each segment is escaped and joined
// with "/", so empty segments show up as doubled or trailing slashes.
func (s *Store) URL(p keypath.Path) string {
	u := *s.base
	if len(p) == 0 {
		return u.String()
	}

	escaped := make([]string, len(p))
	for i, seg := range p {
		escaped[i] = url.PathEscape(seg)
	}
	u.RawPath = u.EscapedPath() + "/" + strings.Join(escaped, "/")
	u.Path = u.Path + "/" + strings.Join(p, "/")
	return u.String()
}

// Get fetches the sub-tree at p. A 404 resolves to not found.
func (s *Store) Get(ctx context.Context, p keypath.Path) *store.Result {
	return s.do(ctx, store.OpGet, http.MethodGet, p, nil, false)
}

// Set PUTs value at p.
func (s *Store) Set(ctx context.Context, p keypath.Path, value any) *store.Result {
	return s.do(ctx, store.OpSet, http.MethodPut, p, value, true)
}

// Merge POSTs value to p.
func (s *Store) Merge(ctx context.Context, p keypath.Path, value any) *store.Result {
	return s.do(ctx, store.OpMerge, http.MethodPost, p, value, true)
}

// Clear sends DELETE for p.
func (s *Store) Clear(ctx context.Context, p keypath.Path) *store.Result {
	return s.do(ctx, store.OpClear, http.MethodDelete, p, nil, false)
}

// Load fetches the whole tree and notifies reload subscribers with it.
func (s *Store) Load(ctx context.Context) *store.Result {
	r := s.do(ctx, store.OpLoad, http.MethodGet, keypath.Root, nil, false)
	return store.Chain(r, func(v any, found bool, err error) *store.Result {
		if err != nil {
			return store.Rejected(err)
		}
		if !found {
			v = map[string]any{}
		}
		s.Emit(store.Event{Store: s.name, Tree: v})
		return store.Resolved(v, true)
	})
}

// Save has nothing to flush since every write is sent immediately.
func (s *Store) Save(context.Context) *store.Result {
	return store.Resolved(nil, false)
}

// Poll reloads the store every interval until ctx is done. Failed reloads
// are logged and retried on the next tick.
func (s *Store) Poll(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.Load(ctx).Wait(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("poll failed", "store", s.name, "error", err)
			}
		}
	}
}

func (s *Store) do(ctx context.Context, op store.Op, method string, p keypath.Path, value any, hasBody bool) *store.Result {
	if len(p) == 1 && p[0] == "" {
		return store.Rejected(errors.Wrapf(ErrEmptyKeyPath, "%s %s", method, s.name))
	}
	return store.Go(func() (any, bool, error) {
		var body io.Reader
		if hasBody {
			data, err := s.format.Encode(value)
			if err != nil {
				return nil, false, err
			}
			body = bytes.NewReader(data)
		}

		target := s.URL(p)
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, false, errors.Wrapf(err, "building %s request", method)
		}
		req.Header.Set("Accept", contentType(s.format))
		if hasBody {
			req.Header.Set("Content-Type", contentType(s.format))
		}
		for k, v := range s.headers {
			req.Header.Set(k, v)
		}

		s.logger.Debug("http request", "store", s.name, "method", method, "url", target)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, false, &store.TransportError{Store: s.name, Op: op, Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return nil, false, &store.TransportError{Store: s.name, Op: op, Status: resp.StatusCode, Err: err}
		}

		switch {
		case resp.StatusCode == http.StatusNotFound && op == store.OpGet,
			resp.StatusCode == http.StatusNotFound && op == store.OpLoad,
			resp.StatusCode == http.StatusNoContent:
			return nil, false, nil
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, false, &store.TransportError{
				Store:  s.name,
				Op:     op,
				Status: resp.StatusCode,
				Err:    errors.Newf("%s %s: %s", method, target, strings.TrimSpace(string(data))),
			}
		}

		v, err := s.format.Decode(target, data)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	})
}

const maxBody = 4 << 20

func contentType(f codec.Format) string {
	switch f.Name {
	case "json":
		return "application/json"
	case "yaml":
		return "application/yaml"
	case "toml":
		return "application/toml"
	default:
		return "text/plain"
	}
}
