package httpstore

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/codec"
	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
)

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger used for request logging.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHandlerFormat sets the body encoding. Defaults to JSON.
func WithHandlerFormat(f codec.Format) HandlerOption {
	return func(h *Handler) {
		h.format = f
	}
}

// Handler serves a store over HTTP.
type Handler struct {
	store  store.Store
	format codec.Format
	logger *slog.Logger
}

// NewHandler returns a Handler serving s. The request path, with exactly one
// leading slash removed, is parsed with the "/" addressor. Only an empty
// remainder addresses the root, so "/a/" is the path a:"" and "/a//b" is
// a:"":b.
func NewHandler(s store.Store, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:  s,
		format: codec.JSON,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP maps the request method onto the matching store operation.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := requestPath(r)
	ctx := r.Context()
	var result *store.Result

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		result = h.store.Get(ctx, p)
	case http.MethodPut, http.MethodPost:
		value, err := h.readBody(r)
		if err != nil {
			h.fail(w, r, http.StatusBadRequest, err)
			return
		}
		if r.Method == http.MethodPut {
			result = h.store.Set(ctx, p, value)
		} else {
			result = h.store.Merge(ctx, p, value)
		}
	case http.MethodDelete:
		result = h.store.Clear(ctx, p)
	default:
		w.Header().Set("Allow", "GET, HEAD, PUT, POST, DELETE")
		h.fail(w, r, http.StatusMethodNotAllowed, errors.Newf("method %s not allowed", r.Method))
		return
	}

	v, found, err := result.Wait(ctx)
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}

	h.logger.Debug("served", "method", r.Method, "path", p.String(), "found", found)

	if !found {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			h.fail(w, r, http.StatusNotFound, errors.Newf("%s not found", displayPath(p)))
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	data, err := h.format.Encode(v)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", contentType(h.format))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}

func (h *Handler) readBody(r *http.Request) (any, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, errors.Wrap(err, "reading request body")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("request body is empty")
	}
	return h.format.Decode("request body", data)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	http.Error(w, err.Error(), status)
}

func requestPath(r *http.Request) keypath.Path {
	raw := strings.TrimPrefix(r.URL.EscapedPath(), "/")
	if raw == "" {
		return keypath.Root
	}
	return keypath.URL.Parse(raw)
}

func statusFor(err error) int {
	var (
		rootErr   *store.RootTypeError
		parseErr  *store.ParseError
		transport *store.TransportError
		async     *store.AsyncDispatchRequiredError
		unimpl    *store.UnimplementedCapabilityError
	)
	switch {
	case errors.As(err, &rootErr), errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &unimpl):
		return http.StatusNotImplemented
	case errors.As(err, &transport), errors.As(err, &async):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func displayPath(p keypath.Path) string {
	if p.IsRoot() {
		return "/"
	}
	return keypath.URL.Format(p)
}
