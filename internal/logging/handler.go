package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Handler writes compact single-line records for terminals, colorized when
// the writer supports it. Attribute values whose key or content looks like
// a credential are masked.
type Handler struct {
	opts   slog.HandlerOptions
	out    io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	prefix string

	palette *palette
}

type palette struct {
	time   *color.Color
	key    *color.Color
	levels map[slog.Level]*color.Color
}

func newPalette() *palette {
	return &palette{
		time: color.New(color.FgHiBlack),
		key:  color.New(color.FgCyan),
		levels: map[slog.Level]*color.Color{
			LevelTrace:      color.New(color.FgHiBlack),
			slog.LevelDebug: color.New(color.FgMagenta),
			slog.LevelInfo:  color.New(color.FgGreen),
			slog.LevelWarn:  color.New(color.FgYellow),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		},
	}
}

// NewHandler returns a Handler writing to out.
func NewHandler(out io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	h := &Handler{
		opts: *opts,
		out:  out,
		mu:   &sync.Mutex{},
	}
	if SupportsColor(out) {
		h.palette = newPalette()
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !r.Time.IsZero() {
		b.WriteString(h.paint(h.timeColor(), r.Time.Format(time.Kitchen)))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s %s", h.paint(h.levelColor(r.Level), LevelName(r.Level)), r.Message)

	for _, a := range h.attrs {
		h.appendAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		group := prefix
		if a.Key != "" {
			group += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, group, ga)
		}
		return
	}

	value := a.Value.Any()
	if err, ok := value.(error); ok {
		value = err.Error()
	}
	if s, ok := value.(string); ok {
		value = Redact(a.Key, s)
		if str := value.(string); strings.ContainsAny(str, " \t\n\"") {
			value = fmt.Sprintf("%q", str)
		}
	} else if IsSecretKey(a.Key) {
		value = Mask(fmt.Sprint(value))
	}

	fmt.Fprintf(b, " %s=%v", h.paint(h.keyColor(), prefix+a.Key), value)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

// WithGroup qualifies subsequent attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *Handler) paint(c *color.Color, s string) string {
	if c == nil {
		return s
	}
	return c.Sprint(s)
}

func (h *Handler) timeColor() *color.Color {
	if h.palette == nil {
		return nil
	}
	return h.palette.time
}

func (h *Handler) keyColor() *color.Color {
	if h.palette == nil {
		return nil
	}
	return h.palette.key
}

func (h *Handler) levelColor(level slog.Level) *color.Color {
	if h.palette == nil {
		return nil
	}
	switch {
	case level >= slog.LevelError:
		return h.palette.levels[slog.LevelError]
	case level >= slog.LevelWarn:
		return h.palette.levels[slog.LevelWarn]
	case level >= slog.LevelInfo:
		return h.palette.levels[slog.LevelInfo]
	case level >= slog.LevelDebug:
		return h.palette.levels[slog.LevelDebug]
	default:
		return h.palette.levels[LevelTrace]
	}
}
