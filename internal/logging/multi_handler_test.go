package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("disk full")
}

func TestMultiHandler_LevelsPerHandler(t *testing.T) {
	var warn, debug bytes.Buffer
	h := NewMultiHandler(
		NewHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h).With("store", "file")

	if !h.Enabled(t.Context(), slog.LevelDebug) {
		t.Fatal("debug should be enabled by the second handler")
	}

	logger.Debug("reading")
	logger.Warn("slow")

	if strings.Contains(warn.String(), "reading") {
		t.Errorf("warn handler received a debug record: %q", warn.String())
	}
	if !strings.Contains(warn.String(), "store=file") {
		t.Errorf("warn handler lost attributes: %q", warn.String())
	}
	if strings.Count(debug.String(), "\n") != 2 {
		t.Errorf("debug handler should receive both records: %q", debug.String())
	}
}

func TestMultiHandler_JoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(
		failingHandler{slog.NewTextHandler(&buf, nil)},
		NewHandler(&buf, nil),
	)

	err := slog.New(h).Handler().Handle(t.Context(), slog.NewRecord(time.Time{}, slog.LevelInfo, "msg", 0))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected joined error, got %v", err)
	}
	if !strings.Contains(buf.String(), "msg") {
		t.Error("a failing handler should not stop the others")
	}
}
