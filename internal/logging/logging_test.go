package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format   Format
		wantJSON bool
	}{
		{FormatJSON, true},
		{FormatText, false},
		{Format("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: slog.LevelInfo, Format: tt.format, Output: &buf})
			logger.Info("store loaded", "store", "user", "keys", 42, "sync", true)

			out := buf.String()
			var parsed map[string]any
			isJSON := json.Unmarshal([]byte(out), &parsed) == nil
			if isJSON != tt.wantJSON {
				t.Fatalf("JSON output = %v, want %v: %s", isJSON, tt.wantJSON, out)
			}
			if tt.wantJSON {
				if parsed["msg"] != "store loaded" || parsed["store"] != "user" {
					t.Errorf("unexpected JSON record: %v", parsed)
				}
				return
			}
			for _, want := range []string{"INFO", "store loaded", "store=user", "keys=42", "sync=true"} {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q: %s", want, out)
				}
			}
		})
	}
}

func TestNew_NilOutput(t *testing.T) {
	if New(Config{Level: slog.LevelInfo}) == nil {
		t.Fatal("New with nil Output returned nil")
	}
	if Default() == nil {
		t.Fatal("Default returned nil")
	}
	NewDiscard().Error("dropped", "error", "boom")
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		name        string
		configLevel slog.Level
		logLevel    slog.Level
		want        bool
	}{
		{"info at info", slog.LevelInfo, slog.LevelInfo, true},
		{"debug at info", slog.LevelInfo, slog.LevelDebug, false},
		{"error at info", slog.LevelInfo, slog.LevelError, true},
		{"info at warn", slog.LevelWarn, slog.LevelInfo, false},
		{"trace at debug", slog.LevelDebug, LevelTrace, false},
		{"trace at trace", LevelTrace, LevelTrace, true},
		{"error above error", slog.LevelError + 4, slog.LevelError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: tt.configLevel, Format: FormatText, Output: &buf})
			logger.Log(t.Context(), tt.logLevel, "probe")

			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("output = %v, want %v (%q)", got, tt.want, buf.String())
			}
		})
	}
}

func TestForTest(t *testing.T) {
	logger := ForTest(t)
	if !logger.Enabled(t.Context(), LevelTrace) {
		t.Error("ForTest logger should capture trace records")
	}
	logger.Log(t.Context(), LevelTrace, "trace from test logger", "test", t.Name())

	tw := &testWriter{t: t}
	for _, in := range []string{"with newline\n", "without", ""} {
		n, err := tw.Write([]byte(in))
		if err != nil || n != len(in) {
			t.Errorf("Write(%q) = %d, %v", in, n, err)
		}
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		want      slog.Level
	}{
		{-1, slog.LevelWarn},
		{0, slog.LevelWarn},
		{1, slog.LevelInfo},
		{2, slog.LevelDebug},
		{3, LevelTrace},
		{4, LevelTrace},
	}

	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity); got != tt.want {
			t.Errorf("LevelFromVerbosity(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
	if LevelTrace >= slog.LevelDebug {
		t.Error("LevelTrace should be lower than LevelDebug")
	}
}

func TestNew_FileReceivesJSON(t *testing.T) {
	var term, file bytes.Buffer
	logger := New(Config{
		Level:  slog.LevelInfo,
		Format: FormatText,
		Output: &term,
		File:   &file,
	})

	logger.Info("loaded", "store", "user")

	if !strings.Contains(term.String(), "store=user") {
		t.Errorf("terminal output missing attribute: %q", term.String())
	}
	var parsed map[string]any
	if err := json.Unmarshal(file.Bytes(), &parsed); err != nil {
		t.Fatalf("file output is not JSON: %v\n%s", err, file.String())
	}
	if parsed["store"] != "user" {
		t.Errorf("file output store = %v, want user", parsed["store"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{" warning ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %q, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %q, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestLevelName(t *testing.T) {
	if got := LevelName(LevelTrace); got != "TRACE" {
		t.Errorf("LevelName(LevelTrace) = %q", got)
	}
	if got := LevelName(slog.LevelWarn); got != "WARN" {
		t.Errorf("LevelName(Warn) = %q", got)
	}
}

func TestContext(t *testing.T) {
	if FromContext(t.Context()) == nil {
		t.Fatal("FromContext without a logger should not be nil")
	}

	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf})
	ctx := NewContext(t.Context(), logger)

	FromContext(ctx).Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("expected message through context logger, got %q", buf.String())
	}
}
