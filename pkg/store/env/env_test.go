package env

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
)

func TestParse(t *testing.T) {
	environ := []string{
		"APP_DB__HOST=localhost",
		"APP_DB__PORT=5432",
		"APP_DEBUG=true",
		"APP_NAME=svc",
		"HOME=/home/user",
		"BROKEN",
		"APP_=ignored",
	}

	tests := []struct {
		name string
		opts Options
		want map[string]any
	}{
		{
			name: "prefix and separator",
			opts: Options{Prefix: "APP_"},
			want: map[string]any{
				"DB":    map[string]any{"HOST": "localhost", "PORT": "5432"},
				"DEBUG": "true",
				"NAME":  "svc",
			},
		},
		{
			name: "lowercase with parsed values",
			opts: Options{Prefix: "APP_", Lowercase: true, ParseValues: true},
			want: map[string]any{
				"db":    map[string]any{"host": "localhost", "port": 5432},
				"debug": true,
				"name":  "svc",
			},
		},
		{
			name: "whitelist",
			opts: Options{Whitelist: []string{"home", "APP_NAME"}},
			want: map[string]any{
				"HOME":     "/home/user",
				"APP_NAME": "svc",
			},
		},
		{
			name: "custom separator",
			opts: Options{Prefix: "APP_", Separator: "_", Lowercase: true},
			want: map[string]any{
				"db":    map[string]any{"host": "localhost", "port": "5432"},
				"debug": "true",
				"name":  "svc",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(environ, tt.opts))
		})
	}
}

func TestParse_NestedReplacesScalar(t *testing.T) {
	got := Parse([]string{"A__B=2", "A=1"}, Options{})
	assert.Equal(t, map[string]any{"A": map[string]any{"B": "2"}}, got)
}

func TestStore_LoadFromProcess(t *testing.T) {
	t.Setenv("STRATA_TEST_SERVER__PORT", "9000")

	s := New("env", Options{Prefix: "STRATA_TEST_", Lowercase: true, ParseValues: true})

	var events int
	s.OnReload(func(store.Event) { events++ })

	r := s.Load(context.Background())
	require.True(t, r.Ready())
	require.NoError(t, r.Err())
	assert.Equal(t, 1, events)

	v, found := s.Lookup(keypath.Parse("server:port"))
	assert.True(t, found)
	assert.Equal(t, 9000, v)
}

func TestStore_ReloadDropsVanishedVariables(t *testing.T) {
	environ := []string{"X_A=1", "X_B=2"}
	s := New("env", Options{Prefix: "X_", Environ: func() []string { return environ }})

	require.NoError(t, s.Load(context.Background()).Err())
	environ = []string{"X_A=1"}
	require.NoError(t, s.Load(context.Background()).Err())

	assert.Equal(t, map[string]any{"A": "1"}, s.Snapshot())
}
