package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/provider"
	"github.com/thoreinstein/strata/pkg/store"
)

func TestExitError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ExitError
		want string
	}{
		{"with underlying error", NewExitError(ErrNotFound, ExitNotFound), "key not found"},
		{"with wrapped error", NewExitError(fmt.Errorf("loading config: %w", ErrInvalidConfig), ExitUser), "loading config: invalid configuration"},
		{"nil underlying error", NewExitError(nil, ExitUser), "exit code 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("ExitError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	err := NewUserError(fmt.Errorf("db: %w", ErrInvalidValue), "")
	if !errors.Is(err, ErrInvalidValue) {
		t.Error("errors.Is should see through ExitError")
	}
	if errors.Is(NewExitError(nil, ExitUser), ErrNotFound) {
		t.Error("nil underlying error should match nothing")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantCode       int
		wantSuggestion bool
	}{
		{"not found", fmt.Errorf("get db: %w", ErrNotFound), ExitNotFound, false},
		{"invalid key", fmt.Errorf("%w: empty segment", keypath.ErrInvalidKey), ExitUser, true},
		{"unknown type", fmt.Errorf("%w: carrier-pigeon", provider.ErrUnknownType), ExitUser, true},
		{"root type", &store.RootTypeError{Store: "user", Op: store.OpSet, Value: 1}, ExitUser, true},
		{"parse", &store.ParseError{Source: "app.yaml", Format: "yaml", Err: errors.New("bad indent")}, ExitUser, true},
		{"transport", fmt.Errorf("load: %w", &store.TransportError{Store: "remote", Op: store.OpLoad, Status: 503}), ExitSystem, true},
		{"async", &store.AsyncDispatchRequiredError{Op: store.OpSave, Stores: []string{"conf"}}, ExitSystem, false},
		{"unimplemented", &store.UnimplementedCapabilityError{Store: "ro", Op: store.OpClear}, ExitUser, true},
		{"invalid value", ErrInvalidValue, ExitUser, false},
		{"other", errors.New("boom"), ExitSystem, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Classify().Code = %d, want %d", got.Code, tt.wantCode)
			}
			if (got.Suggestion != "") != tt.wantSuggestion {
				t.Errorf("Classify().Suggestion = %q, want suggestion: %v", got.Suggestion, tt.wantSuggestion)
			}
			if !errors.Is(got, tt.err) {
				t.Error("Classify should keep the original error in the chain")
			}
		})
	}
}

func TestClassify_KeepsExitError(t *testing.T) {
	orig := NewSystemError(errors.New("disk"), "free space")
	wrapped := fmt.Errorf("save: %w", orig)
	if got := Classify(wrapped); got != orig {
		t.Errorf("Classify() = %v, want the wrapped ExitError", got)
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}
