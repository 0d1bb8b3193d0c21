package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/provider"
	"github.com/thoreinstein/strata/pkg/store"
)

// Exit codes returned by the strata CLI.
const (
	ExitSuccess = 0

	// ExitUser covers invalid keys, values, flags and configuration.
	ExitUser = 1

	// ExitSystem covers I/O and network failures of a backing store.
	ExitSystem = 2

	// ExitNotFound is returned by get when no store holds the key.
	ExitNotFound = 3
)

var (
	// ErrNotFound indicates no registered store holds the requested key.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidConfig indicates the CLI configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidValue indicates a command-line value could not be used.
	ErrInvalidValue = errors.New("invalid value")
)

// ExitError carries an exit code and an optional suggestion for the user
// alongside the error that ended the command.
type ExitError struct {
	Err        error
	Code       int
	Suggestion string
}

// NewExitError creates an ExitError with the given underlying error and exit code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{Err: err, Code: ExitUser, Suggestion: suggestion}
}

// NewSystemError creates an ExitError with ExitSystem code and a suggestion.
func NewSystemError(err error, suggestion string) *ExitError {
	return &ExitError{Err: err, Code: ExitSystem, Suggestion: suggestion}
}

// NewConfigError reports an invalid CLI configuration file.
func NewConfigError(err error) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: "Check the stores section of your strata config file",
	}
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Classify converts err into an ExitError, choosing the exit code and a
// suggestion from the store error it wraps. An existing ExitError in the
// chain is returned as is. Classify returns nil for a nil error.
func Classify(err error) *ExitError {
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	var (
		rootErr      *store.RootTypeError
		parseErr     *store.ParseError
		transportErr *store.TransportError
		asyncErr     *store.AsyncDispatchRequiredError
		unimplErr    *store.UnimplementedCapabilityError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return NewExitError(err, ExitNotFound)
	case errors.Is(err, keypath.ErrInvalidKey):
		return NewUserError(err, "Keys are segments joined by the delimiter, for example database:host")
	case errors.Is(err, provider.ErrUnknownType):
		return NewConfigError(err)
	case errors.Is(err, ErrInvalidConfig):
		return NewConfigError(err)
	case errors.As(err, &rootErr):
		return NewUserError(err, "The root can only be set to a JSON object")
	case errors.As(err, &parseErr):
		return NewUserError(err, fmt.Sprintf("Fix the %s syntax in %s", parseErr.Format, parseErr.Source))
	case errors.As(err, &transportErr):
		return NewSystemError(err, fmt.Sprintf("Check that store %q is reachable", transportErr.Store))
	case errors.As(err, &asyncErr):
		return NewSystemError(err, "")
	case errors.As(err, &unimplErr):
		return NewUserError(err, fmt.Sprintf("Store %q cannot %s", unimplErr.Store, unimplErr.Op))
	case errors.Is(err, ErrInvalidValue):
		return NewUserError(err, "")
	default:
		return NewExitError(err, ExitSystem)
	}
}

// Helpers re-exported from cockroachdb/errors so CLI code needs a single
// errors import.
var (
	New      = errors.New
	Newf     = errors.Newf
	Wrap     = errors.Wrap
	Wrapf    = errors.Wrapf
	WithHint = errors.WithHint
	Is       = errors.Is
	As       = errors.As
	Join     = errors.Join
)
