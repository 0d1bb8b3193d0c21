package config

import (
	"fmt"
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/aggregate"
	"github.com/thoreinstein/strata/pkg/codec"
)

// Validation errors for configuration fields.
var (
	ErrVersionTooLow    = errors.New("version must be >= 1")
	ErrInvalidDelimiter = errors.New("delimiter must be a single punctuation character other than % or \\")
	ErrInvalidOutput    = errors.New("unknown output format")
	ErrMissingStoreName = errors.New("store name is required")
	ErrDuplicateStore   = errors.New("duplicate store name")
	ErrUnknownStoreType = errors.New("unknown store type")
	ErrInvalidTier      = errors.New("invalid tier")
)

// Validate checks cfg against the store types an engine set provides.
// It returns every problem found, or nil.
func Validate(cfg *Config, types []string) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Version < 1 {
		errs = append(errs, ErrVersionTooLow)
	}
	if _, err := ParseDelimiter(cfg.Delimiter); err != nil {
		errs = append(errs, err)
	}
	if _, err := codec.Lookup(cfg.Output); err != nil {
		errs = append(errs, errors.Wrapf(ErrInvalidOutput, "%q", cfg.Output))
	}

	seen := make(map[string]bool, len(cfg.Stores))
	for i, sc := range cfg.Stores {
		if sc.Name == "" {
			errs = append(errs, &StoreError{Index: i, Err: ErrMissingStoreName})
			continue
		}
		if seen[sc.Name] {
			errs = append(errs, &StoreError{Index: i, Name: sc.Name, Err: ErrDuplicateStore})
		}
		seen[sc.Name] = true

		if !slices.Contains(types, sc.Type) {
			errs = append(errs, &StoreError{
				Index: i,
				Name:  sc.Name,
				Err:   errors.Wrapf(ErrUnknownStoreType, "%q (known: %v)", sc.Type, types),
			})
		}
		if _, err := aggregate.ParseTier(sc.Tier); err != nil {
			errs = append(errs, &StoreError{Index: i, Name: sc.Name, Err: errors.Mark(err, ErrInvalidTier)})
		}
	}

	return errs
}

// ParseDelimiter returns the single rune of s.
func ParseDelimiter(s string) (rune, error) {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) || r == '%' || r == '\\' || !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
		return 0, errors.Wrapf(ErrInvalidDelimiter, "%q", s)
	}
	return r, nil
}

// StoreError reports a problem with one entry of the stores list.
type StoreError struct {
	Index int
	Name  string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("stores[%d]: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("stores[%d] %q: %v", e.Index, e.Name, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
