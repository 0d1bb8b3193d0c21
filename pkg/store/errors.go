package store

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrPending is returned by Result.Value while the operation is still in
// flight.
var ErrPending = errors.New("result is still pending")

// RootTypeError indicates an attempt to replace or merge the whole tree with
// a value that is not a mapping.
type RootTypeError struct {
	Store string
	Op    Op
	Value any
}

func (e *RootTypeError) Error() string {
	return fmt.Sprintf("%s %s: root must be a mapping, got %T", e.Store, e.Op, e.Value)
}

// UnimplementedCapabilityError indicates a store does not provide an
// operation it was asked to perform.
type UnimplementedCapabilityError struct {
	Store string
	Op    Op
}

func (e *UnimplementedCapabilityError) Error() string {
	return fmt.Sprintf("store %q does not implement %s", e.Store, e.Op)
}

// AsyncDispatchRequiredError is returned when a synchronous aggregate call
// is made while some registered stores can only complete asynchronously.
// Stores lists the offending store names in registry order.
type AsyncDispatchRequiredError struct {
	Op     Op
	Stores []string
}

func (e *AsyncDispatchRequiredError) Error() string {
	return fmt.Sprintf("async required by stores %s for %s", strings.Join(e.Stores, ","), e.Op)
}

// TransportError wraps an I/O or network failure reported by a backing
// store. Status carries the HTTP status code when there is one.
type TransportError struct {
	Store  string
	Op     Op
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Store, e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError indicates a backing store returned a payload that could not be
// decoded. Source names the file, URL or key the payload came from.
type ParseError struct {
	Source string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.Source, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
