package store

import (
	"context"

	"github.com/thoreinstein/strata/pkg/keypath"
)

// Funcs adapts plain functions to the Store interface. Operations whose
// field is nil reject with *UnimplementedCapabilityError.
type Funcs struct {
	Notifier

	StoreName   string
	Synchronous bool

	GetFunc   func(ctx context.Context, p keypath.Path) *Result
	SetFunc   func(ctx context.Context, p keypath.Path, value any) *Result
	MergeFunc func(ctx context.Context, p keypath.Path, value any) *Result
	ClearFunc func(ctx context.Context, p keypath.Path) *Result
	LoadFunc  func(ctx context.Context) *Result
	SaveFunc  func(ctx context.Context) *Result
}

var _ Store = (*Funcs)(nil)

// Name returns StoreName.
func (f *Funcs) Name() string { return f.StoreName }

// Sync returns Synchronous.
func (f *Funcs) Sync() bool { return f.Synchronous }

func (f *Funcs) unimplemented(op Op) *Result {
	return Rejected(&UnimplementedCapabilityError{Store: f.StoreName, Op: op})
}

// Get calls GetFunc.
func (f *Funcs) Get(ctx context.Context, p keypath.Path) *Result {
	if f.GetFunc == nil {
		return f.unimplemented(OpGet)
	}
	return f.GetFunc(ctx, p)
}

// Set calls SetFunc.
func (f *Funcs) Set(ctx context.Context, p keypath.Path, value any) *Result {
	if f.SetFunc == nil {
		return f.unimplemented(OpSet)
	}
	return f.SetFunc(ctx, p, value)
}

// Merge calls MergeFunc.
func (f *Funcs) Merge(ctx context.Context, p keypath.Path, value any) *Result {
	if f.MergeFunc == nil {
		return f.unimplemented(OpMerge)
	}
	return f.MergeFunc(ctx, p, value)
}

// Clear calls ClearFunc.
func (f *Funcs) Clear(ctx context.Context, p keypath.Path) *Result {
	if f.ClearFunc == nil {
		return f.unimplemented(OpClear)
	}
	return f.ClearFunc(ctx, p)
}

// Load calls LoadFunc.
func (f *Funcs) Load(ctx context.Context) *Result {
	if f.LoadFunc == nil {
		return f.unimplemented(OpLoad)
	}
	return f.LoadFunc(ctx)
}

// Save calls SaveFunc.
func (f *Funcs) Save(ctx context.Context) *Result {
	if f.SaveFunc == nil {
		return f.unimplemented(OpSave)
	}
	return f.SaveFunc(ctx)
}
