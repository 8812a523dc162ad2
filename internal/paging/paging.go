// Package paging slices ordered collections into pages.
//
// A collection is anything that can count its entries and return a run of
// them in ascending key order, either from an offset (Source) or from the
// first key >= a cursor (KeyedSource). Totals are recounted on every call.
package paging

import (
	"context"
	"fmt"
)

// Source is an ordered collection addressed by offset.
type Source[T any] interface {
	Count(ctx context.Context) (int, error)
	Slice(ctx context.Context, offset, limit int) ([]T, error)
}

// KeyedSource can also start a scan at a key.
type KeyedSource[T any] interface {
	Source[T]
	From(ctx context.Context, key string, limit int) ([]T, error)
}

// Funcs adapts plain functions to KeyedSource. FromFn may be nil when key
// cursors are not supported.
type Funcs[T any] struct {
	CountFn func(ctx context.Context) (int, error)
	SliceFn func(ctx context.Context, offset, limit int) ([]T, error)
	FromFn  func(ctx context.Context, key string, limit int) ([]T, error)
}

func (f Funcs[T]) Count(ctx context.Context) (int, error) { return f.CountFn(ctx) }

func (f Funcs[T]) Slice(ctx context.Context, offset, limit int) ([]T, error) {
	return f.SliceFn(ctx, offset, limit)
}

func (f Funcs[T]) From(ctx context.Context, key string, limit int) ([]T, error) {
	if f.FromFn == nil {
		return nil, fmt.Errorf("paging: key cursors not supported")
	}
	return f.FromFn(ctx, key, limit)
}

// Result is one page plus the size of the whole collection.
type Result[T any] struct {
	Items []T
	Total int
}

// Map converts the items of a page, keeping the total.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	out := Result[U]{Items: make([]U, 0, len(r.Items)), Total: r.Total}
	for _, it := range r.Items {
		out.Items = append(out.Items, fn(it))
	}
	return out
}

// Page returns up to size entries after skipping the first start entries.
// A zero size or a start past the end yields an empty page, not an error.
func Page[T any](ctx context.Context, src Source[T], start, size int) (Result[T], error) {
	total, err := src.Count(ctx)
	if err != nil {
		return Result[T]{}, fmt.Errorf("count: %w", err)
	}
	if start < 0 {
		start = 0
	}
	if size <= 0 || start >= total {
		return Result[T]{Items: []T{}, Total: total}, nil
	}
	if size > total-start {
		size = total - start
	}
	items, err := src.Slice(ctx, start, size)
	if err != nil {
		return Result[T]{}, fmt.Errorf("slice [%d:+%d]: %w", start, size, err)
	}
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Total: total}, nil
}

// PageFrom returns up to size entries beginning at the first key >= key.
func PageFrom[T any](ctx context.Context, src KeyedSource[T], key string, size int) (Result[T], error) {
	total, err := src.Count(ctx)
	if err != nil {
		return Result[T]{}, fmt.Errorf("count: %w", err)
	}
	if size <= 0 || total == 0 {
		return Result[T]{Items: []T{}, Total: total}, nil
	}
	items, err := src.From(ctx, key, size)
	if err != nil {
		return Result[T]{}, fmt.Errorf("scan from %q: %w", key, err)
	}
	if len(items) > size {
		items = items[:size]
	}
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Total: total}, nil
}
