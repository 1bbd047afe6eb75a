package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Collection is a typed view of one key. Reads return a fresh snapshot;
// writes go through Mutate, which replaces the stored array as a whole.
type Collection[T any] struct {
	kv  KV
	key string
	mu  sync.Mutex
}

func NewCollection[T any](kv KV, key string) *Collection[T] {
	return &Collection[T]{kv: kv, key: key}
}

func (c *Collection[T]) Key() string { return c.key }

// List returns every item. A key that was never written reads as empty.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	raw, err := c.kv.Get(ctx, c.key)
	if errors.Is(err, ErrKeyNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Find returns the first item matching pred.
func (c *Collection[T]) Find(ctx context.Context, pred func(T) bool) (T, bool, error) {
	var zero T
	items, err := c.List(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, it := range items {
		if pred(it) {
			return it, true, nil
		}
	}
	return zero, false, nil
}

// Filter returns every item matching pred, in stored order.
func (c *Collection[T]) Filter(ctx context.Context, pred func(T) bool) ([]T, error) {
	items, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Mutate loads the collection, applies fn and stores its result. fn must
// not keep references to the slice it receives. If fn returns an error
// nothing is written.
func (c *Collection[T]) Mutate(ctx context.Context, fn func([]T) ([]T, error)) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(items)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.kv.Put(ctx, c.key, raw); err != nil {
		return nil, err
	}
	return next, nil
}

// Append adds item to the end of the collection.
func (c *Collection[T]) Append(ctx context.Context, item T) error {
	_, err := c.Mutate(ctx, func(items []T) ([]T, error) {
		return append(items, item), nil
	})
	return err
}

// Replace swaps the first item matching pred with the result of fn. ok is
// false when no item matched; nothing is written in that case.
func (c *Collection[T]) Replace(ctx context.Context, pred func(T) bool, fn func(T) (T, error)) (T, bool, error) {
	var (
		updated T
		found   bool
	)
	_, err := c.Mutate(ctx, func(items []T) ([]T, error) {
		for i, it := range items {
			if !pred(it) {
				continue
			}
			next, err := fn(it)
			if err != nil {
				return nil, err
			}
			items[i] = next
			updated, found = next, true
			return items, nil
		}
		return nil, errNoMatch
	})
	if errors.Is(err, errNoMatch) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return updated, found, nil
}

var errNoMatch = errors.New("no matching item")
