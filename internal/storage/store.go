// Package storage defines the durable key-value contract the decision
// authority writes through, plus the typed records it stores.
//
// Backends live in subpackages: sqlite (default), redis and memory.
package storage

import (
	"context"
	"errors"
	"sort"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is durable key-value storage. Apply must be atomic: either every
// put and delete in the batch is visible afterwards or none is.
type Store interface {
	Load(ctx context.Context) (map[string][]byte, error)
	Apply(ctx context.Context, b Batch) error
	Close() error
}

// Batch is a set of writes applied in one atomic step. A key present in
// both Puts and Deletes is put.
type Batch struct {
	Puts    map[string][]byte
	Deletes []string
}

// NewBatch returns an empty batch.
func NewBatch() Batch {
	return Batch{Puts: make(map[string][]byte)}
}

// Put stages a write and cancels any staged delete of the same key.
func (b *Batch) Put(key string, value []byte) {
	if b.Puts == nil {
		b.Puts = make(map[string][]byte)
	}
	b.Puts[key] = value
	b.removeDelete(key)
}

// Delete stages a delete and cancels any staged put of the same key.
func (b *Batch) Delete(key string) {
	delete(b.Puts, key)
	for _, k := range b.Deletes {
		if k == key {
			return
		}
	}
	b.Deletes = append(b.Deletes, key)
}

// Merge folds later into b; later operations win.
func (b *Batch) Merge(later Batch) {
	for _, k := range later.Deletes {
		b.Delete(k)
	}
	for k, v := range later.Puts {
		b.Put(k, v)
	}
}

// Empty reports whether the batch has no operations.
func (b Batch) Empty() bool {
	return len(b.Puts) == 0 && len(b.Deletes) == 0
}

// Keys returns every key the batch touches, sorted.
func (b Batch) Keys() []string {
	keys := make([]string, 0, len(b.Puts)+len(b.Deletes))
	for k := range b.Puts {
		keys = append(keys, k)
	}
	keys = append(keys, b.Deletes...)
	sort.Strings(keys)
	return keys
}

func (b *Batch) removeDelete(key string) {
	for i, k := range b.Deletes {
		if k == key {
			b.Deletes = append(b.Deletes[:i], b.Deletes[i+1:]...)
			return
		}
	}
}
