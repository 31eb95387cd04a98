// Package store defines the hierarchical document-store contract the chat
// core is built on, together with an in-memory implementation and a
// Postgres-backed one.
//
// The backend understands exactly three primitives: fetch a subtree,
// overwrite a subtree, and observe a subtree. There are no field-level
// updates and no multi-path transactions; every richer operation in the
// packages above (index append, preview update, log append) is composed out
// of these. Writes carry an optimistic version token so that read-modify-
// write cycles can detect a concurrent writer instead of silently losing
// updates.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ourchat/ourchat/internal/common"
)

// Version is the optimistic-concurrency token of a subtree. Zero means the
// subtree does not exist; a CompareAndSwap with expected version 0 is a
// create-if-absent.
type Version int64

// Snapshot is the result of reading or observing a subtree. Value is nil
// when the subtree is absent.
//
// Values are JSON-shaped: map[string]any, []any, string, bool or float64.
type Snapshot struct {
	Value   any
	Version Version
}

func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Store is the document-store contract.
//
// A write at a path replaces the whole subtree rooted there. A read at a
// path assembles the subtree regardless of which ancestor or descendant
// paths the data was written through. Observe emits the current snapshot
// immediately and then a full snapshot after every change under the path;
// the channel is closed when ctx is cancelled.
type Store interface {
	Read(ctx context.Context, path string) (Snapshot, error)
	Write(ctx context.Context, path string, value any) error
	CompareAndSwap(ctx context.Context, path string, expected Version, value any) error
	Observe(ctx context.Context, path string) (<-chan Snapshot, error)
}

// splitPath breaks a path into its non-empty segments.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// pathsOverlap reports whether a change at b is visible from a: true when one
// path is equal to or an ancestor of the other.
func pathsOverlap(a, b string) bool {
	return a == b || strings.HasPrefix(b, a+"/") || strings.HasPrefix(a, b+"/")
}

// UpdateTx runs a read-modify-write cycle against path: it fetches the
// current snapshot, lets modify produce the replacement value, and writes it
// back under the snapshot's version token. On a version conflict the whole
// cycle is retried with a fresh read, a bounded number of times. Any other
// error, including an error from modify, aborts immediately.
func UpdateTx(ctx context.Context, s Store, path string, modify func(Snapshot) (any, error)) error {
	backoff := retry.WithMaxRetries(5, retry.NewConstant(25*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		snap, err := s.Read(ctx, path)
		if err != nil {
			return err
		}
		next, err := modify(snap)
		if err != nil {
			return err
		}
		err = s.CompareAndSwap(ctx, path, snap.Version, next)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}
