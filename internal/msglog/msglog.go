// Package msglog stores the append-only message history of a conversation.
//
// A conversation's history lives under "{conversationID}/messages" as one
// ordered collection; there is no server-side append, so every append is a
// read-modify-write of the whole collection guarded by the store's version
// token.
package msglog

import (
	"context"
	"fmt"

	"github.com/ourchat/ourchat/internal/common"
	"github.com/ourchat/ourchat/internal/logging"
	"github.com/ourchat/ourchat/internal/models"
	"github.com/ourchat/ourchat/internal/store"
)

type Log struct {
	store store.Store
	log   logging.Logger
}

func New(s store.Store, log logging.Logger) *Log {
	return &Log{store: s, log: log}
}

func logPath(conversationID string) string {
	return conversationID + "/messages"
}

// Create writes a brand-new history containing only the first message. Any
// existing history at the path is replaced, so callers must only use this
// when opening a conversation that does not exist yet.
func (l *Log) Create(ctx context.Context, conversationID string, first models.Message) error {
	if err := l.store.Write(ctx, logPath(conversationID), []any{first.Wire()}); err != nil {
		return fmt.Errorf("create log %s: %w", conversationID, err)
	}
	return nil
}

// Append adds a message to the end of the history and returns the history as
// it stood after the write. Appending to a missing history fails; histories
// are only born through Create.
func (l *Log) Append(ctx context.Context, conversationID string, m models.Message) ([]models.Message, error) {
	path := logPath(conversationID)

	var result []any
	err := store.UpdateTx(ctx, l.store, path, func(snap store.Snapshot) (any, error) {
		collection, ok := snap.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("log %s: %w", conversationID, common.ErrNotFound)
		}
		result = append(collection, m.Wire())
		return result, nil
	})
	if err != nil {
		return nil, fmt.Errorf("append to log %s: %w", conversationID, err)
	}
	return l.decode(ctx, conversationID, store.Snapshot{Value: result}), nil
}

// Fetch reads the history once. A missing history is a fetch failure: the
// caller asked for a conversation that has no log.
func (l *Log) Fetch(ctx context.Context, conversationID string) ([]models.Message, error) {
	snap, err := l.store.Read(ctx, logPath(conversationID))
	if err != nil {
		return nil, fmt.Errorf("fetch log %s: %w", conversationID, err)
	}
	if !snap.Exists() {
		return nil, fmt.Errorf("log %s: %w", conversationID, common.ErrFetch)
	}
	return l.decode(ctx, conversationID, snap), nil
}

// Watch emits the full history on every change until ctx is cancelled. Every
// emission replaces the consumer's view wholesale.
func (l *Log) Watch(ctx context.Context, conversationID string) (<-chan []models.Message, error) {
	snapshots, err := l.store.Observe(ctx, logPath(conversationID))
	if err != nil {
		return nil, fmt.Errorf("observe log %s: %w", conversationID, err)
	}

	out := make(chan []models.Message)
	go func() {
		defer close(out)
		for snap := range snapshots {
			select {
			case out <- l.decode(ctx, conversationID, snap):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// decode maps raw entries into messages, skipping ones that fail to parse.
// A skipped entry is logged rather than dropped silently.
func (l *Log) decode(ctx context.Context, conversationID string, snap store.Snapshot) []models.Message {
	collection, ok := snap.Value.([]any)
	if !ok {
		return nil
	}
	history := make([]models.Message, 0, len(collection))
	for _, raw := range collection {
		m, err := models.MessageFromWire(raw)
		if err != nil {
			l.log.Warn(ctx, "skipping malformed message entry", "conversation", conversationID, "error", err)
			continue
		}
		history = append(history, m)
	}
	return history
}
