// Package convindex maintains each user's conversation index: the list of
// conversation summaries rendered on the conversations screen.
//
// Every participant owns an independent copy of a conversation's summary;
// nothing propagates between the copies except through explicit writes, so
// the orchestrator updates one summary per participant per send. All writes
// are read-modify-write cycles over the owner's whole collection; they run
// under the store's version token so concurrent writers retry instead of
// losing updates.
package convindex

import (
	"context"
	"fmt"

	"github.com/ourchat/ourchat/internal/common"
	"github.com/ourchat/ourchat/internal/identity"
	"github.com/ourchat/ourchat/internal/logging"
	"github.com/ourchat/ourchat/internal/models"
	"github.com/ourchat/ourchat/internal/store"
)

type Index struct {
	store store.Store
	log   logging.Logger
}

func New(s store.Store, log logging.Logger) *Index {
	return &Index{store: s, log: log}
}

func indexPath(owner identity.ID) string {
	return owner.String() + "/conversations"
}

// Append adds a summary to the owner's index, creating the collection as a
// singleton when it does not exist yet.
func (ix *Index) Append(ctx context.Context, owner identity.ID, c models.Conversation) error {
	err := store.UpdateTx(ctx, ix.store, indexPath(owner), func(snap store.Snapshot) (any, error) {
		collection, ok := snap.Value.([]any)
		if !ok {
			return []any{c.Wire()}, nil
		}
		return append(collection, c.Wire()), nil
	})
	if err != nil {
		return fmt.Errorf("append summary for %s: %w", owner, err)
	}
	return nil
}

// UpdateLatest replaces the latest-message preview of the summary whose
// conversation id matches. Returns common.ErrNotFound when the owner has no
// index or no matching summary; the caller always gets a result, there is no
// silent abort.
func (ix *Index) UpdateLatest(ctx context.Context, owner identity.ID, conversationID string, latest models.LatestMessage) error {
	return ix.rewriteSummary(ctx, owner, conversationID, func(dict map[string]any) {
		dict["latest_message"] = latest.Wire()
	})
}

// MarkRead flags the owner's preview of the conversation as read. The other
// participant's copy is untouched.
func (ix *Index) MarkRead(ctx context.Context, owner identity.ID, conversationID string) error {
	return ix.rewriteSummary(ctx, owner, conversationID, func(dict map[string]any) {
		if latest, ok := dict["latest_message"].(map[string]any); ok {
			latest["is_read"] = true
		}
	})
}

func (ix *Index) rewriteSummary(ctx context.Context, owner identity.ID, conversationID string, mutate func(map[string]any)) error {
	err := store.UpdateTx(ctx, ix.store, indexPath(owner), func(snap store.Snapshot) (any, error) {
		collection, ok := snap.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("index of %s: %w", owner, common.ErrNotFound)
		}
		for _, raw := range collection {
			dict, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if id, _ := dict["conversation_id"].(string); id == conversationID {
				mutate(dict)
				return collection, nil
			}
		}
		return nil, fmt.Errorf("conversation %s in index of %s: %w", conversationID, owner, common.ErrNotFound)
	})
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	return nil
}

// List fetches the owner's summaries once. An absent index is an empty list,
// not an error: a fresh account simply has no conversations yet.
func (ix *Index) List(ctx context.Context, owner identity.ID) ([]models.Conversation, error) {
	snap, err := ix.store.Read(ctx, indexPath(owner))
	if err != nil {
		return nil, fmt.Errorf("fetch index of %s: %w", owner, err)
	}
	return ix.decode(ctx, owner, snap), nil
}

// Watch emits the owner's full summary list on every change until ctx is
// cancelled. Each emission replaces the consumer's view wholesale.
func (ix *Index) Watch(ctx context.Context, owner identity.ID) (<-chan []models.Conversation, error) {
	snapshots, err := ix.store.Observe(ctx, indexPath(owner))
	if err != nil {
		return nil, fmt.Errorf("observe index of %s: %w", owner, err)
	}

	out := make(chan []models.Conversation)
	go func() {
		defer close(out)
		for snap := range snapshots {
			select {
			case out <- ix.decode(ctx, owner, snap):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// decode maps a raw snapshot into summaries. A malformed entry is skipped
// but logged; it is data damage worth noticing, not a reason to blank the
// whole screen.
func (ix *Index) decode(ctx context.Context, owner identity.ID, snap store.Snapshot) []models.Conversation {
	collection, ok := snap.Value.([]any)
	if !ok {
		return nil
	}
	summaries := make([]models.Conversation, 0, len(collection))
	for _, raw := range collection {
		c, err := models.ConversationFromWire(raw)
		if err != nil {
			ix.log.Warn(ctx, "skipping malformed conversation summary", "owner", owner, "error", err)
			continue
		}
		summaries = append(summaries, c)
	}
	return summaries
}
