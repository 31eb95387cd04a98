package msglog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ourchat/ourchat/internal/common"
	"github.com/ourchat/ourchat/internal/logging"
	"github.com/ourchat/ourchat/internal/models"
	"github.com/ourchat/ourchat/internal/store"
)

func newTestLog() *Log {
	return New(store.NewMemory(), logging.NewDefault())
}

func textMessage(id, content string) models.Message {
	return models.Message{
		ID:             id,
		Kind:           models.KindText,
		SenderID:       "alice-example-com",
		Content:        content,
		SentAt:         time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		OtherPartyName: "Jane Doe",
	}
}

func TestLog_CreateThenFetch(t *testing.T) {
	l := newTestLog()
	ctx := context.Background()

	require.NoError(t, l.Create(ctx, "conversation_1", textMessage("m1", "hi")))

	got, err := l.Fetch(ctx, "conversation_1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "hi", got[0].Content)
	require.Equal(t, models.KindText, got[0].Kind)
}

func TestLog_AppendReturnsFullHistory(t *testing.T) {
	l := newTestLog()
	ctx := context.Background()

	require.NoError(t, l.Create(ctx, "conversation_1", textMessage("m1", "hi")))

	got, err := l.Append(ctx, "conversation_1", textMessage("m2", "how are you"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "hi", got[0].Content)
	require.Equal(t, "how are you", got[1].Content)
}

func TestLog_AppendToMissingHistory(t *testing.T) {
	l := newTestLog()

	_, err := l.Append(context.Background(), "conversation_none", textMessage("m1", "hi"))
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestLog_FetchMissingHistory(t *testing.T) {
	l := newTestLog()

	_, err := l.Fetch(context.Background(), "conversation_none")
	require.ErrorIs(t, err, common.ErrFetch)
}

func TestLog_FetchSkipsMalformedEntries(t *testing.T) {
	mem := store.NewMemory()
	l := New(mem, logging.NewDefault())
	ctx := context.Background()

	err := mem.Write(ctx, "conversation_1/messages", []any{
		textMessage("m1", "hi").Wire(),
		map[string]any{"id": "m2", "type": "text"}, // missing the rest
		map[string]any{
			"id": "m3", "type": "text", "content": "later",
			"date":         "not-a-timestamp",
			"sender_email": "alice-example-com", "other_user_name": "Jane Doe", "is_read": false,
		},
	})
	require.NoError(t, err)

	got, err := l.Fetch(ctx, "conversation_1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "m1", got[0].ID)
}

func TestLog_WatchEmitsOnAppend(t *testing.T) {
	l := newTestLog()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, l.Create(ctx, "conversation_1", textMessage("m1", "hi")))

	updates, err := l.Watch(ctx, "conversation_1")
	require.NoError(t, err)

	first := recvHistory(t, updates)
	require.Len(t, first, 1)

	_, err = l.Append(ctx, "conversation_1", textMessage("m2", "how are you"))
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-updates:
			if len(got) == 2 {
				require.Equal(t, "m2", got[1].ID)
				return
			}
		case <-deadline:
			t.Fatal("no emission with the appended message")
		}
	}
}

func TestLog_WatchStopsOnCancel(t *testing.T) {
	l := newTestLog()
	ctx, cancel := context.WithCancel(context.Background())

	updates, err := l.Watch(ctx, "conversation_1")
	require.NoError(t, err)
	recvHistory(t, updates)

	cancel()

	select {
	case _, open := <-updates:
		require.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestLog_ConcurrentAppendsAllSurvive(t *testing.T) {
	l := newTestLog()
	ctx := context.Background()

	require.NoError(t, l.Create(ctx, "conversation_1", textMessage("m0", "hi")))

	const writers = 4
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Append(ctx, "conversation_1", textMessage(fmt.Sprintf("m%d", i+1), "msg"))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := l.Fetch(ctx, "conversation_1")
	require.NoError(t, err)
	require.Len(t, got, writers+1)
}

func recvHistory(t *testing.T, ch <-chan []models.Message) []models.Message {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
		return nil
	}
}
