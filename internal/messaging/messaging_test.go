package messaging

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ourchat/ourchat/internal/blob"
	"github.com/ourchat/ourchat/internal/common"
	"github.com/ourchat/ourchat/internal/convindex"
	"github.com/ourchat/ourchat/internal/directory"
	"github.com/ourchat/ourchat/internal/logging"
	"github.com/ourchat/ourchat/internal/models"
	"github.com/ourchat/ourchat/internal/msglog"
	"github.com/ourchat/ourchat/internal/store"
)

type fixture struct {
	svc   *Service
	mem   *store.Memory
	dir   *directory.Directory
	index *convindex.Index
	lg    *msglog.Log
	blobs *blob.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	log := logging.NewDefault()
	f := &fixture{
		mem:   mem,
		dir:   directory.New(mem, log),
		index: convindex.New(mem, log),
		lg:    msglog.New(mem, log),
		blobs: blob.NewMemory(),
	}
	f.svc = NewService(f.dir, f.index, f.lg, f.blobs, log)
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

var (
	alice = models.User{FirstName: "Alice", LastName: "Smith", Email: "alice@example.com"}
	bob   = models.User{FirstName: "Bob", LastName: "Jones", Email: "bob@example.com"}
)

func register(t *testing.T, f *fixture, users ...models.User) {
	t.Helper()
	for _, u := range users {
		require.NoError(t, f.dir.Register(context.Background(), u))
	}
}

func toBob() Recipient {
	return Recipient{ID: bob.Identity(), Name: bob.FullName()}
}

func TestConversationID(t *testing.T) {
	require.Equal(t, "conversation_abc", ConversationID("abc"))
}

func TestCreateConversation_WritesAllThreeSubtrees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, alice, bob)

	convID, err := f.svc.CreateConversation(ctx, alice, toBob(), models.KindText, "hi")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(convID, "conversation_"))

	senderSide, err := f.index.List(ctx, alice.Identity())
	require.NoError(t, err)
	require.Len(t, senderSide, 1)
	require.Equal(t, convID, senderSide[0].ID)
	require.Equal(t, bob.Identity(), senderSide[0].OtherUserID)
	require.Equal(t, "Bob Jones", senderSide[0].OtherUserName)
	require.Equal(t, "hi", senderSide[0].Latest.Text)
	require.False(t, senderSide[0].Latest.Read)

	recipientSide, err := f.index.List(ctx, bob.Identity())
	require.NoError(t, err)
	require.Len(t, recipientSide, 1)
	require.Equal(t, convID, recipientSide[0].ID)
	require.Equal(t, alice.Identity(), recipientSide[0].OtherUserID)
	require.Equal(t, "Alice Smith", recipientSide[0].OtherUserName)

	history, err := f.lg.Fetch(ctx, convID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "hi", history[0].Content)
	require.Equal(t, alice.Identity(), history[0].SenderID)
}

func TestCreateConversation_UnregisteredSender(t *testing.T) {
	f := newFixture(t)
	register(t, f, bob)

	_, err := f.svc.CreateConversation(context.Background(), alice, toBob(), models.KindText, "hi")
	require.Error(t, err)

	// short-circuited before any write
	got, err := f.index.List(context.Background(), bob.Identity())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSend_AppendsAndRefreshesBothPreviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, alice, bob)

	convID, err := f.svc.CreateConversation(ctx, alice, toBob(), models.KindText, "hi")
	require.NoError(t, err)

	msg, err := f.svc.Send(ctx, convID, alice, toBob(), models.KindText, "how are you")
	require.NoError(t, err)
	require.Equal(t, "how are you", msg.Content)

	history, err := f.lg.Fetch(ctx, convID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	for _, owner := range []models.User{alice, bob} {
		got, err := f.index.List(ctx, owner.Identity())
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "how are you", got[0].Latest.Text, "stale preview for %s", owner.Email)
	}
}

func TestSend_UnknownConversation(t *testing.T) {
	f := newFixture(t)
	register(t, f, alice, bob)

	_, err := f.svc.Send(context.Background(), "conversation_none", alice, toBob(), models.KindText, "hi")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSend_RecipientPreviewUpdatedEvenIfSenderUpdateFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, alice, bob)

	convID, err := f.svc.CreateConversation(ctx, alice, toBob(), models.KindText, "hi")
	require.NoError(t, err)

	// empty alice's index so her preview update has no summary to hit
	require.NoError(t, f.mem.Write(ctx, alice.Identity().String()+"/conversations", []any{}))

	_, err = f.svc.Send(ctx, convID, alice, toBob(), models.KindText, "how are you")
	require.ErrorIs(t, err, common.ErrNotFound)

	// the failure on alice's side must not have stopped bob's update
	got, err := f.index.List(ctx, bob.Identity())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "how are you", got[0].Latest.Text)
}

func TestUploadMedia_StoresBlobAndReturnsURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	url, err := f.svc.UploadMedia(ctx, "conversation_1", ".png", bytes.NewReader([]byte{0x89, 'P', 'N', 'G'}))
	require.NoError(t, err)
	require.Contains(t, url, "conversations/conversation_1/")
	require.True(t, strings.HasSuffix(url, ".png"))
}

func TestSendMedia_MessageContentIsBlobURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, alice, bob)

	convID, err := f.svc.CreateConversation(ctx, alice, toBob(), models.KindText, "hi")
	require.NoError(t, err)

	msg, err := f.svc.SendMedia(ctx, convID, alice, toBob(), models.KindPhoto, ".png", bytes.NewReader([]byte("img")))
	require.NoError(t, err)
	require.Equal(t, models.KindPhoto, msg.Kind)

	data, ok := f.blobs.Bytes(strings.TrimPrefix(msg.Content, "memory://"))
	require.True(t, ok)
	require.Equal(t, []byte("img"), data)

	history, err := f.lg.Fetch(ctx, convID)
	require.NoError(t, err)
	require.Equal(t, msg.Content, history[1].Content)
}

func TestSetProfilePicture(t *testing.T) {
	f := newFixture(t)

	url, err := f.svc.SetProfilePicture(context.Background(), alice, bytes.NewReader([]byte("avatar")))
	require.NoError(t, err)
	require.Contains(t, url, "images/alice-example-com_profile_picture.png")

	got, err := f.svc.ProfilePictureURL(context.Background(), alice.Identity())
	require.NoError(t, err)
	require.Equal(t, url, got)
}
