package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_IdentityAndNames(t *testing.T) {
	u := User{FirstName: "Jane", LastName: "Doe", Email: "Jane.Doe@x.com"}

	assert.Equal(t, "Jane-Doe-x-com", u.Identity().String())
	assert.Equal(t, "Jane Doe", u.FullName())
	assert.Equal(t, "Jane-Doe-x-com_profile_picture.png", u.ProfilePictureFileName())
}

func TestMessageKind_Mapping(t *testing.T) {
	for _, k := range []MessageKind{KindText, KindPhoto, KindVideo} {
		parsed, err := ParseMessageKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseMessageKind("carrier_pigeon")
	assert.Error(t, err)
}

func TestMessage_WireRoundTrip(t *testing.T) {
	sent := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	m := Message{
		ID:             "bob-mail_alice-mail_0001",
		Kind:           KindPhoto,
		SenderID:       "alice-mail",
		Content:        "https://blobs/conversations/c1/p.png",
		SentAt:         sent,
		OtherPartyName: "Bob Builder",
		Read:           true,
	}

	got, err := MessageFromWire(m.Wire())
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestMessageFromWire_Strict(t *testing.T) {
	base := func() map[string]any {
		return Message{
			ID:       "m1",
			Kind:     KindText,
			SenderID: "a",
			Content:  "hi",
			SentAt:   time.Now().UTC().Truncate(time.Second),
		}.Wire()
	}

	t.Run("not a map", func(t *testing.T) {
		_, err := MessageFromWire("nope")
		assert.Error(t, err)
	})
	t.Run("missing field", func(t *testing.T) {
		w := base()
		delete(w, "sender_email")
		_, err := MessageFromWire(w)
		assert.ErrorContains(t, err, "sender_email")
	})
	t.Run("bad kind", func(t *testing.T) {
		w := base()
		w["type"] = "hologram"
		_, err := MessageFromWire(w)
		assert.Error(t, err)
	})
	t.Run("bad date", func(t *testing.T) {
		w := base()
		w["date"] = "yesterday"
		_, err := MessageFromWire(w)
		assert.Error(t, err)
	})
	t.Run("wrong bool type", func(t *testing.T) {
		w := base()
		w["is_read"] = "false"
		_, err := MessageFromWire(w)
		assert.Error(t, err)
	})
}

func TestConversation_WireRoundTrip(t *testing.T) {
	c := Conversation{
		ID:            "conversation_m1",
		OtherUserID:   "bob-mail",
		OtherUserName: "Bob Builder",
		Latest: LatestMessage{
			SentAt: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
			Text:   "hi",
			Read:   false,
		},
	}

	got, err := ConversationFromWire(c.Wire())
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestConversationFromWire_MissingLatest(t *testing.T) {
	w := Conversation{ID: "conversation_m1", OtherUserID: "b", OtherUserName: "B"}.Wire()
	delete(w, "latest_message")
	_, err := ConversationFromWire(w)
	assert.ErrorContains(t, err, "latest_message")
}

func TestMessage_Preview(t *testing.T) {
	sent := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	m := Message{Content: "hello", SentAt: sent, Read: true}

	p := m.Preview()
	assert.Equal(t, "hello", p.Text)
	assert.Equal(t, sent, p.SentAt)
	assert.False(t, p.Read, "a fresh preview is unread regardless of the message flag")
}

func TestNewMessageID_UniqueAndPathSafe(t *testing.T) {
	a := NewMessageID("alice-mail", "bob-mail")
	b := NewMessageID("alice-mail", "bob-mail")

	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "/")
	assert.Contains(t, a, "bob-mail_alice-mail_")
}
