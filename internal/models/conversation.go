package models

import (
	"fmt"
	"time"

	"github.com/ourchat/ourchat/internal/identity"
)

// LatestMessage is the denormalized preview duplicated into each
// participant's conversation summary for fast list rendering.
type LatestMessage struct {
	SentAt time.Time
	Text   string
	Read   bool
}

func (l LatestMessage) Wire() map[string]any {
	return map[string]any{
		"date":    l.SentAt.Format(time.RFC3339),
		"message": l.Text,
		"is_read": l.Read,
	}
}

func latestMessageFromWire(v any) (LatestMessage, error) {
	dict, ok := v.(map[string]any)
	if !ok {
		return LatestMessage{}, fmt.Errorf("latest_message is %T, want map", v)
	}
	dateStr, err := wireString(dict, "date")
	if err != nil {
		return LatestMessage{}, err
	}
	sentAt, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return LatestMessage{}, fmt.Errorf("latest_message: bad date: %w", err)
	}
	text, err := wireString(dict, "message")
	if err != nil {
		return LatestMessage{}, err
	}
	read, err := wireBool(dict, "is_read")
	if err != nil {
		return LatestMessage{}, err
	}
	return LatestMessage{SentAt: sentAt, Text: text, Read: read}, nil
}

// Conversation is one summary entry of a user's conversation index. Each
// participant owns an independent copy referencing the same ID but naming the
// other party.
type Conversation struct {
	ID            string
	OtherUserID   identity.ID
	OtherUserName string
	Latest        LatestMessage
}

func (c Conversation) Wire() map[string]any {
	return map[string]any{
		"conversation_id":  c.ID,
		"other_user_email": c.OtherUserID.String(),
		"other_user_name":  c.OtherUserName,
		"latest_message":   c.Latest.Wire(),
	}
}

// ConversationFromWire decodes one conversation summary.
func ConversationFromWire(v any) (Conversation, error) {
	dict, ok := v.(map[string]any)
	if !ok {
		return Conversation{}, fmt.Errorf("conversation summary is %T, want map", v)
	}
	id, err := wireString(dict, "conversation_id")
	if err != nil {
		return Conversation{}, err
	}
	otherEmail, err := wireString(dict, "other_user_email")
	if err != nil {
		return Conversation{}, err
	}
	otherName, err := wireString(dict, "other_user_name")
	if err != nil {
		return Conversation{}, err
	}
	latestRaw, ok := dict["latest_message"]
	if !ok {
		return Conversation{}, fmt.Errorf("conversation %s: missing field %q", id, "latest_message")
	}
	latest, err := latestMessageFromWire(latestRaw)
	if err != nil {
		return Conversation{}, fmt.Errorf("conversation %s: %w", id, err)
	}
	return Conversation{
		ID:            id,
		OtherUserID:   identity.ID(otherEmail),
		OtherUserName: otherName,
		Latest:        latest,
	}, nil
}
