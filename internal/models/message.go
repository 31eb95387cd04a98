package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ourchat/ourchat/internal/identity"
)

// MessageKind is the tagged variant type for message payloads.
// The wire mapping below is the single source of truth for kind strings;
// no other package switches on kinds.
type MessageKind int

const (
	KindText MessageKind = iota
	KindPhoto
	KindVideo
)

func (k MessageKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseMessageKind maps a wire kind string back to a MessageKind.
func ParseMessageKind(s string) (MessageKind, error) {
	switch s {
	case "text":
		return KindText, nil
	case "photo":
		return KindPhoto, nil
	case "video":
		return KindVideo, nil
	default:
		return 0, fmt.Errorf("unknown message kind %q", s)
	}
}

// Message is one entry of a conversation's message log. Content holds the
// text body for KindText and a blob-store download URL for media kinds.
type Message struct {
	ID             string
	Kind           MessageKind
	SenderID       identity.ID
	Content        string
	SentAt         time.Time
	OtherPartyName string
	Read           bool
}

// NewMessageID builds a unique, path-safe message identifier. The
// recipient/sender prefix mirrors how identifiers looked in earlier data;
// the uuid suffix is what actually guarantees uniqueness.
func NewMessageID(sender, recipient identity.ID) string {
	return fmt.Sprintf("%s_%s_%s", recipient, sender, uuid.NewString())
}

// Preview returns the latest-message summary of m used in conversation
// indexes. A freshly sent message is unread on both sides.
func (m Message) Preview() LatestMessage {
	return LatestMessage{SentAt: m.SentAt, Text: m.Content, Read: false}
}

// Wire maps the message to its log-entry representation.
func (m Message) Wire() map[string]any {
	return map[string]any{
		"id":              m.ID,
		"type":            m.Kind.String(),
		"content":         m.Content,
		"date":            m.SentAt.Format(time.RFC3339),
		"sender_email":    m.SenderID.String(),
		"other_user_name": m.OtherPartyName,
		"is_read":         m.Read,
	}
}

// MessageFromWire decodes one log entry. Every field is required; a missing
// field or an unparseable date or kind is an error, never a silent drop.
func MessageFromWire(v any) (Message, error) {
	dict, ok := v.(map[string]any)
	if !ok {
		return Message{}, fmt.Errorf("message entry is %T, want map", v)
	}

	id, err := wireString(dict, "id")
	if err != nil {
		return Message{}, err
	}
	kindStr, err := wireString(dict, "type")
	if err != nil {
		return Message{}, err
	}
	kind, err := ParseMessageKind(kindStr)
	if err != nil {
		return Message{}, err
	}
	content, err := wireString(dict, "content")
	if err != nil {
		return Message{}, err
	}
	dateStr, err := wireString(dict, "date")
	if err != nil {
		return Message{}, err
	}
	sentAt, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return Message{}, fmt.Errorf("message %s: bad date: %w", id, err)
	}
	sender, err := wireString(dict, "sender_email")
	if err != nil {
		return Message{}, err
	}
	otherName, err := wireString(dict, "other_user_name")
	if err != nil {
		return Message{}, err
	}
	read, err := wireBool(dict, "is_read")
	if err != nil {
		return Message{}, err
	}

	return Message{
		ID:             id,
		Kind:           kind,
		SenderID:       identity.ID(sender),
		Content:        content,
		SentAt:         sentAt,
		OtherPartyName: otherName,
		Read:           read,
	}, nil
}

func wireString(dict map[string]any, key string) (string, error) {
	v, ok := dict[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q is %T, want string", key, v)
	}
	return s, nil
}

func wireBool(dict map[string]any, key string) (bool, error) {
	v, ok := dict[key]
	if !ok {
		return false, fmt.Errorf("missing field %q", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %q is %T, want bool", key, v)
	}
	return b, nil
}
