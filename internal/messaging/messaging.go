// Package messaging orchestrates sends across the message log, both
// participants' conversation indexes and the blob store.
//
// A conversation has no single owning record: the log and the two summary
// copies live under independent paths and are written by independent
// read-modify-write cycles. Nothing ties those writes into one transaction,
// so the orchestrator's job is sequencing them, surfacing every failure to
// the caller and never leaving a step silently unattempted.
package messaging

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ourchat/ourchat/internal/blob"
	"github.com/ourchat/ourchat/internal/convindex"
	"github.com/ourchat/ourchat/internal/directory"
	"github.com/ourchat/ourchat/internal/identity"
	"github.com/ourchat/ourchat/internal/logging"
	"github.com/ourchat/ourchat/internal/models"
	"github.com/ourchat/ourchat/internal/msglog"
)

// ConversationID derives a conversation's identifier from the id of its
// first message. The mapping is stable: re-deriving from the same message
// id always names the same conversation.
func ConversationID(firstMessageID string) string {
	return "conversation_" + firstMessageID
}

type Service struct {
	dir   *directory.Directory
	index *convindex.Index
	lg    *msglog.Log
	blobs blob.Store
	log   logging.Logger

	now func() time.Time
}

func NewService(dir *directory.Directory, index *convindex.Index, lg *msglog.Log, blobs blob.Store, log logging.Logger) *Service {
	return &Service{
		dir:   dir,
		index: index,
		lg:    lg,
		blobs: blobs,
		log:   log,
		now:   time.Now,
	}
}

// Recipient names the other party of a new conversation.
type Recipient struct {
	ID   identity.ID
	Name string
}

// CreateConversation opens a conversation between sender and recipient with
// the first message and returns the new conversation's id. The steps are not
// transactional with each other; the first failure short-circuits and is
// returned, which can leave earlier writes applied. The returned error tells
// the caller exactly which step failed so a retry or cleanup can follow.
func (s *Service) CreateConversation(ctx context.Context, sender models.User, recipient Recipient, kind models.MessageKind, content string) (string, error) {
	msgID := models.NewMessageID(sender.Identity(), recipient.ID)
	convID := ConversationID(msgID)

	exists, err := s.dir.Exists(ctx, sender.Identity())
	if err != nil {
		return "", fmt.Errorf("check sender record: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("sender %s is not registered", sender.Identity())
	}

	msg := models.Message{
		ID:             msgID,
		Kind:           kind,
		SenderID:       sender.Identity(),
		Content:        content,
		SentAt:         s.now().UTC(),
		OtherPartyName: recipient.Name,
	}

	senderSide := models.Conversation{
		ID:            convID,
		OtherUserID:   recipient.ID,
		OtherUserName: recipient.Name,
		Latest:        msg.Preview(),
	}
	if err := s.index.Append(ctx, sender.Identity(), senderSide); err != nil {
		return "", fmt.Errorf("append sender summary: %w", err)
	}

	recipientSide := models.Conversation{
		ID:            convID,
		OtherUserID:   sender.Identity(),
		OtherUserName: sender.FullName(),
		Latest:        msg.Preview(),
	}
	if err := s.index.Append(ctx, recipient.ID, recipientSide); err != nil {
		return "", fmt.Errorf("append recipient summary: %w", err)
	}

	if err := s.lg.Create(ctx, convID, msg); err != nil {
		return "", fmt.Errorf("create message log: %w", err)
	}

	s.log.Info(ctx, "conversation created", "conversation", convID, "sender", sender.Identity(), "recipient", recipient.ID)
	return convID, nil
}

// Send appends a message to an existing conversation and refreshes both
// participants' previews. The two preview updates are independent of each
// other; both are always attempted, and the first error of either is
// returned. A failure after the log append leaves the message delivered but
// one or both previews stale.
func (s *Service) Send(ctx context.Context, conversationID string, sender models.User, recipient Recipient, kind models.MessageKind, content string) (models.Message, error) {
	msg := models.Message{
		ID:             models.NewMessageID(sender.Identity(), recipient.ID),
		Kind:           kind,
		SenderID:       sender.Identity(),
		Content:        content,
		SentAt:         s.now().UTC(),
		OtherPartyName: recipient.Name,
	}

	if _, err := s.lg.Append(ctx, conversationID, msg); err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}

	// Plain group, no shared cancellation: one preview failing must not
	// abort the other participant's update.
	preview := msg.Preview()
	var g errgroup.Group
	g.Go(func() error {
		if err := s.index.UpdateLatest(ctx, sender.Identity(), conversationID, preview); err != nil {
			return fmt.Errorf("update sender preview: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.index.UpdateLatest(ctx, recipient.ID, conversationID, preview); err != nil {
			return fmt.Errorf("update recipient preview: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// UploadMedia stores a media blob for the conversation and returns its
// download URL. The file name is generated; ext should carry the dot
// (".png", ".mov").
func (s *Service) UploadMedia(ctx context.Context, conversationID, ext string, r io.Reader) (string, error) {
	fileName := uuid.NewString() + ext
	p := blob.ConversationMediaPath(conversationID, fileName)

	if err := s.blobs.Upload(ctx, p, r); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	url, err := s.blobs.DownloadURL(ctx, p)
	if err != nil {
		return "", fmt.Errorf("resolve media url: %w", err)
	}
	return url, nil
}

// SendMedia uploads the blob and then sends a message whose content is the
// blob's download URL.
func (s *Service) SendMedia(ctx context.Context, conversationID string, sender models.User, recipient Recipient, kind models.MessageKind, ext string, r io.Reader) (models.Message, error) {
	url, err := s.UploadMedia(ctx, conversationID, ext, r)
	if err != nil {
		return models.Message{}, err
	}
	return s.Send(ctx, conversationID, sender, recipient, kind, url)
}

// SetProfilePicture uploads the user's avatar under the shared images
// prefix, replacing any previous one.
func (s *Service) SetProfilePicture(ctx context.Context, user models.User, r io.Reader) (string, error) {
	p := blob.ProfilePicturePath(user.ProfilePictureFileName())
	if err := s.blobs.Upload(ctx, p, r); err != nil {
		return "", fmt.Errorf("upload profile picture: %w", err)
	}
	url, err := s.blobs.DownloadURL(ctx, p)
	if err != nil {
		return "", fmt.Errorf("resolve profile picture url: %w", err)
	}
	return url, nil
}

// ProfilePictureURL resolves the avatar URL of any registered identity.
func (s *Service) ProfilePictureURL(ctx context.Context, id identity.ID) (string, error) {
	p := blob.ProfilePicturePath(id.String() + "_profile_picture.png")
	url, err := s.blobs.DownloadURL(ctx, p)
	if err != nil {
		return "", fmt.Errorf("resolve profile picture url: %w", err)
	}
	return url, nil
}
