package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ourchat/ourchat/internal/identity"
	"github.com/ourchat/ourchat/internal/messaging"
	"github.com/ourchat/ourchat/internal/models"
)

// Users prints the whole directory.
func (a *App) Users(ctx context.Context) error {
	entries, err := a.dir.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		printlnFn(fmt.Sprintf("%s  <%s>", e.FullName, e.Identity))
	}
	return nil
}

// Find prompts for a query and prints matching users.
func (a *App) Find(ctx context.Context) error {
	query, err := getSimpleText(a.reader, "Search users", os.Stdout)
	if err != nil {
		return err
	}
	entries, err := a.dir.Search(ctx, query)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printlnFn("No matches")
		return nil
	}
	for _, e := range entries {
		printlnFn(fmt.Sprintf("%s  <%s>", e.FullName, e.Identity))
	}
	return nil
}

// requireLogin gates commands that need a signed-in user. It prints a hint
// and reports false instead of failing, matching how prompts behave.
func (a *App) requireLogin() bool {
	if a.user == nil {
		printlnFn("Sign in first")
		return false
	}
	return true
}

// List prints the signed-in user's conversations with their previews.
func (a *App) List(ctx context.Context) error {
	if !a.requireLogin() {
		return nil
	}
	summaries, err := a.index.List(ctx, a.user.Identity())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		printlnFn("No conversations yet")
		return nil
	}
	for _, c := range summaries {
		marker := " "
		if !c.Latest.Read {
			marker = "*"
		}
		printlnFn(fmt.Sprintf("%s %s: %s  [%s]",
			marker, c.OtherUserName, c.Latest.Text, c.Latest.SentAt.Format(time.RFC822)))
	}
	return nil
}

// Open selects a counterparty by email and shows the conversation history if
// one exists. With no prior conversation, the first send will create one.
func (a *App) Open(ctx context.Context) error {
	if !a.requireLogin() {
		return nil
	}
	email, err := getSimpleText(a.reader, "Enter user email", os.Stdout)
	if err != nil {
		return err
	}
	peerID := identity.Normalize(email)

	peer, err := a.dir.Lookup(ctx, peerID)
	if err != nil {
		return err
	}
	a.peer = messaging.Recipient{ID: peerID, Name: peer.FullName()}
	a.conversationID = ""

	summaries, err := a.index.List(ctx, a.user.Identity())
	if err != nil {
		return err
	}
	for _, c := range summaries {
		if c.OtherUserID == peerID {
			a.conversationID = c.ID
			break
		}
	}

	if a.conversationID == "" {
		printlnFn("New conversation with", a.peer.Name)
		return nil
	}

	history, err := a.history.Fetch(ctx, a.conversationID)
	if err != nil {
		return err
	}
	for _, m := range history {
		a.printMessage(m)
	}

	// opening the conversation clears its unread marker
	if err := a.index.MarkRead(ctx, a.user.Identity(), a.conversationID); err != nil {
		a.log.Warn(ctx, "could not mark conversation read", "conversation", a.conversationID, "error", err)
	}
	return nil
}

// Send sends a text message in the open conversation, creating the
// conversation on the first message.
func (a *App) Send(ctx context.Context) error {
	if !a.requireLogin() {
		return nil
	}
	if a.peer.ID == "" {
		printlnFn("Open a conversation first")
		return nil
	}
	text, err := getSimpleText(a.reader, "Message", os.Stdout)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}

	if a.conversationID == "" {
		convID, err := a.chat.CreateConversation(ctx, *a.user, a.peer, models.KindText, text)
		if err != nil {
			return err
		}
		a.conversationID = convID
		return nil
	}

	_, err = a.chat.Send(ctx, a.conversationID, *a.user, a.peer, models.KindText, text)
	return err
}

// Photo sends a photo attachment in the open conversation.
func (a *App) Photo(ctx context.Context) error {
	return a.sendMedia(ctx, models.KindPhoto)
}

// Video sends a video attachment in the open conversation.
func (a *App) Video(ctx context.Context) error {
	return a.sendMedia(ctx, models.KindVideo)
}

func (a *App) sendMedia(ctx context.Context, kind models.MessageKind) error {
	if !a.requireLogin() {
		return nil
	}
	if a.conversationID == "" {
		printlnFn("Open an existing conversation first")
		return nil
	}
	fileName, err := getSimpleText(a.reader, "Enter file path", os.Stdout)
	if err != nil {
		return err
	}

	f, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	msg, err := a.chat.SendMedia(ctx, a.conversationID, *a.user, a.peer, kind, filepath.Ext(fileName), f)
	if err != nil {
		return err
	}
	printlnFn("Sent:", msg.Content)
	return nil
}

// Read marks the open conversation as read in the signed-in user's index.
func (a *App) Read(ctx context.Context) error {
	if !a.requireLogin() {
		return nil
	}
	if a.conversationID == "" {
		printlnFn("Open a conversation first")
		return nil
	}
	return a.index.MarkRead(ctx, a.user.Identity(), a.conversationID)
}

func (a *App) printMessage(m models.Message) {
	who := m.SenderID.String()
	if m.SenderID == a.user.Identity() {
		who = "me"
	}
	body := m.Content
	if m.Kind != models.KindText {
		body = fmt.Sprintf("[%s] %s", m.Kind, m.Content)
	}
	printlnFn(fmt.Sprintf("%s  %s: %s", m.SentAt.Format(time.RFC822), who, body))
}
