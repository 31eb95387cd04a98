package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ourchat/ourchat/internal/auth"
	"github.com/ourchat/ourchat/internal/config"
	"github.com/ourchat/ourchat/internal/directory"
	"github.com/ourchat/ourchat/internal/identity"
	"github.com/ourchat/ourchat/internal/logging"
	"github.com/ourchat/ourchat/internal/messaging"
	"github.com/ourchat/ourchat/internal/models"
)

// authService is the slice of auth.Service the CLI needs; tests provide a stub.
type authService interface {
	CreateAccount(ctx context.Context, email string, password []byte) (identity.ID, error)
	SignIn(ctx context.Context, email string, password []byte) (identity.ID, error)
	SignInExternal(ctx context.Context, cred auth.ExternalCredential) (identity.ID, error)
	SignOut()
}

type directoryService interface {
	Register(ctx context.Context, user models.User) error
	Exists(ctx context.Context, id identity.ID) (bool, error)
	Lookup(ctx context.Context, id identity.ID) (models.User, error)
	ListAll(ctx context.Context) ([]directory.Entry, error)
	Search(ctx context.Context, query string) ([]directory.Entry, error)
}

type chatService interface {
	CreateConversation(ctx context.Context, sender models.User, recipient messaging.Recipient, kind models.MessageKind, content string) (string, error)
	Send(ctx context.Context, conversationID string, sender models.User, recipient messaging.Recipient, kind models.MessageKind, content string) (models.Message, error)
	SendMedia(ctx context.Context, conversationID string, sender models.User, recipient messaging.Recipient, kind models.MessageKind, ext string, r io.Reader) (models.Message, error)
	SetProfilePicture(ctx context.Context, user models.User, r io.Reader) (string, error)
	ProfilePictureURL(ctx context.Context, id identity.ID) (string, error)
}

type indexService interface {
	List(ctx context.Context, owner identity.ID) ([]models.Conversation, error)
	MarkRead(ctx context.Context, owner identity.ID, conversationID string) error
}

type historyService interface {
	Fetch(ctx context.Context, conversationID string) ([]models.Message, error)
}

// App holds the interactive session: the signed-in user and the currently
// open conversation, if any.
type App struct {
	config  *config.Config
	auth    authService
	dir     directoryService
	chat    chatService
	index   indexService
	history historyService
	log     logging.Logger
	reader  *bufio.Reader

	user *models.User

	// open conversation; conversationID is empty when the conversation
	// has not been created yet (first message pending)
	conversationID string
	peer           messaging.Recipient
}

func NewApp(c *config.Config, a authService, d directoryService, chat chatService, ix indexService, h historyService, log logging.Logger) *App {
	return &App{
		config:  c,
		auth:    a,
		dir:     d,
		chat:    chat,
		index:   ix,
		history: h,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
	}
}

func (a *App) isLoggedIn() bool {
	return a.user != nil
}

func (a *App) getStatus() string {
	s := ""
	if a.user != nil {
		s = a.user.Email
	}
	if a.conversationID != "" || a.peer.ID != "" {
		s = s + " / " + a.peer.Name
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) Run(ctx context.Context) {
	printlnFn("OurChat CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}
