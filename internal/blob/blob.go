// Package blob defines the blob-store contract used for profile pictures and
// conversation media, with an S3 implementation and an in-memory one for
// tests.
package blob

import (
	"context"
	"fmt"
	"io"
)

// Store is the blob-store contract: upload bytes under a path and resolve a
// path to a retrievable URL.
type Store interface {
	Upload(ctx context.Context, path string, r io.Reader) error
	DownloadURL(ctx context.Context, path string) (string, error)
}

// ProfilePicturePath is the storage path for a user's avatar file.
func ProfilePicturePath(fileName string) string {
	return "images/" + fileName
}

// ConversationMediaPath is the storage path for a media attachment of a
// conversation.
func ConversationMediaPath(conversationID, fileName string) string {
	return fmt.Sprintf("conversations/%s/%s", conversationID, fileName)
}
