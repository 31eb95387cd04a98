// Package models defines the chat data model and its document-store wire
// representation.
//
// The store holds JSON-shaped values (map[string]any, []any, string, bool,
// float64). Every type here owns exactly one pair of mapping functions, so the
// on-wire field names live in a single place shared by the directory, the
// conversation index, the message log and the send orchestrator.
package models

import (
	"fmt"

	"github.com/ourchat/ourchat/internal/identity"
)

// User is the account record of a registered user.
type User struct {
	FirstName string
	LastName  string
	Email     string
}

// Identity returns the user's normalized storage key.
func (u User) Identity() identity.ID {
	return identity.Normalize(u.Email)
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// ProfilePictureFileName is the blob-store file name for the user's avatar,
// stored under "images/".
func (u User) ProfilePictureFileName() string {
	return fmt.Sprintf("%s_profile_picture.png", u.Identity())
}

// Wire returns the user's own record as stored under its identity key.
// The "conversations" child is owned by the conversation index and is not
// part of this record.
func (u User) Wire() map[string]any {
	return map[string]any{
		"firstName": u.FirstName,
		"lastName":  u.LastName,
	}
}
