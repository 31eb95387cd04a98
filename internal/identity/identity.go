// Package identity maps user-supplied emails to canonical storage keys.
//
// The document store forbids "." in path segments and "@" would make keys
// ambiguous, so both are replaced with "-". The mapping is deterministic and
// total; it is used as the storage key for user records and as the join key
// between the conversation index and the user directory.
package identity

import "strings"

// ID is a normalized, path-safe representation of a user's email.
type ID string

var replacer = strings.NewReplacer(".", "-", "@", "-")

// Normalize derives the storage key for a raw email address.
// Same input always yields the same output; there is no failure mode.
//
//	Normalize("Jane.Doe@x.com") == "Jane-Doe-x-com"
func Normalize(rawEmail string) ID {
	return ID(replacer.Replace(rawEmail))
}

func (id ID) String() string {
	return string(id)
}
