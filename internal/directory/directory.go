// Package directory maintains the global list of registered users used for
// search, plus each user's own profile record.
package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/ourchat/ourchat/internal/common"
	"github.com/ourchat/ourchat/internal/identity"
	"github.com/ourchat/ourchat/internal/logging"
	"github.com/ourchat/ourchat/internal/models"
	"github.com/ourchat/ourchat/internal/store"
)

// usersPath is the single global collection every registration appends to.
const usersPath = "users"

// Entry is one row of the global user directory.
type Entry struct {
	Identity identity.ID
	FullName string
}

func (e Entry) wire() map[string]any {
	return map[string]any{
		"safe_email": e.Identity.String(),
		"full_name":  e.FullName,
	}
}

type Directory struct {
	store store.Store
	log   logging.Logger
}

func New(s store.Store, log logging.Logger) *Directory {
	return &Directory{store: s, log: log}
}

// Register writes the user's own record and appends a directory entry.
//
// The two writes are not transactional with each other; the directory append
// retries on conflict so a concurrent registration cannot erase it. A repeat
// registration for the same identity returns common.ErrAlreadyExists and the
// directory stays deduplicated.
func (d *Directory) Register(ctx context.Context, user models.User) error {
	id := user.Identity()

	err := store.UpdateTx(ctx, d.store, id.String(), func(snap store.Snapshot) (any, error) {
		if snap.Exists() {
			return nil, fmt.Errorf("user %s: %w", id, common.ErrAlreadyExists)
		}
		return user.Wire(), nil
	})
	if err != nil {
		return err
	}

	entry := Entry{Identity: id, FullName: user.FullName()}
	err = store.UpdateTx(ctx, d.store, usersPath, func(snap store.Snapshot) (any, error) {
		collection, ok := snap.Value.([]any)
		if !ok {
			// first user ever: the collection is created as a singleton
			return []any{entry.wire()}, nil
		}
		for _, raw := range collection {
			if existing, derr := entryFromWire(raw); derr == nil && existing.Identity == id {
				d.log.Warn(ctx, "directory entry already present, skipping append", "identity", id)
				return collection, nil
			}
		}
		return append(collection, entry.wire()), nil
	})
	if err != nil {
		return fmt.Errorf("append directory entry for %s: %w", id, err)
	}
	return nil
}

// Exists probes for a user record. I/O failures are reported as errors, not
// as "not found".
func (d *Directory) Exists(ctx context.Context, id identity.ID) (bool, error) {
	snap, err := d.store.Read(ctx, id.String())
	if err != nil {
		return false, fmt.Errorf("probe user %s: %w", id, err)
	}
	return snap.Exists(), nil
}

// Lookup reads the first and last name from a user's own record. The email
// cannot be recovered from the record, so User.Email carries the identity
// unless the caller knows better.
func (d *Directory) Lookup(ctx context.Context, id identity.ID) (models.User, error) {
	snap, err := d.store.Read(ctx, id.String())
	if err != nil {
		return models.User{}, fmt.Errorf("fetch user %s: %w", id, err)
	}
	if !snap.Exists() {
		return models.User{}, fmt.Errorf("user %s: %w", id, common.ErrNotFound)
	}
	dict, ok := snap.Value.(map[string]any)
	if !ok {
		return models.User{}, fmt.Errorf("user record %s: %w", id, common.ErrFetch)
	}
	firstName, _ := dict["firstName"].(string)
	lastName, _ := dict["lastName"].(string)
	return models.User{FirstName: firstName, LastName: lastName, Email: id.String()}, nil
}

// ListAll fetches the whole directory. An absent or malformed collection is
// common.ErrFetch.
func (d *Directory) ListAll(ctx context.Context) ([]Entry, error) {
	snap, err := d.store.Read(ctx, usersPath)
	if err != nil {
		return nil, fmt.Errorf("fetch directory: %w", err)
	}
	collection, ok := snap.Value.([]any)
	if !ok {
		return nil, fmt.Errorf("directory collection: %w", common.ErrFetch)
	}

	entries := make([]Entry, 0, len(collection))
	for _, raw := range collection {
		entry, err := entryFromWire(raw)
		if err != nil {
			return nil, fmt.Errorf("directory collection: %w: %w", common.ErrFetch, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Search returns directory entries whose name or identity contains the query,
// case-insensitively.
func (d *Directory) Search(ctx context.Context, query string) ([]Entry, error) {
	entries, err := d.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	matches := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.FullName), q) ||
			strings.Contains(strings.ToLower(e.Identity.String()), q) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

func entryFromWire(v any) (Entry, error) {
	dict, ok := v.(map[string]any)
	if !ok {
		return Entry{}, fmt.Errorf("directory entry is %T, want map", v)
	}
	safeEmail, ok := dict["safe_email"].(string)
	if !ok {
		return Entry{}, fmt.Errorf("directory entry: missing safe_email")
	}
	fullName, ok := dict["full_name"].(string)
	if !ok {
		return Entry{}, fmt.Errorf("directory entry: missing full_name")
	}
	return Entry{Identity: identity.ID(safeEmail), FullName: fullName}, nil
}
