package cli

import (
	"context"
	"os"

	"github.com/ourchat/ourchat/internal/identity"
)

// Profile prints the profile picture URL of a user (empty input means the
// signed-in user).
func (a *App) Profile(ctx context.Context) error {
	if !a.requireLogin() {
		return nil
	}
	email, err := getSimpleText(a.reader, "Enter user email (empty for yourself)", os.Stdout)
	if err != nil {
		return err
	}

	id := a.user.Identity()
	if email != "" {
		id = identity.Normalize(email)
	}

	url, err := a.chat.ProfilePictureURL(ctx, id)
	if err != nil {
		return err
	}
	printlnFn(url)
	return nil
}

// SetPic uploads a new profile picture for the signed-in user.
func (a *App) SetPic(ctx context.Context) error {
	if !a.requireLogin() {
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

	url, err := a.chat.SetProfilePicture(ctx, *a.user, f)
	if err != nil {
		return err
	}
	printlnFn("Uploaded:", url)
	return nil
}
