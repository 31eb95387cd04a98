package cli

import (
	"context"
	"os"
	"strings"

	"github.com/ourchat/ourchat/internal/auth"
	"github.com/ourchat/ourchat/internal/common"
	"github.com/ourchat/ourchat/internal/messaging"
	"github.com/ourchat/ourchat/internal/models"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for the profile fields and credentials, creates the
// account and publishes the user in the directory.
//
// The password byte slice is securely wiped before returning.
func (a *App) Register(ctx context.Context) error {
	firstName, err := getSimpleText(a.reader, "Enter first name", os.Stdout)
	if err != nil {
		return err
	}
	lastName, err := getSimpleText(a.reader, "Enter last name", os.Stdout)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user := models.User{FirstName: firstName, LastName: lastName, Email: email}

	if _, err := a.auth.CreateAccount(ctx, email, password); err != nil {
		return err
	}
	if err := a.dir.Register(ctx, user); err != nil {
		return err
	}

	a.user = &user
	printlnFn("Success!")
	return nil
}

// Login prompts for credentials, signs in and loads the user's profile
// record. The password is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	id, err := a.auth.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	user, err := a.dir.Lookup(ctx, id)
	if err != nil {
		return err
	}
	user.Email = email

	a.user = &user
	printlnFn("Welcome back,", user.FullName())
	return nil
}

// Social signs in through an external identity provider. A first-time social
// user is also published in the directory, with the display name split into
// first and last name the way the provider formats it.
func (a *App) Social(ctx context.Context) error {
	provider, err := getSimpleText(a.reader, "Enter provider (google|facebook)", os.Stdout)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	displayName, err := getSimpleText(a.reader, "Enter display name", os.Stdout)
	if err != nil {
		return err
	}
	token, err := getSimpleText(a.reader, "Enter provider token", os.Stdout)
	if err != nil {
		return err
	}

	cred := auth.ExternalCredential{
		Provider:    provider,
		Email:       email,
		DisplayName: displayName,
		Token:       token,
	}
	id, err := a.auth.SignInExternal(ctx, cred)
	if err != nil {
		return err
	}

	firstName, lastName := splitDisplayName(displayName)
	user := models.User{FirstName: firstName, LastName: lastName, Email: email}

	known, err := a.dir.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !known {
		if err := a.dir.Register(ctx, user); err != nil {
			return err
		}
	} else {
		stored, err := a.dir.Lookup(ctx, id)
		if err != nil {
			return err
		}
		stored.Email = email
		user = stored
	}

	a.user = &user
	printlnFn("Welcome,", user.FullName())
	return nil
}

// Logout ends the session and forgets the open conversation.
func (a *App) Logout(ctx context.Context) error {
	a.auth.SignOut()
	a.user = nil
	a.conversationID = ""
	a.peer = messaging.Recipient{}
	printlnFn("Signed out")
	return nil
}

func splitDisplayName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
