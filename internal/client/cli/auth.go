package cli

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for credentials and tries to authenticate.
//
// The method first attempts an online login against the server. If the server
// is unreachable it falls back to verifying the password against the locally
// replicated user document, so a known inspector can keep working in the
// field. On success it sets a.userName and updates connectivity Mode:
//   - ModeOnline if the server accepted the credentials,
//   - ModeOffline if only the local fallback succeeded.
//
// A nil error does not necessarily imply ModeOnline; inspect App.Mode for
// the final state.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	err = a.remote.Login(ctx, userName, string(password))
	if err == nil {
		log.Printf("Login successful")
		a.userName = userName
		a.setMode(ModeOnline)
		return nil
	}

	if !errors.Is(err, common.ErrUnreachable) {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	log.Printf("Server unavailable, trying offline login...")
	if err := a.offlineLogin(ctx, userName, string(password)); err != nil {
		log.Printf("Offline login unsuccessful: %s", err.Error())
		return err
	}

	log.Printf("Offline login successful")
	a.userName = userName
	a.setMode(ModeOffline)
	return nil
}

// offlineLogin verifies credentials against the locally replicated user
// document. It only works for users who have synced to this device before.
func (a *App) offlineLogin(ctx context.Context, username, password string) error {
	doc, err := a.store.Documents.Get(ctx, document.UserID(username))
	if err != nil {
		return common.ErrUnauthorized
	}
	user, err := doc.User()
	if err != nil {
		return err
	}
	if !user.VerifyPassword(password) {
		return common.ErrUnauthorized
	}
	return nil
}

// AddUser prompts for account fields and saves a user document locally.
// The account reaches the server and other devices on the next sync.
func (a *App) AddUser(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter full name", os.Stdout)
	if err != nil {
		return err
	}
	role, err := getSimpleText(a.reader, "Enter role (inspector/supervisor)", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	if _, err := a.lifecycle.SaveUser(ctx, userName, name, role, string(password)); err != nil {
		log.Printf("error: %v", err)
		return err
	}

	printlnFn("Success!")
	return nil
}
