////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"golang.org/x/crypto/bcrypt"
)

// MemoryIdentity is an in-memory IdentityProvider. Passwords are stored as
// bcrypt hashes. OAuth credentials are trusted as given.
type MemoryIdentity struct {
	*SessionTracker
	accounts map[string]*memAccount
	mux      sync.Mutex
}

type memAccount struct {
	principal Principal
	hash      []byte
}

// NewMemoryIdentity returns an IdentityProvider with no accounts.
func NewMemoryIdentity() *MemoryIdentity {
	return &MemoryIdentity{
		SessionTracker: NewSessionTracker(),
		accounts:       make(map[string]*memAccount),
	}
}

// CreateAccount registers an email and password account and signs it in.
func (mi *MemoryIdentity) CreateAccount(
	ctx context.Context, c Credential) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}

	email := normaliseEmail(c.Email)
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.MinCost)
	if err != nil {
		return Principal{}, errors.Wrap(err, "failed to hash password")
	}

	mi.mux.Lock()
	if _, exists := mi.accounts[email]; exists {
		mi.mux.Unlock()
		return Principal{}, errors.WithMessagef(ErrAccountExists, "%s", email)
	}
	a := &memAccount{
		principal: Principal{
			ID:          uuid.NewString(),
			Email:       email,
			DisplayName: c.DisplayName,
			Provider:    EmailProvider,
		},
		hash: hash,
	}
	mi.accounts[email] = a
	mi.mux.Unlock()

	jww.DEBUG.Printf("[IDENTITY] Created account %s for %s",
		a.principal.ID, email)

	return mi.setCurrent(a.principal), nil
}

// EstablishSession signs in. OAuth accounts are created on first use.
func (mi *MemoryIdentity) EstablishSession(
	ctx context.Context, c Credential) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}

	email := normaliseEmail(c.Email)

	mi.mux.Lock()
	a, exists := mi.accounts[email]
	if c.IsOAuth() && !exists {
		a = &memAccount{principal: Principal{
			ID:          uuid.NewString(),
			Email:       email,
			DisplayName: c.DisplayName,
			PhotoURL:    c.PhotoURL,
			Provider:    c.Provider,
		}}
		mi.accounts[email] = a
		exists = true
	}
	mi.mux.Unlock()

	if !exists {
		return Principal{}, errors.WithMessagef(
			ErrInvalidCredentials, "no account for %s", email)
	}

	if !c.IsOAuth() {
		if a.hash == nil {
			return Principal{}, errors.WithMessagef(ErrInvalidCredentials,
				"%s signs in with %s", email, a.principal.Provider)
		}
		err := bcrypt.CompareHashAndPassword(a.hash, []byte(c.Password))
		if err != nil {
			return Principal{}, errors.WithMessage(
				ErrInvalidCredentials, "password mismatch")
		}
	}

	return mi.setCurrent(a.principal), nil
}

// UpdateProfile changes the display name and photo of the current user.
func (mi *MemoryIdentity) UpdateProfile(ctx context.Context, p Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	current := mi.Current()
	if current == nil {
		return ErrNoSession
	}

	mi.mux.Lock()
	a := mi.accounts[current.Email]
	a.principal.DisplayName = p.DisplayName
	a.principal.PhotoURL = p.PhotoURL
	updated := a.principal
	mi.mux.Unlock()

	mi.setCurrent(updated)
	return nil
}

// EndSession signs out the current user.
func (mi *MemoryIdentity) EndSession(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mi.Set(nil)
	return nil
}

// setCurrent signs in the principal and returns it.
func (mi *MemoryIdentity) setCurrent(p Principal) Principal {
	mi.Set(&p)
	return p
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
