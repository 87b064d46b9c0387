////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mongostore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/parley/parley-wasm/backend"
)

const accountsCollection = "accounts"

// account is the stored form of an identity. Accounts are keyed on their
// normalised email.
type account struct {
	Email       string    `bson:"_id"`
	ID          string    `bson:"id"`
	Hash        []byte    `bson:"hash,omitempty"`
	DisplayName string    `bson:"displayName"`
	PhotoURL    string    `bson:"photoUrl"`
	Provider    string    `bson:"provider"`
	CreatedAt   time.Time `bson:"createdAt"`
}

func (a account) principal() backend.Principal {
	return backend.Principal{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
		Provider:    a.Provider,
	}
}

// Accounts is a backend.IdentityProvider that keeps bcrypt password hashes in
// a Mongo collection. The signed-in principal is held in process.
type Accounts struct {
	*backend.SessionTracker
	col  *mongo.Collection
	cost int
}

// NewAccounts returns an identity provider storing accounts in the store's
// database.
func NewAccounts(s *Store) *Accounts {
	return &Accounts{
		SessionTracker: backend.NewSessionTracker(),
		col:            s.db.Collection(accountsCollection),
		cost:           bcrypt.DefaultCost,
	}
}

// CreateAccount registers an email and password account and signs it in.
func (a *Accounts) CreateAccount(
	ctx context.Context, c backend.Credential) (backend.Principal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), a.cost)
	if err != nil {
		return backend.Principal{}, errors.Wrap(err, "failed to hash password")
	}

	acc := newAccount(c, backend.EmailProvider)
	acc.Hash = hash
	if _, err = a.col.InsertOne(ctx, acc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return backend.Principal{}, errors.WithMessagef(
				backend.ErrAccountExists, "%s", acc.Email)
		}
		return backend.Principal{}, errors.Wrap(err, "failed to store account")
	}

	jww.INFO.Printf("[MONGO] Created account %s for %s", acc.ID, acc.Email)

	p := acc.principal()
	a.Set(&p)
	return p, nil
}

// EstablishSession signs in. Accounts of OAuth credentials are created on
// first use.
func (a *Accounts) EstablishSession(
	ctx context.Context, c backend.Credential) (backend.Principal, error) {
	email := normaliseEmail(c.Email)

	acc, exists, err := a.find(ctx, email)
	if err != nil {
		return backend.Principal{}, err
	}

	if !exists {
		if !c.IsOAuth() {
			return backend.Principal{}, errors.WithMessagef(
				backend.ErrInvalidCredentials, "no account for %s", email)
		}
		if acc, err = a.createOAuth(ctx, c); err != nil {
			return backend.Principal{}, err
		}
	} else if !c.IsOAuth() {
		if len(acc.Hash) == 0 {
			return backend.Principal{}, errors.WithMessagef(
				backend.ErrInvalidCredentials, "%s signs in with %s",
				email, acc.Provider)
		}
		err = bcrypt.CompareHashAndPassword(acc.Hash, []byte(c.Password))
		if err != nil {
			return backend.Principal{}, errors.WithMessage(
				backend.ErrInvalidCredentials, "password mismatch")
		}
	}

	p := acc.principal()
	a.Set(&p)
	return p, nil
}

// createOAuth stores a new OAuth account. If another client created it first,
// that account is returned.
func (a *Accounts) createOAuth(
	ctx context.Context, c backend.Credential) (account, error) {
	acc := newAccount(c, c.Provider)
	_, err := a.col.InsertOne(ctx, acc)
	if mongo.IsDuplicateKeyError(err) {
		existing, _, err := a.find(ctx, acc.Email)
		return existing, err
	} else if err != nil {
		return account{}, errors.Wrap(err, "failed to store account")
	}

	jww.INFO.Printf("[MONGO] Created %s account %s for %s",
		acc.Provider, acc.ID, acc.Email)
	return acc, nil
}

// UpdateProfile changes the display name and photo of the current user.
func (a *Accounts) UpdateProfile(ctx context.Context, p backend.Profile) error {
	current := a.Current()
	if current == nil {
		return backend.ErrNoSession
	}

	_, err := a.col.UpdateOne(ctx, bson.D{{Key: idKey, Value: current.Email}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "displayName", Value: p.DisplayName},
			{Key: "photoUrl", Value: p.PhotoURL},
		}}})
	if err != nil {
		return errors.Wrap(err, "failed to update profile")
	}

	current.DisplayName = p.DisplayName
	current.PhotoURL = p.PhotoURL
	a.Set(current)
	return nil
}

// EndSession signs out the current user.
func (a *Accounts) EndSession(context.Context) error {
	a.Set(nil)
	return nil
}

func (a *Accounts) find(
	ctx context.Context, email string) (account, bool, error) {
	var acc account
	err := a.col.FindOne(ctx, bson.D{{Key: idKey, Value: email}}).Decode(&acc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return account{}, false, nil
	} else if err != nil {
		return account{}, false, errors.Wrapf(err, "failed to look up %s", email)
	}
	return acc, true, nil
}

func newAccount(c backend.Credential, provider string) account {
	return account{
		Email:       normaliseEmail(c.Email),
		ID:          uuid.NewString(),
		DisplayName: c.DisplayName,
		PhotoURL:    c.PhotoURL,
		Provider:    provider,
		CreatedAt:   time.Now().UTC(),
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
