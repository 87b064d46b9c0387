////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package backend defines the external collaborators the chat core talks to:
// the realtime document database, the identity provider and the media host.
// It also contains in-memory implementations of the database and identity
// provider that are used for local runs and tests.
package backend

import (
	"context"

	"github.com/pkg/errors"
)

// Sentinel errors returned by backend implementations. Implementations wrap
// these so callers can test with errors.Is.
var (
	// ErrNotFound is returned by DocumentStore.UpdateDoc when the document
	// does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidCredentials is returned by IdentityProvider.EstablishSession
	// when the email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountExists is returned by IdentityProvider.CreateAccount when an
	// account with the email already exists.
	ErrAccountExists = errors.New("account already exists")

	// ErrNoSession is returned when an operation requires an established
	// session and there is none.
	ErrNoSession = errors.New("no active session")
)

// Unsubscribe cancels a live subscription. It is safe to call more than once.
type Unsubscribe func()

// SnapshotFunc receives the full ordered result of a watched query every time
// it changes. Exactly one of docs or err is meaningful.
type SnapshotFunc func(docs []Doc, err error)

// DocFunc receives the current state of a single watched document. exists is
// false when the document is absent.
type DocFunc func(doc Doc, exists bool, err error)

// DocumentStore is a realtime document database organised as collections of
// documents addressed by slash separated paths (e.g. "users/abc" or
// "chats/a_b/messages/xyz").
type DocumentStore interface {
	// Query performs a one-shot read of the query.
	Query(ctx context.Context, q Query) ([]Doc, error)

	// Watch subscribes to the query. The callback is called once with the
	// initial result and again after every change, always with the full
	// ordered result.
	Watch(q Query, fn SnapshotFunc) (Unsubscribe, error)

	// WatchDoc subscribes to a single document.
	WatchDoc(path string, fn DocFunc) (Unsubscribe, error)

	// WriteDoc creates or replaces the document at path.
	WriteDoc(ctx context.Context, path string, fields Fields) error

	// UpdateDoc merges fields into the existing document at path. Returns an
	// error wrapping ErrNotFound if the document does not exist.
	UpdateDoc(ctx context.Context, path string, fields Fields) error

	// AddDoc creates a document with a backend generated ID in the collection
	// and returns the ID.
	AddDoc(ctx context.Context, collection string, fields Fields) (string, error)
}

// Credential identifies a user to the IdentityProvider.
type Credential struct {
	// Provider is "email" for password accounts or the name of an OAuth
	// provider (e.g. "google").
	Provider string

	Email    string
	Password string

	// DisplayName and PhotoURL are supplied by OAuth providers.
	DisplayName string
	PhotoURL    string

	// Token is an opaque OAuth token.
	Token string
}

// IsOAuth returns true if the credential comes from an OAuth provider.
func (c Credential) IsOAuth() bool {
	return c.Provider != "" && c.Provider != EmailProvider
}

// EmailProvider is the provider name for email and password accounts.
const EmailProvider = "email"

// Principal is the authenticated user as reported by the IdentityProvider.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	Provider    string `json:"provider"`
}

// Profile contains the mutable parts of a Principal.
type Profile struct {
	DisplayName string
	PhotoURL    string
}

// IdentityProvider authenticates users and tracks the current session.
type IdentityProvider interface {
	// CreateAccount registers a new email and password account and
	// establishes a session for it.
	CreateAccount(ctx context.Context, c Credential) (Principal, error)

	// EstablishSession signs in with the credential. OAuth credentials create
	// the account on first use.
	EstablishSession(ctx context.Context, c Credential) (Principal, error)

	// UpdateProfile changes the display name and photo of the current user.
	UpdateProfile(ctx context.Context, p Profile) error

	// EndSession signs out the current user.
	EndSession(ctx context.Context) error

	// OnSessionChange registers fn to be called with the current principal
	// immediately and every time it changes. A nil principal means signed out.
	OnSessionChange(fn func(p *Principal)) Unsubscribe
}

// Attachment is a file to be stored on the MediaHost.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the size of the attachment in bytes.
func (a Attachment) Size() int64 { return int64(len(a.Data)) }

// MediaHost stores files and returns a stable public URL for them.
type MediaHost interface {
	Upload(ctx context.Context, a Attachment, folder string) (string, error)
}
