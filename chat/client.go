////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
)

// Client establishes sessions against a document store and identity provider.
// A successful Register, SignIn, SignInWithProvider or Resume returns a running
// Session with the user marked online.
type Client struct {
	store    backend.DocumentStore
	identity backend.IdentityProvider
	media    backend.MediaHost
	params   Params
}

// NewClient returns a client using the given backends. media may be nil, in
// which case attachments and avatars cannot be uploaded. Zero fields of params
// are replaced with their defaults.
func NewClient(store backend.DocumentStore, identity backend.IdentityProvider,
	media backend.MediaHost, params Params) *Client {
	params.fill()
	return &Client{
		store:    store,
		identity: identity,
		media:    media,
		params:   params,
	}
}

// Register creates an email/password account and its user record.
func (c *Client) Register(
	ctx context.Context, form RegisterForm, events EventModel) (*Session, error) {
	if err := form.validate(); err != nil {
		return nil, newError(ValidationError, "Register", err)
	}

	userName := strings.TrimSpace(form.UserName)
	p, err := c.identity.CreateAccount(ctx, backend.Credential{
		Provider:    backend.EmailProvider,
		Email:       strings.TrimSpace(form.Email),
		Password:    form.Password,
		DisplayName: userName,
	})
	if err != nil {
		return nil, identityError("Register", err)
	}

	fields := newUserFields(p, userName)
	fields[fieldProvider] = backend.EmailProvider
	if err = c.store.WriteDoc(ctx, userPath(p.ID), fields); err != nil {
		return nil, newError(NetworkError, "Register", err)
	}

	jww.INFO.Printf("[CLIENT] Registered %s as %s", p.Email, p.ID)

	return c.open(ctx, "Register", p, events)
}

// SignIn establishes a session with an email and password.
func (c *Client) SignIn(
	ctx context.Context, form SignInForm, events EventModel) (*Session, error) {
	if err := form.validate(); err != nil {
		return nil, newError(ValidationError, "SignIn", err)
	}

	p, err := c.identity.EstablishSession(ctx, backend.Credential{
		Provider: backend.EmailProvider,
		Email:    strings.TrimSpace(form.Email),
		Password: form.Password,
	})
	if err != nil {
		return nil, identityError("SignIn", err)
	}

	return c.goOnline(ctx, "SignIn", p, p.DisplayName, events)
}

// SignInWithProvider establishes a session with a federated credential. The
// user record is created on first sign-in and looked up by email afterwards.
func (c *Client) SignInWithProvider(ctx context.Context,
	cred backend.Credential, events EventModel) (*Session, error) {
	if !cred.IsOAuth() {
		return nil, newError(ValidationError, "SignInWithProvider",
			errors.Errorf("provider %q is not a federated provider", cred.Provider))
	}

	p, err := c.identity.EstablishSession(ctx, cred)
	if err != nil {
		return nil, identityError("SignInWithProvider", err)
	}

	docs, err := c.store.Query(ctx, backend.Query{
		Collection: usersCollection,
		Filters:    []backend.Filter{{Field: fieldEmail, Value: p.Email}},
		Limit:      1,
	})
	if err != nil {
		return nil, newError(NetworkError, "SignInWithProvider", err)
	}

	if len(docs) == 0 {
		err = c.store.WriteDoc(
			ctx, userPath(p.ID), newUserFields(p, p.DisplayName))
		if err != nil {
			return nil, newError(NetworkError, "SignInWithProvider", err)
		}
		jww.INFO.Printf("[CLIENT] Created user record for %s via %s",
			p.Email, p.Provider)
		return c.open(ctx, "SignInWithProvider", p, events)
	}

	return c.goOnline(ctx, "SignInWithProvider", p, p.DisplayName, events)
}

// Resume opens a session for a principal restored by the identity provider,
// such as one delivered to OnSessionChange after a page reload.
func (c *Client) Resume(ctx context.Context, p backend.Principal,
	events EventModel) (*Session, error) {
	if p.ID == "" {
		return nil, newError(StateError, "Resume", backend.ErrNoSession)
	}
	return c.goOnline(ctx, "Resume", p, p.DisplayName, events)
}

// OnSessionChange registers fn to be called with the current principal and
// every time it changes. fn receives nil when signed out.
func (c *Client) OnSessionChange(
	fn func(p *backend.Principal)) backend.Unsubscribe {
	return c.identity.OnSessionChange(fn)
}

// goOnline marks an existing user online and opens the session. A user
// without a record gets one.
func (c *Client) goOnline(ctx context.Context, op string,
	p backend.Principal, userName string, events EventModel) (*Session, error) {
	err := c.store.UpdateDoc(
		ctx, userPath(p.ID), backend.Fields{fieldIsOnline: true})
	if errors.Is(err, backend.ErrNotFound) {
		jww.WARN.Printf("[CLIENT] No user record for %s, creating one", p.ID)
		err = c.store.WriteDoc(ctx, userPath(p.ID), newUserFields(p, userName))
	}
	if err != nil {
		return nil, newError(NetworkError, op, err)
	}

	return c.open(ctx, op, p, events)
}

// open loads the user record and starts the session.
func (c *Client) open(ctx context.Context, op string, p backend.Principal,
	events EventModel) (*Session, error) {
	self, err := c.loadUser(ctx, p.ID)
	if err != nil {
		return nil, newError(NetworkError, op, err)
	}
	if self.Email == "" {
		self.Email = p.Email
	}

	return newSession(self, c.store, c.media, c.identity, c.params, events), nil
}

// loadUser reads the user record of the given ID.
func (c *Client) loadUser(ctx context.Context, id string) (User, error) {
	docs, err := c.store.Query(ctx, backend.Query{
		Collection: usersCollection,
		Filters:    []backend.Filter{{Field: fieldID, Value: id}},
		Limit:      1,
	})
	if err != nil {
		return User{}, err
	} else if len(docs) == 0 {
		return User{}, errors.WithMessagef(backend.ErrNotFound, "user %s", id)
	}
	return userFromDoc(docs[0]), nil
}

// identityError classifies a failure of the identity provider. Rejected
// credentials are AuthErrors; anything else is a NetworkError.
func identityError(op string, err error) error {
	switch {
	case errors.Is(err, backend.ErrInvalidCredentials),
		errors.Is(err, backend.ErrAccountExists),
		errors.Is(err, backend.ErrNoSession):
		return newError(AuthError, op, err)
	default:
		return newError(NetworkError, op, err)
	}
}
