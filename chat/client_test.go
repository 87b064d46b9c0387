////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/parley/parley-wasm/backend"
)

// Tests that invalid registration forms are rejected before contacting the
// identity provider.
func TestClient_Register_Validation(t *testing.T) {
	ctx := context.Background()
	store := backend.NewMemoryStore(nil)
	c := NewClient(store, backend.NewMemoryIdentity(), nil, DefaultParams())

	forms := []RegisterForm{
		{UserName: "ab", Email: "ab@example.com", Password: "password"},
		{UserName: "  ab  ", Email: "ab@example.com", Password: "password"},
		{UserName: "abby", Email: "not-an-email", Password: "password"},
		{UserName: "abby", Email: "", Password: "password"},
		{UserName: "abby", Email: "abby@example.com", Password: "12345"},
		{UserName: "abby", Email: "abby@example.com", Password: "  12345  "},
	}

	for i, form := range forms {
		_, err := c.Register(ctx, form, nil)
		if !IsKind(err, ValidationError) {
			t.Errorf("Expected ValidationError for form %d: %+v", i, err)
		}
	}

	require.Zero(t, store.Count(usersCollection))
}

// Tests that Register creates a user record that is online and that a second
// registration with the same email is an AuthError.
func TestClient_Register(t *testing.T) {
	ctx := context.Background()
	store := backend.NewMemoryStore(nil)
	c := NewClient(store, backend.NewMemoryIdentity(), nil, DefaultParams())

	s, err := c.Register(ctx, RegisterForm{
		UserName: " dana ", Email: "dana@example.com", Password: "hunter22"}, nil)
	require.NoError(t, err)
	defer func() { _ = s.Logout(ctx) }()

	self := s.Self()
	require.NotEmpty(t, self.ID)
	require.Equal(t, "dana", self.UserName)
	require.Equal(t, "dana@example.com", self.Email)
	require.Equal(t, backend.EmailProvider, self.Provider)
	require.True(t, self.IsOnline)
	require.False(t, self.CreatedAt.IsZero())

	_, err = c.Register(ctx, RegisterForm{
		UserName: "dana2", Email: "DANA@example.com", Password: "hunter22"}, nil)
	require.True(t, IsKind(err, AuthError), "%+v", err)
	require.Equal(t, 1, store.Count(usersCollection))
}

// Tests that SignIn rejects a wrong password and marks the user online on
// success.
func TestClient_SignIn(t *testing.T) {
	ctx := context.Background()
	store := backend.NewMemoryStore(nil)
	c := NewClient(store, backend.NewMemoryIdentity(), nil, DefaultParams())

	s, err := c.Register(ctx, RegisterForm{
		UserName: "erin", Email: "erin@example.com", Password: "correct horse"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx))

	_, err = c.SignIn(ctx, SignInForm{
		Email: "erin@example.com", Password: "wrong password"}, nil)
	require.True(t, IsKind(err, AuthError), "%+v", err)

	_, err = c.SignIn(ctx, SignInForm{Email: "erin", Password: "whatever"}, nil)
	require.True(t, IsKind(err, ValidationError), "%+v", err)

	s, err = c.SignIn(ctx, SignInForm{
		Email: "erin@example.com", Password: "correct horse"}, nil)
	require.NoError(t, err)
	defer func() { _ = s.Logout(ctx) }()
	require.Equal(t, "erin", s.Self().UserName)
	require.True(t, s.Self().IsOnline)
}

// Tests that a federated sign-in creates the user record once and reuses it
// afterwards.
func TestClient_SignInWithProvider(t *testing.T) {
	ctx := context.Background()
	store := backend.NewMemoryStore(nil)
	c := NewClient(store, backend.NewMemoryIdentity(), nil, DefaultParams())
	cred := backend.Credential{
		Provider:    "google",
		Email:       "fay@example.com",
		DisplayName: "Fay",
		PhotoURL:    "https://example.com/fay.png",
		Token:       "token",
	}

	s, err := c.SignInWithProvider(ctx, cred, nil)
	require.NoError(t, err)
	require.Equal(t, "Fay", s.Self().UserName)
	require.Equal(t, "google", s.Self().Provider)
	require.Equal(t, cred.PhotoURL, s.Self().PhotoURL)
	id := s.Self().ID
	require.NoError(t, s.Logout(ctx))

	s, err = c.SignInWithProvider(ctx, cred, nil)
	require.NoError(t, err)
	defer func() { _ = s.Logout(ctx) }()
	require.Equal(t, id, s.Self().ID)
	require.True(t, s.Self().IsOnline)
	require.Equal(t, 1, store.Count(usersCollection))

	_, err = c.SignInWithProvider(ctx, backend.Credential{
		Provider: backend.EmailProvider, Email: "fay@example.com"}, nil)
	require.True(t, IsKind(err, ValidationError), "%+v", err)
}

// Tests that Resume opens a session for a restored principal and rejects an
// empty one.
func TestClient_Resume(t *testing.T) {
	ctx := context.Background()
	store := backend.NewMemoryStore(nil)
	identity := backend.NewMemoryIdentity()
	c := NewClient(store, identity, nil, DefaultParams())

	s, err := c.Register(ctx, RegisterForm{
		UserName: "gus", Email: "gus@example.com", Password: "password"}, nil)
	require.NoError(t, err)

	var restored *backend.Principal
	unsub := c.OnSessionChange(func(p *backend.Principal) { restored = p })
	unsub()
	require.NotNil(t, restored)

	resumed, err := c.Resume(ctx, *restored, nil)
	require.NoError(t, err)
	require.Equal(t, s.Self().ID, resumed.Self().ID)
	require.NoError(t, resumed.Logout(ctx))

	_, err = c.Resume(ctx, backend.Principal{}, nil)
	require.True(t, IsKind(err, StateError), "%+v", err)
}

// Tests that GetParameters fills unset fields with defaults.
func TestGetParameters(t *testing.T) {
	p, err := GetParameters([]byte(`{"pageSize":25,"chatMediaFolder":"media"}`))
	require.NoError(t, err)

	require.Equal(t, 25, p.PageSize)
	require.Equal(t, "media", p.ChatMediaFolder)
	require.Equal(t, DefaultParams().TypingIdle, p.TypingIdle)
	require.Equal(t, int64(10<<20), p.MaxAttachmentSize)
	require.Equal(t, "profile_images", p.ProfileMediaFolder)
	require.NotNil(t, p.Clock)

	_, err = GetParameters([]byte("{"))
	require.Error(t, err)
}
