////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package wasm

import (
	"context"
	"syscall/js"

	"github.com/hack-pad/safejs"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
	"gitlab.com/parley/parley-wasm/utils"
)

// identityErrors maps the names of Javascript Errors an identity provider
// rejects with to the backend errors.
var identityErrors = map[string]error{
	"InvalidCredentials": backend.ErrInvalidCredentials,
	"AccountExists":      backend.ErrAccountExists,
	"NoSession":          backend.ErrNoSession,
}

var identityMethods = []string{"createAccount", "establishSession",
	"updateProfile", "endSession", "onSessionChange"}

// jsIdentityProvider wraps a Javascript object to adhere to the
// [backend.IdentityProvider] interface. It is the glue to a browser
// authentication SDK such as Firebase Auth.
//
// The object must implement:
//
//	createAccount(credential) => Promise<Principal>
//	establishSession(credential) => Promise<Principal>
//	updateProfile({displayName, photoUrl}) => Promise<void>
//	endSession() => Promise<void>
//	onSessionChange((principal: Principal | null) => void) => () => void
//
// where credential is {provider, email, password, displayName, photoUrl,
// token} and Principal is {id, email, displayName, photoUrl, provider}.
// Rejections named "InvalidCredentials", "AccountExists" or "NoSession" are
// mapped to the matching backend errors.
type jsIdentityProvider struct {
	v safejs.Value
}

func newJsIdentityProvider(v js.Value) (*jsIdentityProvider, error) {
	for _, m := range identityMethods {
		if !utils.HasMethod(v, m) {
			return nil, errors.Errorf("identity provider has no method %q", m)
		}
	}
	return &jsIdentityProvider{v: safejs.Safe(v)}, nil
}

func (ip *jsIdentityProvider) call(
	ctx context.Context, method string, args ...any) (js.Value, error) {
	p, err := ip.v.Call(method, args...)
	if err != nil {
		return js.Undefined(), errors.Wrapf(err, "%s threw", method)
	}

	v, err := utils.Await(ctx, safejs.Unsafe(p))
	if sentinel, ok := identityErrors[utils.ExceptionName(err)]; ok {
		return js.Undefined(), errors.WithMessage(sentinel, err.Error())
	}
	return v, err
}

func (ip *jsIdentityProvider) CreateAccount(
	ctx context.Context, c backend.Credential) (backend.Principal, error) {
	return ip.session(ctx, "createAccount", c)
}

func (ip *jsIdentityProvider) EstablishSession(
	ctx context.Context, c backend.Credential) (backend.Principal, error) {
	return ip.session(ctx, "establishSession", c)
}

func (ip *jsIdentityProvider) session(ctx context.Context, method string,
	c backend.Credential) (backend.Principal, error) {
	v, err := ip.call(ctx, method, credentialToJS(c))
	if err != nil {
		return backend.Principal{}, err
	}

	var p backend.Principal
	if err = utils.FromJS(v, &p); err != nil {
		return backend.Principal{}, err
	} else if p.ID == "" {
		return backend.Principal{}, errors.Errorf("%s returned no user ID",
			method)
	}
	return p, nil
}

func (ip *jsIdentityProvider) UpdateProfile(
	ctx context.Context, p backend.Profile) error {
	profile := utils.Object.New()
	profile.Set("displayName", p.DisplayName)
	profile.Set("photoUrl", p.PhotoURL)
	_, err := ip.call(ctx, "updateProfile", profile)
	return err
}

func (ip *jsIdentityProvider) EndSession(ctx context.Context) error {
	_, err := ip.call(ctx, "endSession")
	return err
}

func (ip *jsIdentityProvider) OnSessionChange(
	fn func(p *backend.Principal)) backend.Unsubscribe {
	convert := func(args []js.Value) func() {
		if len(args) == 0 || args[0].IsNull() || args[0].IsUndefined() {
			return func() { fn(nil) }
		}
		var p backend.Principal
		if err := utils.FromJS(args[0], &p); err != nil {
			jww.ERROR.Printf("[JS] Invalid principal: %+v", err)
			return func() {}
		}
		return func() { fn(&p) }
	}

	unsub, err := subscribe(ip.v, "onSessionChange", "session", convert)
	if err != nil {
		jww.ERROR.Printf("[JS] Failed to watch the session: %+v", err)
		return func() {}
	}
	return unsub
}

func credentialToJS(c backend.Credential) js.Value {
	obj := utils.Object.New()
	obj.Set("provider", c.Provider)
	obj.Set("email", c.Email)
	obj.Set("password", c.Password)
	obj.Set("displayName", c.DisplayName)
	obj.Set("photoUrl", c.PhotoURL)
	obj.Set("token", c.Token)
	return obj
}

func credentialFromJS(v js.Value) backend.Credential {
	get := func(k string) string {
		if f := v.Get(k); f.Type() == js.TypeString {
			return f.String()
		}
		return ""
	}
	return backend.Credential{
		Provider:    get("provider"),
		Email:       get("email"),
		Password:    get("password"),
		DisplayName: get("displayName"),
		PhotoURL:    get("photoUrl"),
		Token:       get("token"),
	}
}
