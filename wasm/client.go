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
	"encoding/json"
	"syscall/js"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
	"gitlab.com/parley/parley-wasm/chat"
	"gitlab.com/parley/parley-wasm/indexedDb"
	"gitlab.com/parley/parley-wasm/utils"
)

// ChatClient wraps the [chat.Client] object so its methods can be wrapped to be
// Javascript compatible.
type ChatClient struct {
	api *chat.Client
}

// newChatClientJS creates a new Javascript compatible object (map[string]any)
// that matches the [ChatClient] structure.
func newChatClientJS(api *chat.Client) map[string]any {
	c := ChatClient{api}
	chatClientMap := map[string]any{
		"Register":           js.FuncOf(c.Register),
		"SignIn":             js.FuncOf(c.SignIn),
		"SignInWithProvider": js.FuncOf(c.SignInWithProvider),
		"Resume":             js.FuncOf(c.Resume),
		"OnSessionChange":    js.FuncOf(c.OnSessionChange),
	}

	return chatClientMap
}

// NewChatClient creates a client that signs users in and opens chat sessions.
//
// Parameters:
//   - args[0] - Javascript document store. See [jsDocumentStore] for the
//     methods it must implement (object).
//   - args[1] - Javascript identity provider. See [jsIdentityProvider] for the
//     methods it must implement (object).
//   - args[2] - JSON of [chat.Params]. Pass null or an empty array to use the
//     defaults (Uint8Array).
//   - args[3] - Optional media host. Either an object with an upload method
//     (see [jsMediaHost]) or a Cloudinary configuration
//     {cloudName, uploadPreset}. Without one, attachments and avatars cannot
//     be uploaded (object).
//
// Returns:
//   - Javascript representation of the [ChatClient] object.
//   - Throws a TypeError if a backend is invalid or the parameters cannot be
//     decoded.
func NewChatClient(_ js.Value, args []js.Value) any {
	store, err := newJsDocumentStore(arg(args, 0))
	if err != nil {
		utils.Throw(utils.TypeError, err)
		return nil
	}

	identity, err := newJsIdentityProvider(arg(args, 1))
	if err != nil {
		utils.Throw(utils.TypeError, err)
		return nil
	}

	var paramsJSON []byte
	if p := arg(args, 2); p.InstanceOf(utils.Uint8Array) {
		paramsJSON = utils.CopyBytesToGo(p)
	}
	params, err := chat.GetParameters(paramsJSON)
	if err != nil {
		utils.Throw(utils.TypeError,
			errors.WithMessage(err, "invalid parameters"))
		return nil
	}

	mediaHost, err := newMediaHost(arg(args, 3))
	if err != nil {
		utils.Throw(utils.TypeError, err)
		return nil
	}

	return newChatClientJS(chat.NewClient(store, identity, mediaHost, params))
}

// GetDefaultParams returns the JSON of the default [chat.Params].
//
// Returns:
//   - JSON of [chat.Params] (Uint8Array).
//   - Throws an error if the parameters cannot be encoded.
func GetDefaultParams(js.Value, []js.Value) any {
	data, err := json.Marshal(chat.DefaultParams())
	if err != nil {
		utils.Throw(utils.TypeError, err)
		return nil
	}
	return utils.CopyBytesToJS(data)
}

// openSession starts a session with the Javascript event model. Once the user
// is known, their message cache is opened and placed in front of the event
// model. A cache that cannot be opened is logged and skipped.
func openSession(eventsJS js.Value, start func(
	ctx context.Context, events chat.EventModel) (*chat.Session, error)) any {
	return promise(func(ctx context.Context) (any, error) {
		events := newJsEventModel(eventsJS)
		deferred := newDeferredEventModel(events)

		s, err := start(ctx, deferred)
		if err != nil {
			return nil, err
		}

		cache, err := indexedDb.NewEventModel(s.Self().ID, events)
		if err != nil {
			jww.WARN.Printf("[JS] Messages of %s will not be cached: %+v",
				s.Self().ID, err)
		} else {
			deferred.set(cache)
		}

		return newSessionJS(s, cache), nil
	})
}

// Register creates an email and password account and opens its session.
//
// Parameters:
//   - args[0] - {userName, email, password} (object).
//   - args[1] - Javascript event model. See [jsEventModel] (object).
//
// Returns a promise:
//   - Resolves to a Javascript representation of the [Session] object.
//   - Rejected with an Error named "ValidationError", "AuthError" or
//     "NetworkError".
func (c *ChatClient) Register(_ js.Value, args []js.Value) any {
	var form chat.RegisterForm
	if err := utils.FromJS(arg(args, 0), &form); err != nil {
		return rejected(err)
	}
	return openSession(arg(args, 1), func(
		ctx context.Context, events chat.EventModel) (*chat.Session, error) {
		return c.api.Register(ctx, form, events)
	})
}

// SignIn opens a session with an email and password.
//
// Parameters:
//   - args[0] - {email, password} (object).
//   - args[1] - Javascript event model. See [jsEventModel] (object).
//
// Returns a promise:
//   - Resolves to a Javascript representation of the [Session] object.
//   - Rejected with an Error named after the failure kind.
func (c *ChatClient) SignIn(_ js.Value, args []js.Value) any {
	var form chat.SignInForm
	if err := utils.FromJS(arg(args, 0), &form); err != nil {
		return rejected(err)
	}
	return openSession(arg(args, 1), func(
		ctx context.Context, events chat.EventModel) (*chat.Session, error) {
		return c.api.SignIn(ctx, form, events)
	})
}

// SignInWithProvider opens a session with a federated credential, creating
// the user record on first sign-in.
//
// Parameters:
//   - args[0] - {provider, email, displayName, photoUrl, token} (object).
//   - args[1] - Javascript event model. See [jsEventModel] (object).
//
// Returns a promise:
//   - Resolves to a Javascript representation of the [Session] object.
//   - Rejected with an Error named after the failure kind.
func (c *ChatClient) SignInWithProvider(_ js.Value, args []js.Value) any {
	cred := credentialFromJS(arg(args, 0))
	return openSession(arg(args, 1), func(
		ctx context.Context, events chat.EventModel) (*chat.Session, error) {
		return c.api.SignInWithProvider(ctx, cred, events)
	})
}

// Resume opens a session for a principal delivered to OnSessionChange, such
// as after a page reload.
//
// Parameters:
//   - args[0] - {id, email, displayName, photoUrl, provider} (object).
//   - args[1] - Javascript event model. See [jsEventModel] (object).
//
// Returns a promise:
//   - Resolves to a Javascript representation of the [Session] object.
//   - Rejected with an Error named after the failure kind.
func (c *ChatClient) Resume(_ js.Value, args []js.Value) any {
	var p backend.Principal
	if err := utils.FromJS(arg(args, 0), &p); err != nil {
		return rejected(err)
	}
	return openSession(arg(args, 1), func(
		ctx context.Context, events chat.EventModel) (*chat.Session, error) {
		return c.api.Resume(ctx, p, events)
	})
}

// OnSessionChange registers a callback that is called with the current
// principal and every time it changes.
//
// Parameters:
//   - args[0] - Callback that takes a principal object or null when signed
//     out (function).
//
// Returns:
//   - A function that cancels the registration.
//   - Throws a TypeError if the callback is not a function.
func (c *ChatClient) OnSessionChange(_ js.Value, args []js.Value) any {
	fn := arg(args, 0)
	if fn.Type() != js.TypeFunction {
		utils.Throw(utils.TypeError,
			errors.New("session change callback must be a function"))
		return nil
	}
	cb := fn.Invoke

	unsub := c.api.OnSessionChange(func(p *backend.Principal) {
		if p == nil {
			cb(js.Null())
		} else {
			cb(toJS(p))
		}
	})

	// unsub is idempotent so the function is never released
	return js.FuncOf(func(js.Value, []js.Value) any {
		unsub()
		return nil
	})
}

// rejected returns a promise that is already rejected with the error.
func rejected(err error) any {
	return utils.Promise.Call("reject", jsChatError(err))
}
