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

	"gitlab.com/parley/parley-wasm/chat"
	"gitlab.com/parley/parley-wasm/indexedDb"
	"gitlab.com/parley/parley-wasm/storage"
	"gitlab.com/parley/parley-wasm/utils"
)

// Session wraps the [chat.Session] object so its methods can be wrapped to be
// Javascript compatible.
type Session struct {
	api *chat.Session

	// cache is nil when the message cache could not be opened.
	cache *indexedDb.EventModel
}

// newSessionJS creates a new Javascript compatible object (map[string]any)
// that matches the [Session] structure.
func newSessionJS(api *chat.Session, cache *indexedDb.EventModel) map[string]any {
	s := Session{api, cache}
	sessionMap := map[string]any{
		// Conversation
		"SelectPeer":            js.FuncOf(s.SelectPeer),
		"SendText":              js.FuncOf(s.SendText),
		"SendAttachment":        js.FuncOf(s.SendAttachment),
		"StageAttachment":       js.FuncOf(s.StageAttachment),
		"ClearStagedAttachment": js.FuncOf(s.ClearStagedAttachment),
		"NotifyTyping":          js.FuncOf(s.NotifyTyping),

		// State
		"GetSelf":       js.FuncOf(s.GetSelf),
		"GetPeer":       js.FuncOf(s.GetPeer),
		"GetMessages":   js.FuncOf(s.GetMessages),
		"IsPeerTyping":  js.FuncOf(s.IsPeerTyping),
		"GetOnline":     js.FuncOf(s.GetOnline),
		"GetParams":     js.FuncOf(s.GetParams),
		"GetDirectory":  js.FuncOf(s.GetDirectory),
		"UpdateProfile": js.FuncOf(s.UpdateProfile),

		// Message cache
		"GetCachedMessages":    js.FuncOf(s.GetCachedMessages),
		"DeleteCachedMessages": js.FuncOf(s.DeleteCachedMessages),
		"GetDatabaseName":      js.FuncOf(s.GetDatabaseName),

		// Lifecycle
		"GoingAway": js.FuncOf(s.GoingAway),
		"Logout":    js.FuncOf(s.Logout),
	}

	return sessionMap
}

////////////////////////////////////////////////////////////////////////////////
// Conversation                                                               //
////////////////////////////////////////////////////////////////////////////////

// SelectPeer switches the session to the conversation with the peer.
//
// Parameters:
//   - args[0] - User object, as delivered to DirectoryUpdated (object).
//
// Returns a promise:
//   - Resolves to the conversation key (string).
//   - Rejected with an Error named after the failure kind.
func (s *Session) SelectPeer(_ js.Value, args []js.Value) any {
	var peer chat.User
	if err := utils.FromJS(arg(args, 0), &peer); err != nil {
		return rejected(err)
	}
	return promise(func(ctx context.Context) (any, error) {
		if err := s.api.SelectPeer(ctx, peer); err != nil {
			return nil, err
		}
		return chat.ResolveConversation(s.api.Self().ID, peer.ID).String(), nil
	})
}

// SendText sends a text message to the selected peer. A staged attachment is
// sent first.
//
// Parameters:
//   - args[0] - Message text (string).
//
// Returns a promise:
//   - Resolves when the message is written, or to null if no peer is
//     selected.
//   - Rejected with an Error named after the failure kind.
func (s *Session) SendText(_ js.Value, args []js.Value) any {
	text := arg(args, 0).String()
	return promise(func(ctx context.Context) (any, error) {
		return nil, s.api.SendText(ctx, text)
	})
}

// SendAttachment uploads the file and sends it to the selected peer.
//
// Parameters:
//   - args[0] - {name, contentType, data: Uint8Array} (object).
//
// Returns a promise:
//   - Resolves when the message is written.
//   - Rejected with an Error named after the failure kind.
func (s *Session) SendAttachment(_ js.Value, args []js.Value) any {
	a, err := attachmentFromJS(arg(args, 0))
	if err != nil {
		return rejected(err)
	}
	return promise(func(ctx context.Context) (any, error) {
		return nil, s.api.SendAttachment(ctx, a)
	})
}

// StageAttachment holds the file until the next SendText.
//
// Parameters:
//   - args[0] - {name, contentType, data: Uint8Array} (object).
//
// Returns:
//   - Throws a RangeError if the attachment is too large or a TypeError if it
//     is malformed.
func (s *Session) StageAttachment(_ js.Value, args []js.Value) any {
	a, err := attachmentFromJS(arg(args, 0))
	if err != nil {
		utils.Throw(utils.TypeError, err)
		return nil
	}
	if err = s.api.StageAttachment(a); err != nil {
		utils.Throw(utils.RangeError, err)
	}
	return nil
}

// ClearStagedAttachment drops the staged file.
func (s *Session) ClearStagedAttachment(js.Value, []js.Value) any {
	s.api.ClearStagedAttachment()
	return nil
}

// NotifyTyping marks the user as typing to the selected peer. Call it on
// every keystroke; the flag clears itself after the idle period.
//
// Returns a promise:
//   - Resolves when the flag is written.
//   - Rejected with an Error named after the failure kind.
func (s *Session) NotifyTyping(js.Value, []js.Value) any {
	return promise(func(ctx context.Context) (any, error) {
		return nil, s.api.NotifyTyping(ctx)
	})
}

////////////////////////////////////////////////////////////////////////////////
// State                                                                      //
////////////////////////////////////////////////////////////////////////////////

// GetSelf returns the signed-in user.
//
// Returns:
//   - User object.
func (s *Session) GetSelf(js.Value, []js.Value) any {
	return toJS(s.api.Self())
}

// GetPeer returns the selected peer.
//
// Returns:
//   - {peer: User, conversationKey: string} or null if no peer is selected.
func (s *Session) GetPeer(js.Value, []js.Value) any {
	peer, key, ok := s.api.Peer()
	if !ok {
		return js.Null()
	}
	return map[string]any{
		"peer":            toJS(peer),
		"conversationKey": key.String(),
	}
}

// GetMessages returns the ordered messages of the selected conversation.
//
// Returns:
//   - List of message objects.
func (s *Session) GetMessages(js.Value, []js.Value) any {
	return toJS(s.api.Messages())
}

// IsPeerTyping returns true if the selected peer is typing.
func (s *Session) IsPeerTyping(js.Value, []js.Value) any {
	return s.api.PeerTyping()
}

// GetOnline returns the online flags of the watched users.
//
// Returns:
//   - Object mapping user IDs to booleans.
func (s *Session) GetOnline(js.Value, []js.Value) any {
	return toJS(s.api.Online())
}

// GetParams returns the parameters the session runs with.
//
// Returns:
//   - JSON of [chat.Params] (Uint8Array).
func (s *Session) GetParams(js.Value, []js.Value) any {
	data, err := json.Marshal(s.api.Params())
	if err != nil {
		utils.Throw(utils.TypeError, err)
		return nil
	}
	return utils.CopyBytesToJS(data)
}

// GetDirectory returns the user directory of the session.
//
// Returns:
//   - Javascript representation of the [Directory] object.
func (s *Session) GetDirectory(js.Value, []js.Value) any {
	return newDirectoryJS(s.api.Directory())
}

// UpdateProfile changes the user name and optionally the avatar.
//
// Parameters:
//   - args[0] - {userName: string, avatar?: {name, contentType, data}}
//     (object).
//
// Returns a promise:
//   - Resolves to the updated user object.
//   - Rejected with an Error named after the failure kind.
func (s *Session) UpdateProfile(_ js.Value, args []js.Value) any {
	v := arg(args, 0)
	if v.Type() != js.TypeObject {
		return rejected(errors.New("profile must be an object"))
	}

	var form chat.ProfileForm
	if name := v.Get("userName"); name.Type() == js.TypeString {
		form.UserName = name.String()
	}
	if avatar := v.Get("avatar"); !avatar.IsUndefined() && !avatar.IsNull() {
		a, err := attachmentFromJS(avatar)
		if err != nil {
			return rejected(err)
		}
		form.Avatar = &a
	}

	return promise(func(ctx context.Context) (any, error) {
		u, err := s.api.UpdateProfile(ctx, form)
		if err != nil {
			return nil, err
		}
		return toJS(u), nil
	})
}

////////////////////////////////////////////////////////////////////////////////
// Message Cache                                                              //
////////////////////////////////////////////////////////////////////////////////

// errNoCache is returned by cache methods when the cache could not be opened.
var errNoCache = errors.New("message cache is not available")

// GetCachedMessages returns the messages of a conversation stored in the
// browser, ordered by creation time. They are available before the live
// subscription delivers its first snapshot.
//
// Parameters:
//   - args[0] - Conversation key (string).
//
// Returns a promise:
//   - Resolves to a list of message objects.
//   - Rejected if the cache is unavailable or cannot be read.
func (s *Session) GetCachedMessages(_ js.Value, args []js.Value) any {
	key := chat.ConversationKey(arg(args, 0).String())
	return promise(func(context.Context) (any, error) {
		if s.cache == nil {
			return nil, errNoCache
		}
		messages, err := s.cache.GetCachedMessages(key)
		if err != nil {
			return nil, err
		}
		return toJS(messages), nil
	})
}

// DeleteCachedMessages removes the stored messages of a conversation.
//
// Parameters:
//   - args[0] - Conversation key (string).
//
// Returns a promise:
//   - Resolves to the number of messages removed (int).
//   - Rejected if the cache is unavailable or cannot be written.
func (s *Session) DeleteCachedMessages(_ js.Value, args []js.Value) any {
	key := chat.ConversationKey(arg(args, 0).String())
	return promise(func(context.Context) (any, error) {
		if s.cache == nil {
			return nil, errNoCache
		}
		n, err := s.cache.DeleteCachedMessages(key)
		if err != nil {
			return nil, err
		}
		return n, nil
	})
}

// GetDatabaseName returns the name of the message cache database.
//
// Returns:
//   - Database name (string) or null if there is no cache.
func (s *Session) GetDatabaseName(js.Value, []js.Value) any {
	if s.cache == nil {
		return js.Null()
	}
	return s.cache.DatabaseName()
}

////////////////////////////////////////////////////////////////////////////////
// Lifecycle                                                                  //
////////////////////////////////////////////////////////////////////////////////

// GoingAway marks the user offline. Call it from the page's unload handler.
//
// Returns a promise:
//   - Resolves when the presence flag is written.
func (s *Session) GoingAway(js.Value, []js.Value) any {
	return promise(func(ctx context.Context) (any, error) {
		return nil, s.api.GoingAway(ctx)
	})
}

// Logout ends the session and closes the message cache.
//
// Parameters:
//   - args[0] - If true, every database and local storage entry of this
//     module is deleted after logging out (boolean, optional).
//
// Returns a promise:
//   - Resolves when the session has ended.
//   - Rejected with an Error named after the failure kind.
func (s *Session) Logout(_ js.Value, args []js.Value) any {
	purge := arg(args, 0).Truthy()
	return promise(func(ctx context.Context) (any, error) {
		if err := s.api.Logout(ctx); err != nil {
			return nil, err
		}

		if s.cache != nil {
			if err := s.cache.Close(); err != nil {
				jww.WARN.Printf("[JS] Failed to close %s: %+v",
					s.cache.DatabaseName(), err)
			}
		}

		if purge {
			if err := storage.Purge(ctx); err != nil {
				return nil, errors.WithMessage(err, "logged out but failed "+
					"to purge storage")
			}
		}
		return nil, nil
	})
}
