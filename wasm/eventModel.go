////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package wasm

import (
	"sync/atomic"
	"syscall/js"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/chat"
	"gitlab.com/parley/parley-wasm/utils"
)

// jsEventModel wraps a Javascript object to adhere to the [chat.EventModel]
// interface. Every method is optional; events without a matching method are
// dropped.
//
// The object may implement:
//
//	PeerSelected(peer: User, conversationKey: string)
//	MessagesUpdated(conversationKey: string, messages: Message[])
//	TypingUpdated(conversationKey: string, peerId: string, typing: boolean)
//	PresenceUpdated(userId: string, online: boolean)
//	DirectoryUpdated(users: User[], state: string, filtering: boolean)
//	ErrorReported(err: Error)
//
// ErrorReported receives an Error whose name is the failure kind (e.g.
// "NetworkError").
type jsEventModel struct {
	peerSelected     func(args ...any) js.Value
	messagesUpdated  func(args ...any) js.Value
	typingUpdated    func(args ...any) js.Value
	presenceUpdated  func(args ...any) js.Value
	directoryUpdated func(args ...any) js.Value
	errorReported    func(args ...any) js.Value
}

// newJsEventModel wraps the callbacks of the Javascript object.
func newJsEventModel(v js.Value) *jsEventModel {
	return &jsEventModel{
		peerSelected:     optionalCB(v, "PeerSelected"),
		messagesUpdated:  optionalCB(v, "MessagesUpdated"),
		typingUpdated:    optionalCB(v, "TypingUpdated"),
		presenceUpdated:  optionalCB(v, "PresenceUpdated"),
		directoryUpdated: optionalCB(v, "DirectoryUpdated"),
		errorReported:    optionalCB(v, "ErrorReported"),
	}
}

// optionalCB wraps the method m of the object or returns a function that does
// nothing if there is no such method.
func optionalCB(v js.Value, m string) func(args ...any) js.Value {
	if !utils.HasMethod(v, m) {
		return func(...any) js.Value { return js.Undefined() }
	}
	return utils.WrapCB(v, m)
}

func (em *jsEventModel) PeerSelected(peer chat.User, key chat.ConversationKey) {
	em.peerSelected(toJS(peer), key.String())
}

func (em *jsEventModel) MessagesUpdated(
	key chat.ConversationKey, messages []chat.Message) {
	em.messagesUpdated(key.String(), toJS(messages))
}

func (em *jsEventModel) TypingUpdated(
	key chat.ConversationKey, peerID string, typing bool) {
	em.typingUpdated(key.String(), peerID, typing)
}

func (em *jsEventModel) PresenceUpdated(userID string, online bool) {
	em.presenceUpdated(userID, online)
}

func (em *jsEventModel) DirectoryUpdated(
	users []chat.User, state chat.DirectoryState, filtering bool) {
	em.directoryUpdated(toJS(users), state.String(), filtering)
}

func (em *jsEventModel) ErrorReported(err error) {
	em.errorReported(jsChatError(err))
}

// toJS converts the value to Javascript through JSON. Failures are logged and
// produce null.
func toJS(v any) js.Value {
	jsV, err := utils.ToJS(v)
	if err != nil {
		jww.ERROR.Printf("[JS] Failed to convert %T: %+v", v, err)
		return js.Null()
	}
	return jsV
}

// deferredEventModel forwards events to a chat.EventModel that can be swapped
// after the session starts. It lets the message cache, which is named after
// the signed-in user, be attached once the user is known.
type deferredEventModel struct {
	em atomic.Pointer[chat.EventModel]
}

func newDeferredEventModel(em chat.EventModel) *deferredEventModel {
	d := &deferredEventModel{}
	d.set(em)
	return d
}

func (d *deferredEventModel) set(em chat.EventModel) { d.em.Store(&em) }

func (d *deferredEventModel) get() chat.EventModel { return *d.em.Load() }

func (d *deferredEventModel) PeerSelected(
	peer chat.User, key chat.ConversationKey) {
	d.get().PeerSelected(peer, key)
}

func (d *deferredEventModel) MessagesUpdated(
	key chat.ConversationKey, messages []chat.Message) {
	d.get().MessagesUpdated(key, messages)
}

func (d *deferredEventModel) TypingUpdated(
	key chat.ConversationKey, peerID string, typing bool) {
	d.get().TypingUpdated(key, peerID, typing)
}

func (d *deferredEventModel) PresenceUpdated(userID string, online bool) {
	d.get().PresenceUpdated(userID, online)
}

func (d *deferredEventModel) DirectoryUpdated(
	users []chat.User, state chat.DirectoryState, filtering bool) {
	d.get().DirectoryUpdated(users, state, filtering)
}

func (d *deferredEventModel) ErrorReported(err error) {
	d.get().ErrorReported(err)
}
