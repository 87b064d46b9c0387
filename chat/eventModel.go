////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

// EventModel receives the observable state of a Session as it changes. All
// methods are called from the session's single update goroutine, in order,
// and must not block for long.
type EventModel interface {
	// PeerSelected is called when a new peer is selected. The message list and
	// typing flag have been reset to empty.
	PeerSelected(peer User, key ConversationKey)

	// MessagesUpdated is called with the full ordered message list of the
	// selected conversation every time it changes.
	MessagesUpdated(key ConversationKey, messages []Message)

	// TypingUpdated is called when the selected peer starts or stops typing.
	TypingUpdated(key ConversationKey, peerID string, typing bool)

	// PresenceUpdated is called when the online flag of the selected peer
	// changes.
	PresenceUpdated(userID string, online bool)

	// DirectoryUpdated is called when the directory list changes.
	DirectoryUpdated(users []User, state DirectoryState, filtering bool)

	// ErrorReported is called with asynchronous failures, such as a broken
	// subscription. The error is always a *Error.
	ErrorReported(err error)
}

// nopEventModel discards every event.
type nopEventModel struct{}

func (nopEventModel) PeerSelected(User, ConversationKey)            {}
func (nopEventModel) MessagesUpdated(ConversationKey, []Message)    {}
func (nopEventModel) TypingUpdated(ConversationKey, string, bool)   {}
func (nopEventModel) PresenceUpdated(string, bool)                  {}
func (nopEventModel) DirectoryUpdated([]User, DirectoryState, bool) {}
func (nopEventModel) ErrorReported(error)                           {}
