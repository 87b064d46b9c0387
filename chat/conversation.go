////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"gitlab.com/parley/parley-wasm/backend"
)

// ConversationSeparator joins the two user IDs of a conversation key. User IDs
// must never contain it.
const ConversationSeparator = "_"

// Collection and field names of the shared document layout.
const (
	usersCollection    = "users"
	chatsCollection    = "chats"
	messagesCollection = "messages"
	typingCollection   = "typing"

	fieldID        = "id"
	fieldUserName  = "userName"
	fieldEmail     = "email"
	fieldPhotoURL  = "photoUrl"
	fieldProvider  = "provider"
	fieldIsOnline  = "isOnline"
	fieldCreatedAt = "createdAt"
	fieldSenderID  = "senderId"
	fieldReceiver  = "receiverId"
	fieldText      = "text"
	fieldMediaURL  = "mediaUrl"
	fieldIsTyping  = "isTyping"
)

// ConversationKey identifies the conversation between two users. Both
// participants derive the same key without coordination.
type ConversationKey string

// ResolveConversation returns the conversation key for two user IDs. The IDs
// are ordered lexicographically, so the result does not depend on argument
// order.
func ResolveConversation(a, b string) ConversationKey {
	if b < a {
		a, b = b, a
	}
	return ConversationKey(a + ConversationSeparator + b)
}

// String returns the key as a string. This function adheres to the
// fmt.Stringer interface.
func (k ConversationKey) String() string { return string(k) }

func userPath(userID string) string {
	return backend.JoinPath(usersCollection, userID)
}

func messagesPath(key ConversationKey) string {
	return backend.JoinPath(chatsCollection, string(key), messagesCollection)
}

func typingPath(key ConversationKey, userID string) string {
	return backend.JoinPath(
		chatsCollection, string(key), typingCollection, userID)
}
