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

// MessageChannel opens live, ordered views of conversations.
type MessageChannel struct {
	store backend.DocumentStore
}

func newMessageChannel(store backend.DocumentStore) *MessageChannel {
	return &MessageChannel{store: store}
}

// Open subscribes to the messages of the conversation. fn receives the full
// list, ordered by creation time, every time it changes. Callers replace
// their list wholesale on every call.
func (mc *MessageChannel) Open(key ConversationKey,
	fn func(messages []Message, err error)) (backend.Unsubscribe, error) {
	q := backend.Query{Collection: messagesPath(key), OrderBy: fieldCreatedAt}
	unsub, err := mc.store.Watch(q, func(docs []backend.Doc, err error) {
		if err != nil {
			fn(nil, newError(NetworkError, "OpenMessages", err))
			return
		}

		messages := make([]Message, len(docs))
		for i, d := range docs {
			messages[i] = messageFromDoc(d)
		}
		fn(messages, nil)
	})
	if err != nil {
		return nil, newError(NetworkError, "OpenMessages", err)
	}
	return unsub, nil
}
