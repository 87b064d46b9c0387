////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package indexedDb

import (
	"time"

	"gitlab.com/parley/parley-wasm/chat"
)

const (
	// Text representation of primary key value (keyPath).
	msgPkeyName   = "id"
	convoPkeyName = "key"

	// Text representation of the names of the various [idb.ObjectStore].
	messageStoreName      = "messages"
	conversationStoreName = "conversations"

	// Message index names.
	messageStoreConversationIndex = "conversation_index"

	// Message keyPath names (must match json struct tags).
	messageStoreConversation = "conversation"
)

// Message defines the IndexedDb representation of a single chat message.
//
// A Message belongs to one Conversation.
type Message struct {
	ID           string    `json:"id"`           // Matches msgPkeyName
	Conversation string    `json:"conversation"` // Index
	SenderID     string    `json:"sender_id"`
	ReceiverID   string    `json:"receiver_id"`
	Text         string    `json:"text,omitempty"`
	MediaURL     string    `json:"media_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation defines the IndexedDb representation of a conversation with a
// peer. A Conversation has many Message.
type Conversation struct {
	Key       string    `json:"key"` // Matches convoPkeyName
	PeerID    string    `json:"peer_id"`
	PeerName  string    `json:"peer_name"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Selected  time.Time `json:"selected"`
	LastCount int       `json:"last_count"`
}

func newMessage(key chat.ConversationKey, m chat.Message) Message {
	return Message{
		ID:           m.ID,
		Conversation: key.String(),
		SenderID:     m.SenderID,
		ReceiverID:   m.ReceiverID,
		Text:         m.Text,
		MediaURL:     m.MediaURL,
		CreatedAt:    m.CreatedAt,
	}
}

func (m Message) chatMessage() chat.Message {
	return chat.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		MediaURL:   m.MediaURL,
		CreatedAt:  m.CreatedAt,
	}
}
