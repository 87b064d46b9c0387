////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package indexedDb

import (
	"slices"
	"sync"
	"syscall/js"
	"time"

	"github.com/hack-pad/go-indexeddb/idb"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/chat"
	"gitlab.com/parley/parley-wasm/utils"
)

// EventModel implements chat.EventModel. It stores message snapshots and the
// selected conversation in IndexedDB and forwards every event to the wrapped
// event model.
type EventModel struct {
	db   *idb.Database
	name string
	next chat.EventModel

	// updateMux serialises writes so snapshots are stored in the order they
	// are delivered.
	updateMux sync.Mutex
}

func newEventModel(
	db *idb.Database, name string, next chat.EventModel) *EventModel {
	return &EventModel{db: db, name: name, next: next}
}

// PeerSelected records the conversation and forwards the event.
func (em *EventModel) PeerSelected(peer chat.User, key chat.ConversationKey) {
	if em.next != nil {
		em.next.PeerSelected(peer, key)
	}

	convo, _, err := em.GetConversation(key)
	if err != nil {
		jww.ERROR.Printf("[IDB] Failed to load conversation %s: %+v", key, err)
	}
	convo.Key = key.String()
	convo.PeerID = peer.ID
	convo.PeerName = peer.DisplayName()
	convo.PhotoURL = peer.PhotoURL
	convo.Selected = time.Now()

	if err = em.put(conversationStoreName, convo); err != nil {
		jww.ERROR.Printf("[IDB] Failed to store conversation %s: %+v", key, err)
	}
}

// MessagesUpdated forwards the snapshot and then stores every message in it.
func (em *EventModel) MessagesUpdated(
	key chat.ConversationKey, messages []chat.Message) {
	if em.next != nil {
		em.next.MessagesUpdated(key, messages)
	}
	if len(messages) == 0 {
		return
	}

	values := make([]js.Value, 0, len(messages)+1)
	for _, m := range messages {
		v, err := utils.ToJS(newMessage(key, m))
		if err != nil {
			jww.ERROR.Printf("[IDB] Failed to convert message %s: %+v",
				m.ID, err)
			continue
		}
		values = append(values, v)
	}

	em.updateMux.Lock()
	defer em.updateMux.Unlock()
	if err := putAll(em.db, messageStoreName, values); err != nil {
		jww.ERROR.Printf("[IDB] Failed to store %d messages of %s: %+v",
			len(values), key, err)
		return
	}

	convo, exists, err := em.GetConversation(key)
	if err == nil && exists {
		convo.LastCount = len(messages)
		if err = em.put(conversationStoreName, convo); err != nil {
			jww.WARN.Printf("[IDB] Failed to update conversation %s: %+v",
				key, err)
		}
	}
}

// TypingUpdated forwards the event.
func (em *EventModel) TypingUpdated(
	key chat.ConversationKey, peerID string, typing bool) {
	if em.next != nil {
		em.next.TypingUpdated(key, peerID, typing)
	}
}

// PresenceUpdated forwards the event.
func (em *EventModel) PresenceUpdated(userID string, online bool) {
	if em.next != nil {
		em.next.PresenceUpdated(userID, online)
	}
}

// DirectoryUpdated forwards the event.
func (em *EventModel) DirectoryUpdated(
	users []chat.User, state chat.DirectoryState, filtering bool) {
	if em.next != nil {
		em.next.DirectoryUpdated(users, state, filtering)
	}
}

// ErrorReported forwards the event.
func (em *EventModel) ErrorReported(err error) {
	if em.next != nil {
		em.next.ErrorReported(err)
	}
}

// GetCachedMessages returns the stored messages of the conversation ordered by
// creation time.
func (em *EventModel) GetCachedMessages(
	key chat.ConversationKey) ([]chat.Message, error) {
	rows, err := getAllByIndex(em.db, messageStoreName,
		messageStoreConversationIndex, js.ValueOf(key.String()))
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		var m Message
		if err = utils.FromJS(row, &m); err != nil {
			return nil, errors.WithMessagef(err,
				"failed to read cached message of %s", key)
		}
		messages = append(messages, m.chatMessage())
	}

	slices.SortStableFunc(messages, func(a, b chat.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return messages, nil
}

// GetConversation returns the stored conversation. Returns false if it was
// never selected.
func (em *EventModel) GetConversation(
	key chat.ConversationKey) (Conversation, bool, error) {
	v, exists, err := get(em.db, conversationStoreName, js.ValueOf(key.String()))
	if err != nil || !exists {
		return Conversation{}, false, err
	}

	var convo Conversation
	if err = utils.FromJS(v, &convo); err != nil {
		return Conversation{}, false, errors.WithMessagef(err,
			"failed to read conversation %s", key)
	}
	return convo, true, nil
}

// DeleteCachedMessages removes the stored messages of the conversation.
// Returns the number of messages removed.
func (em *EventModel) DeleteCachedMessages(key chat.ConversationKey) (int, error) {
	em.updateMux.Lock()
	defer em.updateMux.Unlock()

	n, err := deleteByIndex(em.db, messageStoreName,
		messageStoreConversationIndex, js.ValueOf(key.String()))
	if err != nil {
		return n, err
	}

	jww.DEBUG.Printf("[IDB] Deleted %d cached messages of %s", n, key)
	return n, nil
}

// DatabaseName returns the name of the IndexedDB database.
func (em *EventModel) DatabaseName() string { return em.name }

// Close closes the database.
func (em *EventModel) Close() error {
	return em.db.Close()
}

func (em *EventModel) put(objectStoreName string, v any) error {
	value, err := utils.ToJS(v)
	if err != nil {
		return err
	}
	return putAll(em.db, objectStoreName, []js.Value{value})
}
