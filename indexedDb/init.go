////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

// Package indexedDb caches the messages of every conversation the user opens
// in the browser's IndexedDB so they can be shown before the live
// subscription delivers.
package indexedDb

import (
	"syscall/js"

	"github.com/hack-pad/go-indexeddb/idb"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/chat"
	"gitlab.com/parley/parley-wasm/storage"
)

// currentVersion is the current version of the IndexedDb runtime. Used for
// migration purposes.
const currentVersion uint = 1

// databasePrefix is prefixed to the user ID to name the database.
const databasePrefix = "parley_messages_"

// DatabaseName returns the name of the message cache of the user.
func DatabaseName(userID string) string {
	return databasePrefix + userID
}

// NewEventModel opens the message cache of the user and returns a
// chat.EventModel that records every message snapshot in it before forwarding
// the event to next. next may be nil.
func NewEventModel(userID string, next chat.EventModel) (*EventModel, error) {
	if userID == "" {
		return nil, errors.New("a user ID is required to open the cache")
	}
	databaseName := DatabaseName(userID)

	ctx, cancel := newContext()
	defer cancel()
	openRequest, err := idb.Global().Open(ctx, databaseName, currentVersion,
		func(db *idb.Database, oldVersion, newVersion uint) error {
			if oldVersion == newVersion {
				jww.INFO.Printf("[IDB] IndexDb version for %s is current: v%d",
					databaseName, newVersion)
				return nil
			}

			jww.INFO.Printf("[IDB] IndexDb upgrade required for %s: "+
				"v%d -> v%d", databaseName, oldVersion, newVersion)

			if oldVersion == 0 && newVersion >= 1 {
				if err := v1Upgrade(db); err != nil {
					return err
				}
				oldVersion = 1
			}

			return nil
		})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", databaseName)
	}

	db, err := openRequest.Await(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", databaseName)
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Record the name so the database is deleted on purge
	if err = storage.StoreIndexedDb(databaseName); err != nil {
		return nil, err
	}

	return newEventModel(db, databaseName, next), nil
}

// v1Upgrade performs the v0 -> v1 database upgrade.
//
// This can never be changed without permanently breaking backwards
// compatibility.
func v1Upgrade(db *idb.Database) error {
	messageStore, err := db.CreateObjectStore(messageStoreName,
		idb.ObjectStoreOptions{
			KeyPath:       js.ValueOf(msgPkeyName),
			AutoIncrement: false,
		})
	if err != nil {
		return err
	}
	_, err = messageStore.CreateIndex(messageStoreConversationIndex,
		js.ValueOf(messageStoreConversation),
		idb.IndexOptions{Unique: false, MultiEntry: false})
	if err != nil {
		return err
	}

	_, err = db.CreateObjectStore(conversationStoreName,
		idb.ObjectStoreOptions{
			KeyPath:       js.ValueOf(convoPkeyName),
			AutoIncrement: false,
		})
	return err
}
