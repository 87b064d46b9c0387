////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"context"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
)

// Presence publishes the online flag of the signed-in user and observes the
// flags of others. The flag is last-writer-wins; a client that disappears
// without going offline stays online.
type Presence struct {
	store  backend.DocumentStore
	selfID string
}

func newPresence(store backend.DocumentStore, selfID string) *Presence {
	return &Presence{store: store, selfID: selfID}
}

// SetOnline writes the online flag to the signed-in user's record.
func (p *Presence) SetOnline(ctx context.Context, online bool) error {
	err := p.store.UpdateDoc(ctx, userPath(p.selfID),
		backend.Fields{fieldIsOnline: online})
	if err != nil {
		return newError(NetworkError, "SetOnline", err)
	}

	jww.DEBUG.Printf("[PRESENCE] Set %s online: %t", p.selfID, online)
	return nil
}

// WatchOnline observes the online flag of a user. A missing record reports
// offline.
func (p *Presence) WatchOnline(userID string,
	fn func(online bool, err error)) (backend.Unsubscribe, error) {
	unsub, err := p.store.WatchDoc(userPath(userID),
		func(d backend.Doc, exists bool, err error) {
			if err != nil {
				fn(false, newError(NetworkError, "WatchOnline", err))
				return
			}
			fn(exists && d.Bool(fieldIsOnline), nil)
		})
	if err != nil {
		return nil, newError(NetworkError, "WatchOnline", err)
	}
	return unsub, nil
}
