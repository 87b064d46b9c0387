////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"sync"
)

// SessionTracker holds the signed-in principal of an IdentityProvider and
// notifies registered listeners of every change.
type SessionTracker struct {
	current   *Principal
	listeners map[uint64]func(p *Principal)
	nextID    uint64
	mux       sync.Mutex
}

// NewSessionTracker returns a tracker with no signed-in principal.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{listeners: make(map[uint64]func(p *Principal))}
}

// Current returns a copy of the signed-in principal or nil if signed out.
func (st *SessionTracker) Current() *Principal {
	st.mux.Lock()
	defer st.mux.Unlock()
	return copyPrincipal(st.current)
}

// Set replaces the signed-in principal and calls every listener with it. A
// nil principal signs out.
func (st *SessionTracker) Set(p *Principal) {
	st.mux.Lock()
	st.current = copyPrincipal(p)
	listeners := make([]func(p *Principal), 0, len(st.listeners))
	for _, fn := range st.listeners {
		listeners = append(listeners, fn)
	}
	st.mux.Unlock()

	for _, fn := range listeners {
		fn(copyPrincipal(p))
	}
}

// OnSessionChange registers fn and calls it with the current principal.
// Listeners are called on the goroutine that changed the session.
func (st *SessionTracker) OnSessionChange(fn func(p *Principal)) Unsubscribe {
	st.mux.Lock()
	id := st.nextID
	st.nextID++
	st.listeners[id] = fn
	current := copyPrincipal(st.current)
	st.mux.Unlock()

	fn(current)

	return func() {
		st.mux.Lock()
		defer st.mux.Unlock()
		delete(st.listeners, id)
	}
}

func copyPrincipal(p *Principal) *Principal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
