////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
)

// TypingTracker publishes the signed-in user's typing flag per conversation
// and observes the flag of peers. The flag is cleared automatically once no
// keystroke has been reported for the idle duration.
type TypingTracker struct {
	store  backend.DocumentStore
	selfID string
	idle   time.Duration
	clock  clock.Clock

	timers  map[ConversationKey]*typingTimer
	writers map[ConversationKey]*typingWriter
	nextGen uint64
	mux     sync.Mutex
}

// typingTimer is the idle timer of one conversation. gen identifies the timer
// so that a superseded timer that has already fired does nothing.
type typingTimer struct {
	timer *clock.Timer
	gen   uint64
}

// typingWriter orders the flag writes of one conversation. Writes run one at a
// time and a write is skipped once a newer one has been requested, so the last
// requested value is always the one stored. requested is guarded by the
// tracker's mux.
type typingWriter struct {
	requested uint64
	mux       sync.Mutex
}

func newTypingTracker(store backend.DocumentStore, selfID string,
	idle time.Duration, c clock.Clock) *TypingTracker {
	return &TypingTracker{
		store:   store,
		selfID:  selfID,
		idle:    idle,
		clock:   c,
		timers:  make(map[ConversationKey]*typingTimer),
		writers: make(map[ConversationKey]*typingWriter),
	}
}

// Notify records a keystroke in the conversation. The typing flag is set and
// the idle timer restarted.
func (tt *TypingTracker) Notify(ctx context.Context, key ConversationKey) error {
	tt.mux.Lock()
	tt.restartLocked(key)
	w, seq := tt.requestLocked(key)
	tt.mux.Unlock()

	err := tt.write(ctx, key, w, seq, true)
	if err != nil {
		return newError(NetworkError, "NotifyTyping", err)
	}
	return nil
}

// Clear stops the idle timer and clears the typing flag immediately.
func (tt *TypingTracker) Clear(ctx context.Context, key ConversationKey) error {
	tt.mux.Lock()
	if t, exists := tt.timers[key]; exists {
		t.timer.Stop()
		delete(tt.timers, key)
	}
	w, seq := tt.requestLocked(key)
	tt.mux.Unlock()

	err := tt.write(ctx, key, w, seq, false)
	if err != nil {
		return newError(NetworkError, "ClearTyping", err)
	}
	return nil
}

// Stop cancels every idle timer without writing.
func (tt *TypingTracker) Stop() {
	tt.mux.Lock()
	defer tt.mux.Unlock()
	for key, t := range tt.timers {
		t.timer.Stop()
		delete(tt.timers, key)
	}
}

// WatchPeer observes the typing flag of the peer in the conversation. A
// missing record reports not typing.
func (tt *TypingTracker) WatchPeer(key ConversationKey, peerID string,
	fn func(typing bool, err error)) (backend.Unsubscribe, error) {
	unsub, err := tt.store.WatchDoc(typingPath(key, peerID),
		func(d backend.Doc, exists bool, err error) {
			if err != nil {
				fn(false, newError(NetworkError, "WatchTyping", err))
				return
			}
			fn(exists && d.Bool(fieldIsTyping), nil)
		})
	if err != nil {
		return nil, newError(NetworkError, "WatchTyping", err)
	}
	return unsub, nil
}

// restartLocked replaces the conversation's idle timer with a new one. Must be
// called with mux held.
func (tt *TypingTracker) restartLocked(key ConversationKey) {
	if t, exists := tt.timers[key]; exists {
		t.timer.Stop()
	}
	gen := tt.nextGen
	tt.nextGen++

	tt.timers[key] = &typingTimer{
		timer: tt.clock.AfterFunc(tt.idle, func() { tt.expire(key, gen) }),
		gen:   gen,
	}
}

// expire clears the typing flag if the timer that fired is still current.
func (tt *TypingTracker) expire(key ConversationKey, gen uint64) {
	tt.mux.Lock()
	t, exists := tt.timers[key]
	if !exists || t.gen != gen {
		tt.mux.Unlock()
		return
	}
	delete(tt.timers, key)
	w, seq := tt.requestLocked(key)
	tt.mux.Unlock()

	jww.TRACE.Printf("[TYPING] Idle timer expired for %s", key)

	if err := tt.write(context.Background(), key, w, seq, false); err != nil {
		jww.WARN.Printf("[TYPING] Failed to clear typing flag in %s: %+v",
			key, err)
	}
}

// requestLocked reserves the next write of the conversation's flag. Must be
// called with mux held, together with the timer change the write belongs to.
func (tt *TypingTracker) requestLocked(
	key ConversationKey) (*typingWriter, uint64) {
	w, exists := tt.writers[key]
	if !exists {
		w = &typingWriter{}
		tt.writers[key] = w
	}
	w.requested++
	return w, w.requested
}

// write stores the flag unless a newer write of the conversation was
// requested in the meantime.
func (tt *TypingTracker) write(ctx context.Context, key ConversationKey,
	w *typingWriter, seq uint64, typing bool) error {
	w.mux.Lock()
	defer w.mux.Unlock()

	tt.mux.Lock()
	superseded := w.requested != seq
	tt.mux.Unlock()
	if superseded {
		jww.TRACE.Printf("[TYPING] Skipping superseded write of %t in %s",
			typing, key)
		return nil
	}

	return tt.store.WriteDoc(ctx, typingPath(key, tt.selfID),
		backend.Fields{fieldIsTyping: typing})
}
