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
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"gitlab.com/parley/parley-wasm/backend"
)

// typingFlag reads the typing flag of the user in the conversation.
func typingFlag(t testing.TB, store backend.DocumentStore,
	key ConversationKey, userID string) bool {
	docs, err := store.Query(context.Background(), backend.Query{
		Collection: backend.JoinPath(chatsCollection, string(key), typingCollection),
	})
	require.NoError(t, err)
	for _, d := range docs {
		if d.ID == userID {
			return d.Bool(fieldIsTyping)
		}
	}
	return false
}

// Tests that the typing flag is cleared once no keystroke has been reported
// for the idle duration, and that every keystroke restarts the timer.
func TestTypingTracker_IdleClear(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	store := backend.NewMemoryStore(mock)
	tt := newTypingTracker(store, "a", 2*time.Second, mock)
	key := ResolveConversation("a", "b")

	require.NoError(t, tt.Notify(ctx, key))
	require.True(t, typingFlag(t, store, key, "a"))

	mock.Add(1500 * time.Millisecond)
	require.NoError(t, tt.Notify(ctx, key))

	mock.Add(1500 * time.Millisecond)
	require.True(t, typingFlag(t, store, key, "a"),
		"Typing flag cleared before the restarted timer expired.")

	mock.Add(600 * time.Millisecond)
	require.Eventually(t, func() bool { return !typingFlag(t, store, key, "a") },
		time.Second, 5*time.Millisecond)
}

// Tests that Clear writes false immediately and cancels the idle timer.
func TestTypingTracker_Clear(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	store := backend.NewMemoryStore(mock)
	tt := newTypingTracker(store, "a", 2*time.Second, mock)
	key := ResolveConversation("a", "b")

	require.NoError(t, tt.Notify(ctx, key))
	require.NoError(t, tt.Clear(ctx, key))
	require.False(t, typingFlag(t, store, key, "a"))

	tt.mux.Lock()
	numTimers := len(tt.timers)
	tt.mux.Unlock()
	require.Zero(t, numTimers)
}

// slowTypingStore blocks the first write of a true typing flag until release
// is closed.
type slowTypingStore struct {
	backend.DocumentStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (ss *slowTypingStore) WriteDoc(
	ctx context.Context, path string, fields backend.Fields) error {
	if typing, _ := fields[fieldIsTyping].(bool); typing {
		block := false
		ss.once.Do(func() { block = true })
		if block {
			close(ss.entered)
			<-ss.release
		}
	}
	return ss.DocumentStore.WriteDoc(ctx, path, fields)
}

// Tests that a Clear issued while a keystroke's write is still in flight
// leaves the flag false.
func TestTypingTracker_Clear_InFlightNotify(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	mem := backend.NewMemoryStore(mock)
	store := &slowTypingStore{DocumentStore: mem,
		entered: make(chan struct{}), release: make(chan struct{})}
	tt := newTypingTracker(store, "a", 2*time.Second, mock)
	key := ResolveConversation("a", "b")

	notifyErr := make(chan error, 1)
	go func() { notifyErr <- tt.Notify(ctx, key) }()
	<-store.entered

	clearErr := make(chan error, 1)
	go func() { clearErr <- tt.Clear(ctx, key) }()
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	require.NoError(t, <-notifyErr)
	require.NoError(t, <-clearErr)
	require.False(t, typingFlag(t, mem, key, "a"),
		"Typing flag left true after Clear.")

	tt.mux.Lock()
	numTimers := len(tt.timers)
	tt.mux.Unlock()
	require.Zero(t, numTimers)
}

// Tests that an expired timer superseded by a new keystroke does not clear the
// flag.
func TestTypingTracker_expire_Superseded(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	store := backend.NewMemoryStore(mock)
	tt := newTypingTracker(store, "a", 2*time.Second, mock)
	key := ResolveConversation("a", "b")

	require.NoError(t, tt.Notify(ctx, key))
	tt.mux.Lock()
	oldGen := tt.timers[key].gen
	tt.mux.Unlock()

	require.NoError(t, tt.Notify(ctx, key))
	tt.expire(key, oldGen)

	require.True(t, typingFlag(t, store, key, "a"))
	tt.Stop()
}

// Tests that WatchPeer reports the peer's flag and treats a missing record as
// not typing.
func TestTypingTracker_WatchPeer(t *testing.T) {
	ctx := context.Background()
	store := backend.NewMemoryStore(nil)
	key := ResolveConversation("a", "b")
	mine := newTypingTracker(store, "a", time.Minute, clock.NewMock())
	theirs := newTypingTracker(store, "b", time.Minute, clock.NewMock())

	updates := make(chan bool, 10)
	unsub, err := mine.WatchPeer(key, "b", func(typing bool, err error) {
		require.NoError(t, err)
		updates <- typing
	})
	require.NoError(t, err)
	defer unsub()

	expectTyping := func(expected bool) {
		select {
		case typing := <-updates:
			if typing != expected {
				t.Errorf("Unexpected typing flag.\nexpected: %t\nreceived: %t",
					expected, typing)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for typing update.")
		}
	}

	expectTyping(false)
	require.NoError(t, theirs.Notify(ctx, key))
	expectTyping(true)
	require.NoError(t, theirs.Clear(ctx, key))
	expectTyping(false)

	// The user's own flag is not reported
	require.NoError(t, mine.Notify(ctx, key))
	select {
	case typing := <-updates:
		t.Errorf("Received update for own flag: %t", typing)
	case <-time.After(50 * time.Millisecond):
	}
}
