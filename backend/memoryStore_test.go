////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// Tests that MemoryStore.Query returns documents sorted on the order field,
// respects the limit and continues after the cursor.
func TestMemoryStore_Query_OrderLimitCursor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	names := []string{"mia", "ann", "zoe", "bob", "eve", "dan"}
	for i, name := range names {
		err := s.WriteDoc(ctx, "users/u"+strconv.Itoa(i), Fields{"userName": name})
		require.NoError(t, err)
	}

	q := Query{Collection: "users", OrderBy: "userName", Limit: 4}
	first, err := s.Query(ctx, q)
	require.NoError(t, err)

	expected := []string{"ann", "bob", "dan", "eve"}
	if len(first) != len(expected) {
		t.Fatalf("Unexpected page size.\nexpected: %d\nreceived: %d",
			len(expected), len(first))
	}
	for i, d := range first {
		if d.String("userName") != expected[i] {
			t.Errorf("Unexpected user at %d.\nexpected: %s\nreceived: %s",
				i, expected[i], d.String("userName"))
		}
	}

	q.StartAfter = &first[len(first)-1]
	second, err := s.Query(ctx, q)
	require.NoError(t, err)
	if len(second) != 2 || second[0].String("userName") != "mia" ||
		second[1].String("userName") != "zoe" {
		t.Errorf("Unexpected second page: %+v", second)
	}
}

// Tests that MemoryStore.Query only returns documents passing the filters.
func TestMemoryStore_Query_Filter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	require.NoError(t, s.WriteDoc(ctx, "users/a", Fields{"email": "a@x.io"}))
	require.NoError(t, s.WriteDoc(ctx, "users/b", Fields{"email": "b@x.io"}))

	docs, err := s.Query(ctx, Query{Collection: "users",
		Filters: []Filter{{Field: "email", Value: "b@x.io"}}})
	require.NoError(t, err)
	if len(docs) != 1 || docs[0].ID != "b" {
		t.Errorf("Unexpected filter result: %+v", docs)
	}
}

// Tests that MemoryStore.UpdateDoc fails with ErrNotFound for a missing
// document and merges fields for an existing one.
func TestMemoryStore_UpdateDoc(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	err := s.UpdateDoc(ctx, "users/a", Fields{"isOnline": true})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Unexpected error for missing document."+
			"\nexpected: %v\nreceived: %v", ErrNotFound, err)
	}

	require.NoError(t, s.WriteDoc(ctx, "users/a",
		Fields{"email": "a@x.io", "isOnline": false}))
	require.NoError(t, s.UpdateDoc(ctx, "users/a", Fields{"isOnline": true}))

	docs, err := s.Query(ctx, Query{Collection: "users"})
	require.NoError(t, err)
	if !docs[0].Bool("isOnline") || docs[0].String("email") != "a@x.io" {
		t.Errorf("Fields not merged: %+v", docs[0].Fields)
	}
}

// Tests that MemoryStore.AddDoc replaces the ServerTimestamp sentinel with the
// store clock and that documents added in the same instant keep their
// insertion order.
func TestMemoryStore_AddDoc_ServerTimestamp(t *testing.T) {
	ctx := context.Background()
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s := NewMemoryStore(mockClock)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := s.AddDoc(ctx, "chats/a_b/messages",
			Fields{"n": i, "createdAt": ServerTimestamp})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	docs, err := s.Query(ctx,
		Query{Collection: "chats/a_b/messages", OrderBy: "createdAt"})
	require.NoError(t, err)
	for i, d := range docs {
		if d.ID != ids[i] {
			t.Errorf("Document %d out of insertion order.\nexpected: %s\nreceived: %s",
				i, ids[i], d.ID)
		}
		if !d.Time("createdAt").Equal(mockClock.Now()) {
			t.Errorf("Unexpected timestamp.\nexpected: %s\nreceived: %s",
				mockClock.Now(), d.Time("createdAt"))
		}
	}
}

// Tests that MemoryStore.Watch delivers the initial snapshot followed by a
// full snapshot for every write, and nothing after unsubscribing.
func TestMemoryStore_Watch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	var mux sync.Mutex
	var sizes []int
	unsub, err := s.Watch(Query{Collection: "chats/k/messages"},
		func(docs []Doc, err error) {
			require.NoError(t, err)
			mux.Lock()
			sizes = append(sizes, len(docs))
			mux.Unlock()
		})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = s.AddDoc(ctx, "chats/k/messages", Fields{"n": i})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return len(sizes) == 4
	}, time.Second, 5*time.Millisecond)

	mux.Lock()
	for i, size := range sizes {
		if size != i {
			t.Errorf("Unexpected snapshot size %d.\nexpected: %d\nreceived: %d",
				i, i, size)
		}
	}
	mux.Unlock()

	unsub()
	unsub()
	_, err = s.AddDoc(ctx, "chats/k/messages", Fields{"n": 3})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	mux.Lock()
	defer mux.Unlock()
	if len(sizes) != 4 {
		t.Errorf("Received snapshot after unsubscribing: %v", sizes)
	}
}

// Tests that MemoryStore.WatchDoc reports absence and then the written value.
func TestMemoryStore_WatchDoc(t *testing.T) {
	s := NewMemoryStore(nil)

	type state struct{ exists, typing bool }
	states := make(chan state, 10)
	unsub, err := s.WatchDoc("chats/k/typing/a", func(d Doc, exists bool, err error) {
		states <- state{exists, d.Bool("isTyping")}
	})
	require.NoError(t, err)
	defer unsub()

	require.Equal(t, state{false, false}, <-states)
	require.NoError(t, s.WriteDoc(
		context.Background(), "chats/k/typing/a", Fields{"isTyping": true}))
	require.Equal(t, state{true, true}, <-states)
}

// Tests that SplitPath rejects collection paths and empty segments.
func TestSplitPath(t *testing.T) {
	tests := map[string]struct {
		collection, id string
		valid          bool
	}{
		"users/a":              {"users", "a", true},
		"chats/a_b/messages/m": {"chats/a_b/messages", "m", true},
		"users":                {"", "", false},
		"chats/a_b/messages":   {"", "", false},
		"users//a/b":           {"", "", false},
	}

	for path, expected := range tests {
		collection, id, err := SplitPath(path)
		if expected.valid != (err == nil) {
			t.Errorf("Unexpected validity for %q: %v", path, err)
			continue
		}
		if collection != expected.collection || id != expected.id {
			t.Errorf("Unexpected split of %q.\nexpected: %s %s\nreceived: %s %s",
				path, expected.collection, expected.id, collection, id)
		}
	}
}
