////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jww "github.com/spf13/jwalterweatherman"
	"github.com/stretchr/testify/require"

	"gitlab.com/parley/parley-wasm/backend"
	"gitlab.com/parley/parley-wasm/chat"
)

func TestMain(m *testing.M) {
	jww.SetStdoutThreshold(jww.LevelDebug)
	os.Exit(m.Run())
}

// register creates an account on its own identity provider sharing the store
// and returns its session.
func register(t *testing.T, store backend.DocumentStore, name string,
	events chat.EventModel) *chat.Session {
	c := chat.NewClient(
		store, backend.NewMemoryIdentity(), nil, chat.DefaultParams())
	s, err := c.Register(context.Background(), chat.RegisterForm{
		UserName: name,
		Email:    name + "@example.com",
		Password: "password",
	}, events)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Logout(context.Background()) })
	return s
}

// Tests that findUser finds a peer by email and by user name and fails for
// unknown users.
func Test_findUser(t *testing.T) {
	store := backend.NewMemoryStore(nil)
	var out bytes.Buffer
	events := newTerminalEvents(&out)
	alice := register(t, store, "alice", events)
	bob := register(t, store, "bob", nil)

	ctx := context.Background()
	u, err := findUser(ctx, alice.Directory(), events, "BOB@example.com")
	require.NoError(t, err)
	require.Equal(t, bob.Self().ID, u.ID)

	u, err = findUser(ctx, alice.Directory(), events, "bob")
	require.NoError(t, err)
	require.Equal(t, bob.Self().ID, u.ID)

	_, err = findUser(ctx, alice.Directory(), events, "carol")
	require.Error(t, err)
}

// Tests that chatLoop sends each non-empty line until /quit.
func Test_chatLoop(t *testing.T) {
	store := backend.NewMemoryStore(nil)
	alice := register(t, store, "alice", nil)
	bob := register(t, store, "bob", nil)

	ctx := context.Background()
	require.NoError(t, alice.SelectPeer(ctx, bob.Self()))
	require.NoError(t, bob.SelectPeer(ctx, alice.Self()))

	in := strings.NewReader("hello\n\n  how are you?  \n/quit\nnot sent\n")
	require.NoError(t, chatLoop(ctx, alice, in))

	require.Eventually(t, func() bool { return len(bob.Messages()) == 2 },
		time.Second, 10*time.Millisecond)
	var texts []string
	for _, m := range bob.Messages() {
		require.Equal(t, alice.Self().ID, m.SenderID)
		texts = append(texts, m.Text)
	}
	require.ElementsMatch(t, []string{"hello", "how are you?"}, texts)
}

// Tests that readAttachment names the file and detects its content type.
func Test_readAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0600))

	a, err := readAttachment(path)
	require.NoError(t, err)
	require.Equal(t, "notes.txt", a.Name)
	require.True(t, strings.HasPrefix(a.ContentType, "text/plain"),
		"Unexpected content type %q", a.ContentType)

	_, err = readAttachment(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

// Tests that terminalEvents prints only messages it has not printed yet and
// starts over when a new peer is selected.
func Test_terminalEvents_MessagesUpdated(t *testing.T) {
	var out bytes.Buffer
	te := newTerminalEvents(&out)
	te.setSelf("a")
	te.PeerSelected(chat.User{ID: "b", UserName: "bob"}, "a_b")

	m1 := chat.Message{ID: "1", SenderID: "a", Text: "hi"}
	m2 := chat.Message{ID: "2", SenderID: "b", Text: "hey"}
	te.MessagesUpdated("a_b", []chat.Message{m1})
	te.MessagesUpdated("a_b", []chat.Message{m1, m2})

	printed := out.String()
	require.Equal(t, 1, strings.Count(printed, "me: hi"))
	require.Equal(t, 1, strings.Count(printed, "bob: hey"))

	te.PeerSelected(chat.User{ID: "c", Email: "carol@example.com"}, "a_c")
	te.MessagesUpdated("a_c", []chat.Message{{ID: "3", SenderID: "c",
		MediaURL: "https://example.com/cat.png"}})
	require.Contains(t, out.String(),
		"carol@example.com: [attachment] https://example.com/cat.png")
}

// Tests that DirectoryUpdated keeps only the newest unread update.
func Test_terminalEvents_DirectoryUpdated(t *testing.T) {
	te := newTerminalEvents(&bytes.Buffer{})
	te.DirectoryUpdated([]chat.User{{ID: "1"}}, chat.DirectoryLoaded, false)
	te.DirectoryUpdated([]chat.User{{ID: "2"}}, chat.DirectoryLoaded, false)

	users := <-te.directory
	require.Equal(t, "2", users[0].ID)
	select {
	case <-te.directory:
		t.Error("Stale directory update was kept.")
	default:
	}
}
