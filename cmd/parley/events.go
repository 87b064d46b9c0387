////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/aquilax/truncate"

	"gitlab.com/parley/parley-wasm/chat"
)

// maxLineLen is the longest message text printed on one line.
const maxLineLen = 200

// terminalEvents prints session events to a terminal. Message snapshots are
// replaced wholesale by the session, so only messages past the ones already
// printed are written.
type terminalEvents struct {
	out     io.Writer
	selfID  string
	peer    chat.User
	printed int

	// directory receives every directory update, dropping ones nobody reads.
	directory chan []chat.User

	mux sync.Mutex
}

func newTerminalEvents(out io.Writer) *terminalEvents {
	return &terminalEvents{out: out, directory: make(chan []chat.User, 1)}
}

func (te *terminalEvents) setSelf(id string) {
	te.mux.Lock()
	te.selfID = id
	te.mux.Unlock()
}

func (te *terminalEvents) PeerSelected(peer chat.User, key chat.ConversationKey) {
	te.mux.Lock()
	defer te.mux.Unlock()
	te.peer = peer
	te.printed = 0
	fmt.Fprintf(te.out, "--- Chatting with %s (%s) ---\n",
		peer.DisplayName(), key)
}

func (te *terminalEvents) MessagesUpdated(
	_ chat.ConversationKey, messages []chat.Message) {
	te.mux.Lock()
	defer te.mux.Unlock()

	if len(messages) < te.printed {
		te.printed = 0
	}
	for _, m := range messages[te.printed:] {
		fmt.Fprintln(te.out, te.formatMessage(m))
	}
	te.printed = len(messages)
}

func (te *terminalEvents) formatMessage(m chat.Message) string {
	from := te.peer.DisplayName()
	if m.SenderID == te.selfID {
		from = "me"
	}

	body := truncate.Truncate(m.Text, maxLineLen, "...", truncate.PositionEnd)
	if m.IsMedia() {
		body = "[attachment] " + m.MediaURL
	}
	return fmt.Sprintf("[%s] %s: %s",
		m.CreatedAt.Local().Format("15:04:05"), from, body)
}

func (te *terminalEvents) TypingUpdated(
	_ chat.ConversationKey, _ string, typing bool) {
	if typing {
		te.mux.Lock()
		fmt.Fprintf(te.out, "%s is typing...\n", te.peer.DisplayName())
		te.mux.Unlock()
	}
}

func (te *terminalEvents) PresenceUpdated(userID string, online bool) {
	te.mux.Lock()
	defer te.mux.Unlock()
	if userID != te.peer.ID {
		return
	}
	status := "offline"
	if online {
		status = "online"
	}
	fmt.Fprintf(te.out, "%s is %s\n", te.peer.DisplayName(), status)
}

func (te *terminalEvents) DirectoryUpdated(
	users []chat.User, _ chat.DirectoryState, _ bool) {
	select {
	case te.directory <- users:
	default:
		// Replace the unread update with the newer one
		select {
		case <-te.directory:
		default:
		}
		select {
		case te.directory <- users:
		default:
		}
	}
}

func (te *terminalEvents) ErrorReported(err error) {
	te.mux.Lock()
	fmt.Fprintf(te.out, "error: %v\n", err)
	te.mux.Unlock()
}

// printUsers writes one line per user.
func printUsers(out io.Writer, users []chat.User) {
	for _, u := range users {
		status := " "
		if u.IsOnline {
			status = "*"
		}
		fmt.Fprintf(out, "%s %-20s %-30s %s\n", status, u.DisplayName(),
			u.Email, u.ID)
	}
}
