////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"math/rand"
	"strconv"
	"testing"
)

// Tests that ResolveConversation returns the same key regardless of argument
// order.
func TestResolveConversation_Symmetric(t *testing.T) {
	prng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		a := strconv.FormatInt(prng.Int63(), 36)
		b := strconv.FormatInt(prng.Int63(), 36)

		ab, ba := ResolveConversation(a, b), ResolveConversation(b, a)
		if ab != ba {
			t.Errorf("Keys differ by argument order (%d)."+
				"\nexpected: %s\nreceived: %s", i, ab, ba)
		}
	}
}

// Tests that ResolveConversation orders the IDs lexicographically.
func TestResolveConversation(t *testing.T) {
	tests := []struct {
		a, b     string
		expected ConversationKey
	}{
		{"bob", "alice", "alice_bob"},
		{"alice", "bob", "alice_bob"},
		{"Zed", "abe", "Zed_abe"},
		{"u10", "u9", "u10_u9"},
		{"same", "same", "same_same"},
	}

	for i, tt := range tests {
		key := ResolveConversation(tt.a, tt.b)
		if key != tt.expected {
			t.Errorf("Unexpected key (%d).\nexpected: %s\nreceived: %s",
				i, tt.expected, key)
		}
	}
}

// Tests that distinct pairs of IDs, which never contain the separator, map to
// distinct keys.
func TestResolveConversation_Distinct(t *testing.T) {
	ids := []string{"a", "b", "c", "ab", "ba", "abc", "u1", "u10", "u100"}
	seen := make(map[ConversationKey][2]string)

	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			key := ResolveConversation(ids[i], ids[j])
			if prev, exists := seen[key]; exists {
				t.Errorf("Pairs %v and %v share key %s",
					prev, [2]string{ids[i], ids[j]}, key)
			}
			seen[key] = [2]string{ids[i], ids[j]}
		}
	}
}

// Tests that the conversation paths are rooted under the key.
func TestConversationPaths(t *testing.T) {
	key := ResolveConversation("u2", "u1")

	if p := messagesPath(key); p != "chats/u1_u2/messages" {
		t.Errorf("Unexpected messages path: %s", p)
	}
	if p := typingPath(key, "u2"); p != "chats/u1_u2/typing/u2" {
		t.Errorf("Unexpected typing path: %s", p)
	}
	if p := userPath("u1"); p != "users/u1" {
		t.Errorf("Unexpected user path: %s", p)
	}
}
