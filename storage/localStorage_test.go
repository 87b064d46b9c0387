////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package storage

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"syscall/js"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// Tests that a value stored with LocalStorage.Set and loaded with
// LocalStorage.Get matches the original.
func TestLocalStorage_Get_Set(t *testing.T) {
	values := map[string][]byte{
		"key1": []byte("key value"),
		"key2": {0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		"key3": {0, 49, 0, 0, 0, 38, 249, 93, 242, 189, 222, 32, 138, 248, 121},
	}

	for keyName, keyValue := range values {
		if err := jsStorage.Set(keyName, keyValue); err != nil {
			t.Fatalf("Failed to set %q: %+v", keyName, err)
		}

		loadedValue, err := jsStorage.Get(keyName)
		if err != nil {
			t.Errorf("Failed to load %q: %+v", keyName, err)
		}

		if !bytes.Equal(keyValue, loadedValue) {
			t.Errorf("Loaded value does not match original for %q"+
				"\nexpected: %q\nreceived: %q", keyName, keyValue, loadedValue)
		}
	}
}

// Tests that LocalStorage.Get returns os.ErrNotExist when the key does not
// exist and after it was removed.
func TestLocalStorage_Get_NotExistError(t *testing.T) {
	_, err := jsStorage.Get("someKey")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Incorrect error for non existent key."+
			"\nexpected: %v\nreceived: %v", os.ErrNotExist, err)
	}

	if err = jsStorage.Set("key", []byte("value")); err != nil {
		t.Fatalf("Failed to set: %+v", err)
	}
	jsStorage.Remove("key")

	if _, err = jsStorage.Get("key"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Failed to remove %q: %+v", "key", err)
	}
}

// Tests that LocalStorage.ClearPrefix deletes only the keys with the given
// prefix and that LocalStorage.ClearWASM leaves keys of other scripts.
func TestLocalStorage_ClearPrefix_ClearWASM(t *testing.T) {
	js.Global().Get("localStorage").Call("clear")
	prng := rand.New(rand.NewSource(11))
	var yesPrefix, noPrefix []string
	prefix := "keyNamePrefix/"

	for i := 0; i < 10; i++ {
		keyName := "keyNum" + strconv.Itoa(i)
		if prng.Intn(2) == 0 {
			keyName = prefix + keyName
			yesPrefix = append(yesPrefix, keyName)
		} else {
			noPrefix = append(noPrefix, keyName)
		}
		if err := jsStorage.Set(keyName, []byte(strconv.Itoa(i))); err != nil {
			t.Fatalf("Failed to set %q: %+v", keyName, err)
		}
	}
	js.Global().Get("localStorage").Call("setItem", "otherScript", "value")

	if n := jsStorage.ClearPrefix(prefix); n != len(yesPrefix) {
		t.Errorf("Unexpected number of keys cleared."+
			"\nexpected: %d\nreceived: %d", len(yesPrefix), n)
	}

	received := jsStorage.Keys()
	sort.Strings(received)
	sort.Strings(noPrefix)
	if joinKeys(received) != joinKeys(noPrefix) {
		t.Errorf("Unexpected keys.\nexpected: %q\nreceived: %q",
			noPrefix, received)
	}

	jsStorage.ClearWASM()
	if n := jsStorage.Length(); n != 0 {
		t.Errorf("ClearWASM left %d keys.", n)
	}
	if js.Global().Get("localStorage").Call("getItem", "otherScript").IsNull() {
		t.Errorf("ClearWASM removed a key it did not create.")
	}
}

func joinKeys(keys []string) string {
	var b bytes.Buffer
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(',')
	}
	return b.String()
}

// Tests that StoreIndexedDb adds each name once and GetIndexedDbList returns
// them all.
func TestStoreIndexedDb(t *testing.T) {
	jsStorage.ClearWASM()
	names := []string{"parley-messages-a", "parley-messages-b"}
	for _, name := range append(names, names[0]) {
		if err := StoreIndexedDb(name); err != nil {
			t.Fatalf("Failed to store %q: %+v", name, err)
		}
	}

	list, err := GetIndexedDbList()
	if err != nil {
		t.Fatalf("Failed to get list: %+v", err)
	}
	if len(list) != len(names) {
		t.Errorf("Unexpected list size.\nexpected: %d\nreceived: %d",
			len(names), len(list))
	}
	for _, name := range names {
		if _, exists := list[name]; !exists {
			t.Errorf("List missing %q", name)
		}
	}
}

// Tests that Purge deletes the listed databases and every key.
func TestPurge(t *testing.T) {
	jsStorage.ClearWASM()
	if err := StoreIndexedDb("parley-purge-test"); err != nil {
		t.Fatalf("Failed to store database name: %+v", err)
	}
	if err := jsStorage.Set("session", []byte("u1")); err != nil {
		t.Fatalf("Failed to set: %+v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := Purge(ctx); err != nil {
		t.Fatalf("Purge failed: %+v", err)
	}

	if n := jsStorage.Length(); n != 0 {
		t.Errorf("Purge left %d keys: %q", n, jsStorage.Keys())
	}
}

// Tests that checkAndStoreVersion records the previous version and stores the
// new one.
func Test_checkAndStoreVersion(t *testing.T) {
	jsStorage.ClearWASM()

	if err := checkAndStoreVersion("0.1", jsStorage); err != nil {
		t.Fatalf("Initial check failed: %+v", err)
	}
	if GetOldVersion() != "0.1" {
		t.Errorf("Unexpected old version.\nexpected: %s\nreceived: %s",
			"0.1", GetOldVersion())
	}

	if err := checkAndStoreVersion("0.2", jsStorage); err != nil {
		t.Fatalf("Upgrade check failed: %+v", err)
	}
	if GetOldVersion() != "0.1" {
		t.Errorf("Unexpected old version.\nexpected: %s\nreceived: %s",
			"0.1", GetOldVersion())
	}

	stored, err := jsStorage.Get(semverKey)
	if err != nil || string(stored) != "0.2" {
		t.Errorf("Unexpected stored version %q: %+v", stored, err)
	}
}
