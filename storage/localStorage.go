////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

// Package storage keeps the browser-side bookkeeping of the chat client in
// localStorage and removes everything it created on Purge.
package storage

import (
	"encoding/base64"
	"os"
	"strings"
	"syscall/js"

	"github.com/hack-pad/safejs"
	"github.com/pkg/errors"
)

// localStoragePrefix is prefixed to every key saved by LocalStorage so that
// keys created by this binary can be found and removed without touching keys
// of other scripts on the same page.
const localStoragePrefix = "parleyStorage/"

// LocalStorage stores base 64 encoded values in the browser's localStorage
// under a key prefix.
//
//   - Specification:
//     https://html.spec.whatwg.org/multipage/webstorage.html#dom-localstorage-dev
//   - Documentation:
//     https://developer.mozilla.org/en-US/docs/Web/API/Window/localStorage
type LocalStorage struct {
	v      safejs.Value
	prefix string
}

var jsStorage = newLocalStorage(localStoragePrefix)

func newLocalStorage(prefix string) *LocalStorage {
	return &LocalStorage{
		v:      safejs.Safe(js.Global().Get("localStorage")),
		prefix: prefix,
	}
}

// GetLocalStorage returns the localStorage of the page.
func GetLocalStorage() *LocalStorage {
	return jsStorage
}

// Get returns the value stored at the key. Returns os.ErrNotExist if the key
// does not exist.
func (ls *LocalStorage) Get(key string) ([]byte, error) {
	v, err := ls.v.Call("getItem", ls.prefix+key)
	if err != nil {
		return nil, errors.Wrapf(err, "localStorage: failed to get %q", key)
	} else if v.IsNull() {
		return nil, os.ErrNotExist
	}

	s, err := v.String()
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(s)
}

// Set stores the value at the key. Returns an error if the browser refuses the
// write, e.g. when the storage quota is exceeded.
func (ls *LocalStorage) Set(key string, value []byte) error {
	_, err := ls.v.Call("setItem", ls.prefix+key,
		base64.StdEncoding.EncodeToString(value))
	if err != nil {
		return errors.Wrapf(err, "localStorage: failed to set %q", key)
	}
	return nil
}

// Remove deletes the key. Does nothing if the key does not exist.
func (ls *LocalStorage) Remove(key string) {
	_, _ = ls.v.Call("removeItem", ls.prefix+key)
}

// Keys returns the name of every key created by this LocalStorage with the
// prefix removed.
func (ls *LocalStorage) Keys() []string {
	var keys []string
	for _, raw := range ls.rawKeys() {
		if strings.HasPrefix(raw, ls.prefix) {
			keys = append(keys, strings.TrimPrefix(raw, ls.prefix))
		}
	}
	return keys
}

// ClearPrefix deletes every key that starts with the prefix. Returns the
// number of keys deleted.
func (ls *LocalStorage) ClearPrefix(prefix string) int {
	var n int
	for _, key := range ls.Keys() {
		if strings.HasPrefix(key, prefix) {
			ls.Remove(key)
			n++
		}
	}
	return n
}

// ClearWASM deletes every key created by this LocalStorage. Returns the number
// of keys deleted.
func (ls *LocalStorage) ClearWASM() int {
	return ls.ClearPrefix("")
}

// Length returns the number of keys created by this LocalStorage.
func (ls *LocalStorage) Length() int {
	return len(ls.Keys())
}

// rawKeys returns all key names in localStorage, including those of other
// scripts.
func (ls *LocalStorage) rawKeys() []string {
	length, err := ls.v.Get("length")
	if err != nil {
		return nil
	}
	n, err := length.Int()
	if err != nil {
		return nil
	}

	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v, err := ls.v.Call("key", i)
		if err != nil || v.IsNull() {
			continue
		}
		if s, err := v.String(); err == nil {
			keys = append(keys, s)
		}
	}
	return keys
}
