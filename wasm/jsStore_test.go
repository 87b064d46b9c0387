////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package wasm

import (
	"context"
	"syscall/js"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/parley/parley-wasm/backend"
	"gitlab.com/parley/parley-wasm/utils"
)

// jsStoreMock builds a Javascript document store whose methods are
// implemented by the given Go functions. Missing methods resolve to
// undefined.
func jsStoreMock(t *testing.T,
	methods map[string]func(args []js.Value) any) js.Value {
	obj := utils.Object.New()
	for _, m := range storeMethods {
		fn, ok := methods[m]
		if !ok {
			fn = func([]js.Value) any { return utils.Promise.Call("resolve") }
		}
		f := js.FuncOf(func(_ js.Value, args []js.Value) any { return fn(args) })
		t.Cleanup(f.Release)
		obj.Set(m, f)
	}
	return obj
}

// Tests that newJsDocumentStore rejects objects with missing methods.
func Test_newJsDocumentStore_MissingMethod(t *testing.T) {
	obj := utils.Object.New()
	_, err := newJsDocumentStore(obj)
	require.Error(t, err)
}

// Tests that Query passes the query to Javascript and reads the resolved
// documents.
func Test_jsDocumentStore_Query(t *testing.T) {
	var collection string
	v := jsStoreMock(t, map[string]func([]js.Value) any{
		"query": func(args []js.Value) any {
			collection = args[0].Get("collection").String()
			doc := utils.Object.New()
			doc.Set("id", "u1")
			doc.Set("path", "users/u1")
			doc.Set("fields", fieldsToJS(backend.Fields{"userName": "alice"}))
			docs := jsArray.New(1)
			docs.SetIndex(0, doc)
			return utils.Promise.Call("resolve", docs)
		},
	})
	s, err := newJsDocumentStore(v)
	require.NoError(t, err)

	docs, err := s.Query(context.Background(),
		backend.Query{Collection: "users", OrderBy: "userName"})
	require.NoError(t, err)
	require.Equal(t, "users", collection)
	require.Len(t, docs, 1)
	require.Equal(t, "alice", docs[0].String("userName"))
}

// Tests that an updateDoc rejection named NotFound is mapped to
// backend.ErrNotFound and other rejections are not.
func Test_jsDocumentStore_UpdateDoc_NotFound(t *testing.T) {
	name := notFoundName
	v := jsStoreMock(t, map[string]func([]js.Value) any{
		"updateDoc": func([]js.Value) any {
			return utils.Promise.Call("reject",
				utils.JsKindError(name, errors.New("no document")))
		},
	})
	s, err := newJsDocumentStore(v)
	require.NoError(t, err)

	err = s.UpdateDoc(context.Background(), "users/u1", backend.Fields{})
	require.ErrorIs(t, err, backend.ErrNotFound)

	name = "PermissionDenied"
	err = s.UpdateDoc(context.Background(), "users/u1", backend.Fields{})
	require.Error(t, err)
	require.NotErrorIs(t, err, backend.ErrNotFound)
}

// Tests that AddDoc returns the resolved ID and sends the server timestamp
// marker.
func Test_jsDocumentStore_AddDoc(t *testing.T) {
	var marker bool
	v := jsStoreMock(t, map[string]func([]js.Value) any{
		"addDoc": func(args []js.Value) any {
			marker = args[1].Get("createdAt").Get(serverTimestampKey).Truthy()
			return utils.Promise.Call("resolve", "m1")
		},
	})
	s, err := newJsDocumentStore(v)
	require.NoError(t, err)

	id, err := s.AddDoc(context.Background(), "chats/a_b/messages",
		backend.Fields{"createdAt": backend.ServerTimestamp})
	require.NoError(t, err)
	require.Equal(t, "m1", id)
	require.True(t, marker, "Server timestamp marker not sent")
}

// Tests that Watch delivers snapshots in order and stops delivering after
// unsubscribing.
func Test_jsDocumentStore_Watch(t *testing.T) {
	var cb js.Value
	cancelHolder := utils.Object.New()
	cancelHolder.Set("called", false)
	cancel := js.FuncOf(func(js.Value, []js.Value) any {
		cancelHolder.Set("called", true)
		return nil
	})
	t.Cleanup(cancel.Release)

	v := jsStoreMock(t, map[string]func([]js.Value) any{
		"watch": func(args []js.Value) any {
			cb = args[1]
			return cancel
		},
	})
	s, err := newJsDocumentStore(v)
	require.NoError(t, err)

	received := make(chan int, 10)
	unsub, err := s.Watch(backend.Query{Collection: "users"},
		func(docs []backend.Doc, err error) {
			if err != nil {
				t.Errorf("Unexpected snapshot error: %+v", err)
			}
			received <- len(docs)
		})
	require.NoError(t, err)

	for n := 0; n < 3; n++ {
		cb.Invoke(jsArray.New(n), js.Null())
	}
	for n := 0; n < 3; n++ {
		select {
		case got := <-received:
			require.Equal(t, n, got)
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for snapshot %d", n)
		}
	}

	unsub()
	unsub()
	require.True(t, cancelHolder.Get("called").Bool(),
		"Javascript cancel function not called")

	cb.Invoke(jsArray.New(5), js.Null())
	select {
	case got := <-received:
		t.Errorf("Received snapshot of %d after unsubscribing", got)
	case <-time.After(50 * time.Millisecond):
	}
}

// Tests that WatchDoc reports a null document as absent and passes errors
// through.
func Test_jsDocumentStore_WatchDoc(t *testing.T) {
	var cb js.Value
	v := jsStoreMock(t, map[string]func([]js.Value) any{
		"watchDoc": func(args []js.Value) any {
			cb = args[1]
			return js.Undefined()
		},
	})
	s, err := newJsDocumentStore(v)
	require.NoError(t, err)

	type result struct {
		exists bool
		err    error
	}
	received := make(chan result, 2)
	_, err = s.WatchDoc("chats/a_b/typing/b",
		func(_ backend.Doc, exists bool, err error) {
			received <- result{exists, err}
		})
	require.NoError(t, err)

	cb.Invoke(js.Null(), js.Null())
	cb.Invoke(js.Null(), utils.Error.New("permission denied"))

	r := <-received
	require.False(t, r.exists)
	require.NoError(t, r.err)
	r = <-received
	require.Error(t, r.err)
}
