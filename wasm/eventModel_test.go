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
	"sync"
	"syscall/js"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/parley/parley-wasm/chat"
	"gitlab.com/parley/parley-wasm/utils"
)

type countingModel struct {
	chat.EventModel
	presence int
}

func (cm *countingModel) PresenceUpdated(string, bool) { cm.presence++ }

// Tests that deferredEventModel forwards to the model set last.
func Test_deferredEventModel_set(t *testing.T) {
	first, second := &countingModel{}, &countingModel{}
	d := newDeferredEventModel(first)

	d.PresenceUpdated("u1", true)
	d.set(second)
	d.PresenceUpdated("u1", false)
	d.PresenceUpdated("u1", true)

	require.Equal(t, 1, first.presence)
	require.Equal(t, 2, second.presence)
}

// Tests that jsEventModel calls the Javascript methods that exist and ignores
// the ones that do not.
func Test_jsEventModel(t *testing.T) {
	obj := utils.Object.New()
	var typing []bool
	f := js.FuncOf(func(_ js.Value, args []js.Value) any {
		typing = append(typing, args[2].Bool())
		return nil
	})
	defer f.Release()
	obj.Set("TypingUpdated", f)

	em := newJsEventModel(obj)
	em.TypingUpdated("a_b", "b", true)
	em.TypingUpdated("a_b", "b", false)
	em.PresenceUpdated("b", true)
	em.DirectoryUpdated(nil, chat.DirectoryLoaded, false)

	require.Equal(t, []bool{true, false}, typing)
}

// Tests that jsChatError names the Javascript Error after the kind of a
// chat.Error.
func Test_jsChatError(t *testing.T) {
	err := errors.WithMessage(&chat.Error{
		Kind: chat.ValidationError, Op: "SendAttachment",
		Err: errors.New("too large")}, "send")

	require.Equal(t, "ValidationError", jsChatError(err).Get("name").String())
	require.Equal(t, "Error",
		jsChatError(errors.New("plain")).Get("name").String())
}

// Tests that promise resolves to null on a chat.StateError and rejects with a
// named Error on other kinds.
func Test_promise(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := promise(func(context.Context) (any, error) {
		return nil, &chat.Error{Kind: chat.StateError, Op: "SendText",
			Err: chat.ErrNoPeer}
	})
	v, err := utils.Await(ctx, js.ValueOf(p))
	require.NoError(t, err)
	require.True(t, v.IsNull(), "Expected null, received %v", v)

	p = promise(func(context.Context) (any, error) {
		return nil, &chat.Error{Kind: chat.NetworkError, Op: "SendText",
			Err: errors.New("offline")}
	})
	_, err = utils.Await(ctx, js.ValueOf(p))
	require.Error(t, err)
	require.Equal(t, "NetworkError", utils.ExceptionName(err))

	p = promise(func(context.Context) (any, error) { return "ok", nil })
	v, err = utils.Await(ctx, js.ValueOf(p))
	require.NoError(t, err)
	require.Equal(t, "ok", v.String())
}

// Tests that attachmentFromJS copies the bytes and rejects other data types.
func Test_attachmentFromJS(t *testing.T) {
	obj := utils.Object.New()
	obj.Set("name", "cat.png")
	obj.Set("contentType", "image/png")
	obj.Set("data", utils.CopyBytesToJS([]byte{1, 2, 3}))

	a, err := attachmentFromJS(obj)
	require.NoError(t, err)
	require.Equal(t, "cat.png", a.Name)
	require.Equal(t, "image/png", a.ContentType)
	require.Equal(t, []byte{1, 2, 3}, a.Data)

	obj.Set("data", "not bytes")
	_, err = attachmentFromJS(obj)
	require.Error(t, err)

	_, err = attachmentFromJS(js.ValueOf("cat.png"))
	require.Error(t, err)
}

// Tests that serialQueue runs functions in push order.
func Test_serialQueue(t *testing.T) {
	var q serialQueue
	var wg sync.WaitGroup
	var mux sync.Mutex
	var order []int

	const n = 100
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		q.push(func() {
			mux.Lock()
			order = append(order, i)
			mux.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, v := range order {
		if i != v {
			t.Fatalf("Function %d ran at position %d.", v, i)
		}
	}
}
