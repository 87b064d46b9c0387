////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package wasm

import (
	"sync"
	"sync/atomic"
	"syscall/js"

	"github.com/hack-pad/safejs"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
)

// serialQueue runs pushed functions one at a time in push order on its own
// goroutine. Javascript callbacks push onto it so they return immediately and
// never block the event loop.
type serialQueue struct {
	items   []func()
	running bool
	mux     sync.Mutex
}

func (q *serialQueue) push(f func()) {
	q.mux.Lock()
	q.items = append(q.items, f)
	if q.running {
		q.mux.Unlock()
		return
	}
	q.running = true
	q.mux.Unlock()

	go q.drain()
}

func (q *serialQueue) drain() {
	for {
		q.mux.Lock()
		if len(q.items) == 0 {
			q.running = false
			q.mux.Unlock()
			return
		}
		f := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mux.Unlock()

		f()
	}
}

// subscribe calls the Javascript method with the arguments followed by a
// callback and expects a function that cancels the subscription in return.
// convert runs inside the callback and must copy what it needs out of the
// Javascript arguments; the function it returns is delivered in order on a
// goroutine.
func subscribe(v safejs.Value, method, name string, convert func(args []js.Value) func(),
	args ...any) (backend.Unsubscribe, error) {
	var q serialQueue
	var closed atomic.Bool

	// The callback is never released because the store may still call it
	// after cancelling
	cb := js.FuncOf(func(_ js.Value, args []js.Value) any {
		if !closed.Load() {
			q.push(convert(args))
		}
		return nil
	})

	cancel, err := v.Call(method, append(args, cb)...)
	if err != nil {
		closed.Store(true)
		return nil, err
	}

	jww.DEBUG.Printf("[JS] Subscribed to %s", name)

	var once sync.Once
	return func() {
		once.Do(func() {
			closed.Store(true)
			if cancel.Type() == safejs.TypeFunction {
				if _, err := cancel.Invoke(); err != nil {
					jww.WARN.Printf("[JS] Failed to unsubscribe from %s: %+v",
						name, err)
				}
			}
			jww.DEBUG.Printf("[JS] Unsubscribed from %s", name)
		})
	}, nil
}
