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
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/chat"
	"gitlab.com/parley/parley-wasm/utils"
)

// opTimeout bounds every blocking call made on behalf of Javascript. It covers
// attachment uploads so it is generous.
const opTimeout = 2 * time.Minute

func newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// jsChatError converts the error to a Javascript Error. A *chat.Error becomes
// an Error named after its kind (e.g. "ValidationError") so Javascript can
// tell silent state errors from ones to show the user.
func jsChatError(err error) js.Value {
	var chatErr *chat.Error
	if errors.As(err, &chatErr) {
		return utils.JsKindError(chatErr.Kind.String(), err)
	}
	return utils.JsTrace(err)
}

// promise runs f on a new goroutine with a bounded context and returns a
// Javascript promise that resolves to its result or rejects with
// jsChatError. A chat.StateError (e.g. no peer selected) resolves to null.
func promise(f func(ctx context.Context) (any, error)) any {
	return utils.CreatePromise(func(resolve, reject func(args ...any) js.Value) {
		ctx, cancel := newContext()
		defer cancel()

		v, err := f(ctx)
		if err == nil {
			resolve(v)
		} else if chat.IsKind(err, chat.StateError) {
			jww.DEBUG.Printf("[JS] Ignoring state error: %+v", err)
			resolve(nil)
		} else {
			reject(jsChatError(err))
		}
	})
}

// arg returns the argument at i or undefined if it was not passed.
func arg(args []js.Value, i int) js.Value {
	if i >= len(args) {
		return js.Undefined()
	}
	return args[i]
}
