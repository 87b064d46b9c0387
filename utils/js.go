////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

// Package utils contains helpers for passing values, errors and promises
// between Go and Javascript.
package utils

import (
	"context"
	"syscall/js"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

var (
	// Error is the Javascript Error type. It used to create new Javascript
	// errors.
	Error = js.Global().Get("Error")

	// JSON is the Javascript JSON type. It is used to perform JSON operations
	// on the Javascript layer.
	JSON = js.Global().Get("JSON")

	// Object is the Javascript Object type. It is used to perform Object
	// operations on the Javascript layer.
	Object = js.Global().Get("Object")

	// Promise is the Javascript Promise type. It is used to generate new
	// promises.
	Promise = js.Global().Get("Promise")

	// Uint8Array is the Javascript Uint8Array type. It is used to create new
	// Uint8Array.
	Uint8Array = js.Global().Get("Uint8Array")
)

// WrapCB wraps a Javascript function in an object so that it can be called
// later with only the arguments and without specifying the function name.
//
// Panics if m is not a function.
func WrapCB(parent js.Value, m string) func(args ...any) js.Value {
	if parent.Get(m).Type() != js.TypeFunction {
		// Create the error separate from the print so stack trace is printed
		err := errors.Errorf("Function %q is not of type %s", m, js.TypeFunction)
		jww.FATAL.Panicf("%+v", err)
	}

	return func(args ...any) js.Value {
		return parent.Call(m, args...)
	}
}

// HasMethod returns true if the object has a function property named m.
func HasMethod(parent js.Value, m string) bool {
	return parent.Type() == js.TypeObject && parent.Get(m).Type() == js.TypeFunction
}

// PromiseFn converts the Javascript Promise construct into Go.
//
// Call resolve with the return of the function on success. Call reject with an
// error on failure.
type PromiseFn func(resolve, reject func(args ...any) js.Value)

// CreatePromise creates a Javascript promise to return the value of a blocking
// Go function to Javascript.
func CreatePromise(f PromiseFn) any {
	var handler js.Func
	handler = js.FuncOf(func(this js.Value, args []js.Value) any {
		// Spawn a new go routine to perform the blocking function
		go func(resolve, reject js.Value) {
			f(resolve.Invoke, reject.Invoke)
		}(args[0], args[1])

		// The executor is called once by the Promise constructor
		handler.Release()
		return nil
	})

	return Promise.New(handler)
}

// Resolve runs the blocking function and settles a new promise with its
// result. The promise is rejected with a Javascript Error if f fails.
func Resolve(f func() (any, error)) any {
	return CreatePromise(func(resolve, reject func(args ...any) js.Value) {
		v, err := f()
		if err != nil {
			reject(JsTrace(err))
		} else {
			resolve(v)
		}
	})
}

type settled struct {
	value js.Value
	err   error
}

// Await waits on a Javascript value. It blocks until the awaitable resolves to
// the result, rejects to an error or the context is done. Values that are not
// promises resolve to themselves.
func Await(ctx context.Context, awaitable js.Value) (js.Value, error) {
	done := make(chan settled, 1)

	var then, catch js.Func
	release := func() {
		then.Release()
		catch.Release()
	}
	then = js.FuncOf(func(_ js.Value, args []js.Value) any {
		done <- settled{value: firstArg(args)}
		release()
		return nil
	})
	catch = js.FuncOf(func(_ js.Value, args []js.Value) any {
		done <- settled{err: GoError(firstArg(args))}
		release()
		return nil
	})

	Promise.Call("resolve", awaitable).Call("then", then, catch)

	select {
	case s := <-done:
		return s.value, s.err
	case <-ctx.Done():
		return js.Undefined(), errors.Wrap(ctx.Err(), "promise did not settle")
	}
}

func firstArg(args []js.Value) js.Value {
	if len(args) == 0 {
		return js.Undefined()
	}
	return args[0]
}
