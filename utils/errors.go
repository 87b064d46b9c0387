////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package utils

import (
	"fmt"
	"syscall/js"

	"github.com/pkg/errors"
)

// JsError converts the error to a Javascript Error.
func JsError(err error) js.Value {
	return Error.New(err.Error())
}

// JsTrace converts the error to a Javascript Error that includes the error's
// stack trace.
func JsTrace(err error) js.Value {
	return Error.New(fmt.Sprintf("%+v", err))
}

// JsKindError converts the error to a Javascript Error with its name set to
// kind so Javascript can branch on the failure kind.
func JsKindError(kind string, err error) js.Value {
	e := JsError(err)
	e.Set("name", kind)
	return e
}

// JsException is a Javascript Error converted to Go.
type JsException struct {
	Name    string
	Message string
}

// Error returns the name and message of the Javascript Error. This function
// adheres to the error interface.
func (e *JsException) Error() string {
	return e.Name + ": " + e.Message
}

// GoError converts a rejected or thrown Javascript value to a Go error. Error
// objects become a *JsException that can be found with errors.As. Any other
// value is converted to its string form.
func GoError(v js.Value) error {
	switch {
	case v.IsUndefined() || v.IsNull():
		return errors.New("unknown Javascript error")
	case v.Type() == js.TypeObject && v.InstanceOf(Error):
		return errors.WithStack(&JsException{
			Name:    v.Get("name").String(),
			Message: v.Get("message").String(),
		})
	default:
		return errors.New(v.String())
	}
}

// ExceptionName returns the name of the Javascript Error wrapped by err or an
// empty string if there is none.
func ExceptionName(err error) string {
	var e *JsException
	if errors.As(err, &e) {
		return e.Name
	}
	return ""
}

// Throw panics with the error formatted as the named Javascript exception. The
// syscall/js runtime surfaces the panic to the caller.
func Throw(exception Exception, err error) {
	panic(fmt.Sprintf("%s: %+v", exception, err))
}

// Exception are the possible Javascript error types that can be thrown.
type Exception string

const (
	// RangeError occurs when a numeric variable or parameter is outside its
	// valid range.
	RangeError Exception = "RangeError"

	// TypeError occurs when an operation could not be performed, typically (but
	// not exclusively) when a value is not of the expected type.
	TypeError Exception = "TypeError"
)
