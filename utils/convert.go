////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package utils

import (
	"encoding/json"
	"syscall/js"

	"github.com/pkg/errors"
)

// CopyBytesToGo copies the [Uint8Array] stored in the [js.Value] to []byte.
// This is a wrapper for [js.CopyBytesToGo] to make it more convenient.
func CopyBytesToGo(src js.Value) []byte {
	b := make([]byte, src.Length())
	js.CopyBytesToGo(b, src)
	return b
}

// CopyBytesToJS copies the []byte to a [Uint8Array] stored in a [js.Value].
// This is a wrapper for [js.CopyBytesToJS] to make it more convenient.
func CopyBytesToJS(src []byte) js.Value {
	dst := Uint8Array.New(len(src))
	js.CopyBytesToJS(dst, src)
	return dst
}

// JsToJson converts the Javascript value to JSON.
func JsToJson(value js.Value) string {
	if value.IsUndefined() {
		return "null"
	}
	return JSON.Call("stringify", value).String()
}

// JsonToJS parses the JSON into a Javascript value.
func JsonToJS(inputJson []byte) (js.Value, error) {
	if !json.Valid(inputJson) {
		return js.Null(), errors.New("invalid JSON")
	}
	return JSON.Call("parse", string(inputJson)), nil
}

// ToJS converts the Go value to a Javascript value through its JSON encoding.
func ToJS(v any) (js.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return js.Null(), errors.Wrapf(err, "failed to marshal %T", v)
	}
	return JsonToJS(data)
}

// FromJS decodes the Javascript value into the Go value pointed to by out
// through its JSON encoding.
func FromJS(v js.Value, out any) error {
	if err := json.Unmarshal([]byte(JsToJson(v)), out); err != nil {
		return errors.Wrapf(err, "failed to unmarshal %T", out)
	}
	return nil
}
