////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package logging

import (
	"io"
	"syscall/js"

	jww "github.com/spf13/jwalterweatherman"
)

// consoleMethods maps each log level to the method of the Javascript console
// object that prints it.
//
// Doc: https://developer.mozilla.org/en-US/docs/Web/API/console
var consoleMethods = map[jww.Threshold]string{
	jww.LevelTrace:    "debug",
	jww.LevelDebug:    "log",
	jww.LevelInfo:     "info",
	jww.LevelWarn:     "warn",
	jww.LevelError:    "error",
	jww.LevelCritical: "error",
	jww.LevelFatal:    "error",
}

// consoleWriter writes every log line with a single console method.
type consoleWriter struct {
	console js.Value
	method  string
}

// Write prints the data to the Javascript console. Returns the number of bytes
// written.
func (cw *consoleWriter) Write(p []byte) (int, error) {
	cw.console.Call(cw.method, string(p))
	return len(p), nil
}

// ConsoleListener redirects log output to the browser's Javascript console,
// printing each level with its matching console method.
type ConsoleListener struct {
	threshold jww.Threshold
	writers   map[jww.Threshold]*consoleWriter
	def       *consoleWriter
}

// NewConsoleListener returns a listener that prints logs at or above the
// threshold to the Javascript console.
func NewConsoleListener(threshold jww.Threshold) *ConsoleListener {
	console := js.Global().Get("console")
	cl := &ConsoleListener{
		threshold: threshold,
		writers:   make(map[jww.Threshold]*consoleWriter, len(consoleMethods)),
		def:       &consoleWriter{console, "log"},
	}
	for level, method := range consoleMethods {
		cl.writers[level] = &consoleWriter{console, method}
	}
	return cl
}

// Listen is called for every logging event. This function adheres to the
// [jwalterweatherman.LogListener] type.
func (cl *ConsoleListener) Listen(t jww.Threshold) io.Writer {
	if t < cl.threshold {
		return nil
	}
	if w, ok := cl.writers[t]; ok {
		return w
	}
	return cl.def
}
