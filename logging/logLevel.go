////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package logging

import (
	"log"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
)

// console is the listener registered by the last call to LogLevel.
var console struct {
	id         uint64
	registered bool
	sync.Mutex
}

// LogLevel sets level of logging. All logs at the set level and above will be
// printed to the Javascript console (e.g., when log level is ERROR, only
// ERROR, CRITICAL, and FATAL messages will be printed). Calling it again
// replaces the console listener.
//
// The default log level without updates is INFO.
func LogLevel(threshold jww.Threshold) error {
	if err := ValidThreshold(threshold); err != nil {
		return err
	}

	jww.SetLogThreshold(threshold)
	jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	jww.SetStdoutThreshold(stoppedThreshold)

	console.Lock()
	if console.registered {
		RemoveLogListener(console.id)
	}
	console.id = AddLogListener(NewConsoleListener(threshold).Listen)
	console.registered = true
	console.Unlock()

	logAt(threshold, "[LOG] Log level set to: %s", threshold)
	return nil
}

// logAt prints the message at the given level so that it is visible at that
// threshold.
func logAt(threshold jww.Threshold, format string, a ...any) {
	switch threshold {
	case jww.LevelTrace, jww.LevelDebug, jww.LevelInfo:
		jww.INFO.Printf(format, a...)
	case jww.LevelWarn:
		jww.WARN.Printf(format, a...)
	case jww.LevelError:
		jww.ERROR.Printf(format, a...)
	case jww.LevelCritical:
		jww.CRITICAL.Printf(format, a...)
	case jww.LevelFatal:
		jww.FATAL.Printf(format, a...)
	}
}
