////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package logging routes jwalterweatherman logs to registered outputs: an
// in-memory log file and, in the browser, the Javascript console.
package logging

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// logListeners contains every registered log listener keyed on the ID returned
// by AddLogListener.
var logListeners = newLogListenerList()

type logListenerList struct {
	listeners map[uint64]jww.LogListener
	currentID uint64
	sync.Mutex
}

func newLogListenerList() *logListenerList {
	return &logListenerList{listeners: make(map[uint64]jww.LogListener)}
}

// AddLogListener registers the log listener with jwalterweatherman. Returns a
// unique ID that can be used to remove the listener.
func AddLogListener(ll jww.LogListener) uint64 {
	logListeners.Lock()
	defer logListeners.Unlock()

	id := logListeners.currentID
	logListeners.currentID++
	logListeners.listeners[id] = ll
	jww.SetLogListeners(logListeners.slice()...)
	return id
}

// RemoveLogListener unregisters the log listener with the ID.
func RemoveLogListener(id uint64) {
	logListeners.Lock()
	defer logListeners.Unlock()

	delete(logListeners.listeners, id)
	jww.SetLogListeners(logListeners.slice()...)
}

func (lll *logListenerList) slice() []jww.LogListener {
	listeners := make([]jww.LogListener, 0, len(lll.listeners))
	for _, l := range lll.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}

// ParseThreshold returns the threshold named by level (e.g. "debug" or
// "WARN"), ignoring case.
func ParseThreshold(level string) (jww.Threshold, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return jww.LevelTrace, nil
	case "DEBUG":
		return jww.LevelDebug, nil
	case "INFO", "":
		return jww.LevelInfo, nil
	case "WARN", "WARNING":
		return jww.LevelWarn, nil
	case "ERROR":
		return jww.LevelError, nil
	case "CRITICAL":
		return jww.LevelCritical, nil
	case "FATAL":
		return jww.LevelFatal, nil
	default:
		return 0, errors.Errorf("unknown log level %q", level)
	}
}

// ValidThreshold returns an error if the threshold is not a log level.
func ValidThreshold(threshold jww.Threshold) error {
	if threshold < jww.LevelTrace || threshold > jww.LevelFatal {
		return errors.Errorf("log level is not valid: log level: %d", threshold)
	}
	return nil
}
