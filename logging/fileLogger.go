////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package logging

import (
	"io"
	"sync"

	"github.com/armon/circbuf"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// stoppedThreshold is above every log level, so nothing is written.
const stoppedThreshold = jww.LevelFatal + 1

// logFile is the log file started by LogToFile.
var (
	logFile    *LogFile
	logFileMux sync.Mutex
)

// LogFile records jwalterweatherman logs in a circular in-memory buffer. Once
// the buffer is full, the oldest logs are overwritten.
type LogFile struct {
	name       string
	threshold  jww.Threshold
	listenerID uint64
	registered bool
	cb         *circbuf.Buffer
	mux        sync.Mutex
}

// NewLogFile returns a log file that records logs at or above the threshold
// up to maxSize bytes. It is not registered as a listener.
func NewLogFile(
	name string, threshold jww.Threshold, maxSize int) (*LogFile, error) {
	cb, err := circbuf.NewBuffer(int64(maxSize))
	if err != nil {
		return nil, errors.Wrap(err, "could not create new circular buffer")
	}

	return &LogFile{name: name, threshold: threshold, cb: cb}, nil
}

// LogToFile starts recording logs to a new log file, replacing any file
// started earlier.
func LogToFile(
	name string, threshold jww.Threshold, maxSize int) (*LogFile, error) {
	if err := ValidThreshold(threshold); err != nil {
		return nil, err
	}

	lf, err := NewLogFile(name, threshold, maxSize)
	if err != nil {
		return nil, err
	}

	logFileMux.Lock()
	if logFile != nil {
		logFile.StopLogging()
	}
	logFile = lf
	logFileMux.Unlock()

	id := AddLogListener(lf.Listen)
	lf.mux.Lock()
	lf.listenerID, lf.registered = id, true
	lf.mux.Unlock()

	jww.INFO.Printf("[LOG] Outputting log to file %s of max size %d at "+
		"level %s", name, maxSize, threshold)
	return lf, nil
}

// GetLogFile returns the log file started by LogToFile or nil if there is
// none.
func GetLogFile() *LogFile {
	logFileMux.Lock()
	defer logFileMux.Unlock()
	return logFile
}

// Write writes log entries to the buffer. This function adheres to the
// io.Writer interface.
func (lf *LogFile) Write(p []byte) (int, error) {
	lf.mux.Lock()
	defer lf.mux.Unlock()
	return lf.cb.Write(p)
}

// Listen returns the log file for logs at or above its threshold. This
// function adheres to the [jwalterweatherman.LogListener] type.
func (lf *LogFile) Listen(t jww.Threshold) io.Writer {
	if t < lf.Threshold() {
		return nil
	}
	return lf
}

// StopLogging stops recording logs. The recorded logs remain readable.
func (lf *LogFile) StopLogging() {
	lf.mux.Lock()
	lf.threshold = stoppedThreshold
	id, registered := lf.listenerID, lf.registered
	lf.registered = false
	lf.mux.Unlock()

	if registered {
		RemoveLogListener(id)
	}
}

// Name returns the name of the log file.
func (lf *LogFile) Name() string { return lf.name }

// Threshold returns the log level threshold used in the file.
func (lf *LogFile) Threshold() jww.Threshold {
	lf.mux.Lock()
	defer lf.mux.Unlock()
	return lf.threshold
}

// GetFile returns the entire log file.
func (lf *LogFile) GetFile() []byte {
	lf.mux.Lock()
	defer lf.mux.Unlock()
	return lf.cb.Bytes()
}

// MaxSize returns the max size, in bytes, that the log file is allowed to be.
func (lf *LogFile) MaxSize() int { return int(lf.cb.Size()) }

// Size returns the current size, in bytes, of the log file.
func (lf *LogFile) Size() int {
	lf.mux.Lock()
	defer lf.mux.Unlock()
	return len(lf.cb.Bytes())
}
