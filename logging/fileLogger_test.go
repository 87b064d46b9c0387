////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package logging

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	jww "github.com/spf13/jwalterweatherman"
)

// Tests that LogFile.Write writes the expected data to the buffer and that
// when the max file size is reached, old data is replaced.
func TestLogFile_Write(t *testing.T) {
	rng := rand.New(rand.NewSource(3424))
	lf, err := NewLogFile("test", jww.LevelError, 512)
	if err != nil {
		t.Fatalf("Failed to make new LogFile: %+v", err)
	}

	expected := make([]byte, lf.MaxSize())
	rng.Read(expected)
	n, err := lf.Write(expected)
	if err != nil {
		t.Fatalf("Failed to write: %+v", err)
	} else if n != len(expected) {
		t.Fatalf("Did not write expected length.\nexpected: %d\nreceived: %d",
			len(expected), n)
	}

	if !bytes.Equal(lf.GetFile(), expected) {
		t.Fatalf("Incorrect bytes in buffer.\nexpected: %v\nreceived: %v",
			expected, lf.GetFile())
	}

	// Check that the data is overwritten
	rng.Read(expected)
	if _, err = lf.Write(expected); err != nil {
		t.Fatalf("Failed to write: %+v", err)
	}
	if !bytes.Equal(lf.GetFile(), expected) {
		t.Fatalf("Incorrect bytes in buffer.\nexpected: %v\nreceived: %v",
			expected, lf.GetFile())
	}
	if lf.Size() != lf.MaxSize() {
		t.Errorf("Incorrect size.\nexpected: %d\nreceived: %d",
			lf.MaxSize(), lf.Size())
	}
}

// Tests that LogFile.Listen only returns an io.Writer for valid thresholds.
func TestLogFile_Listen(t *testing.T) {
	th := jww.LevelError
	lf, err := NewLogFile("test", th, 512)
	if err != nil {
		t.Fatalf("Failed to make new LogFile: %+v", err)
	}

	thresholds := []jww.Threshold{-1, jww.LevelTrace, jww.LevelDebug,
		jww.LevelFatal, jww.LevelWarn, jww.LevelError, jww.LevelCritical,
		jww.LevelFatal}

	for _, threshold := range thresholds {
		w := lf.Listen(threshold)
		if threshold < th {
			if w != nil {
				t.Errorf("Did not receive nil io.Writer for level %s: %+v",
					threshold, w)
			}
		} else if w == nil {
			t.Errorf("Received nil io.Writer for level %s", threshold)
		}
	}
}

// Tests that LogFile.Listen always returns nil after LogFile.StopLogging is
// called and that the recorded logs remain.
func TestLogFile_StopLogging(t *testing.T) {
	lf, err := NewLogFile("test", jww.LevelError, 512)
	if err != nil {
		t.Fatalf("Failed to make new LogFile: %+v", err)
	}
	if _, err = lf.Write([]byte("before")); err != nil {
		t.Fatalf("Failed to write: %+v", err)
	}

	lf.StopLogging()

	if w := lf.Listen(jww.LevelFatal); w != nil {
		t.Errorf("Listen returned non-nil io.Writer when logging should have "+
			"been stopped: %+v", w)
	}
	if file := lf.GetFile(); string(file) != "before" {
		t.Errorf("Unexpected file after stopping: %q", file)
	}
}

// Tests that LogFile.GetFile returns every write in order and that
// LogFile.Size tracks it.
func TestLogFile_GetFile(t *testing.T) {
	rng := rand.New(rand.NewSource(9863))
	lf, err := NewLogFile("test", jww.LevelError, 512)
	if err != nil {
		t.Fatalf("Failed to make new LogFile: %+v", err)
	}

	var expected []byte
	for i := 0; i < 5; i++ {
		p := make([]byte, rng.Intn(64))
		rng.Read(p)
		expected = append(expected, p...)

		if _, err = lf.Write(p); err != nil {
			t.Errorf("Write %d failed: %+v", i, err)
		}
		if lf.Size() != len(expected) {
			t.Errorf("Incorrect size (%d).\nexpected: %d\nreceived: %d",
				i, len(expected), lf.Size())
		}
	}

	if file := lf.GetFile(); !bytes.Equal(expected, file) {
		t.Errorf("Unexpected file.\nexpected: %v\nreceived: %v", expected, file)
	}
}

// Tests that LogToFile registers the file with jwalterweatherman and that a
// second call replaces the first file.
func TestLogToFile(t *testing.T) {
	jww.SetLogThreshold(jww.LevelTrace)
	defer jww.SetLogThreshold(jww.LevelInfo)

	first, err := LogToFile("first", jww.LevelWarn, 4096)
	if err != nil {
		t.Fatalf("Failed to start logging: %+v", err)
	}
	if GetLogFile() != first {
		t.Errorf("GetLogFile did not return the started file.")
	}

	jww.INFO.Print("info entry")
	jww.WARN.Print("warn entry")
	file := string(first.GetFile())
	if strings.Contains(file, "info entry") ||
		!strings.Contains(file, "warn entry") {
		t.Errorf("Unexpected log file contents: %q", file)
	}

	second, err := LogToFile("second", jww.LevelDebug, 4096)
	if err != nil {
		t.Fatalf("Failed to start logging: %+v", err)
	}
	defer second.StopLogging()

	jww.ERROR.Print("error entry")
	if strings.Contains(string(first.GetFile()), "error entry") {
		t.Errorf("Replaced log file still records logs.")
	}
	if !strings.Contains(string(second.GetFile()), "error entry") {
		t.Errorf("New log file did not record: %q", second.GetFile())
	}

	if _, err = LogToFile("bad", jww.LevelFatal+1, 4096); err == nil {
		t.Errorf("No error for invalid threshold.")
	}
}

// Tests that ParseThreshold accepts level names in any case.
func TestParseThreshold(t *testing.T) {
	tests := map[string]jww.Threshold{
		"trace":    jww.LevelTrace,
		"DEBUG":    jww.LevelDebug,
		"":         jww.LevelInfo,
		" Warn ":   jww.LevelWarn,
		"warning":  jww.LevelWarn,
		"error":    jww.LevelError,
		"critical": jww.LevelCritical,
		"FATAL":    jww.LevelFatal,
	}

	for level, expected := range tests {
		th, err := ParseThreshold(level)
		if err != nil {
			t.Errorf("Failed to parse %q: %+v", level, err)
		} else if th != expected {
			t.Errorf("Unexpected threshold for %q.\nexpected: %s\nreceived: %s",
				level, expected, th)
		}
	}

	if _, err := ParseThreshold("loud"); err == nil {
		t.Errorf("No error for unknown level.")
	}
}
