////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package wasm

import (
	"syscall/js"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/logging"
	"gitlab.com/parley/parley-wasm/utils"
)

// LogLevel sets level of logging. All logs at the set level and above will be
// printed to the Javascript console.
//
// The default log level without updates is INFO.
//
// Parameters:
//   - args[0] - Log level (int).
//
// Log level options:
//
//	TRACE    - 0
//	DEBUG    - 1
//	INFO     - 2
//	WARN     - 3
//	ERROR    - 4
//	CRITICAL - 5
//	FATAL    - 6
//
// Returns:
//   - Throws a TypeError if the log level is invalid.
func LogLevel(_ js.Value, args []js.Value) any {
	if err := logging.LogLevel(jww.Threshold(arg(args, 0).Int())); err != nil {
		utils.Throw(utils.TypeError, err)
	}
	return nil
}

// LogToFile enables logging to a file that can be downloaded. Logs past the
// maximum size overwrite the oldest entries.
//
// Parameters:
//   - args[0] - Log level (int).
//   - args[1] - Log file name (string).
//   - args[2] - Max log file size, in bytes (int).
//
// Returns:
//   - A Javascript representation of the [LogFile] object, which allows
//     accessing the contents of the log file and other metadata.
//   - Throws a TypeError if the log level is invalid or the log file cannot
//     be created.
func LogToFile(_ js.Value, args []js.Value) any {
	threshold := jww.Threshold(arg(args, 0).Int())
	lf, err := logging.LogToFile(
		arg(args, 1).String(), threshold, arg(args, 2).Int())
	if err != nil {
		utils.Throw(utils.TypeError, err)
		return nil
	}

	return newLogFileJS(lf)
}

// GetLogFile returns the log file started by LogToFile.
//
// Returns:
//   - A Javascript representation of the [LogFile] object or null if logging
//     to a file was never started.
func GetLogFile(js.Value, []js.Value) any {
	lf := logging.GetLogFile()
	if lf == nil {
		return js.Null()
	}
	return newLogFileJS(lf)
}

// LogFile wraps the [logging.LogFile] object so its methods can be wrapped to
// be Javascript compatible.
type LogFile struct {
	api *logging.LogFile
}

// newLogFileJS creates a new Javascript compatible object (map[string]any)
// that matches the [LogFile] structure.
func newLogFileJS(api *logging.LogFile) map[string]any {
	lf := LogFile{api}
	logFileMap := map[string]any{
		"Name":        js.FuncOf(lf.Name),
		"Threshold":   js.FuncOf(lf.Threshold),
		"GetFile":     js.FuncOf(lf.GetFile),
		"MaxSize":     js.FuncOf(lf.MaxSize),
		"Size":        js.FuncOf(lf.Size),
		"StopLogging": js.FuncOf(lf.StopLogging),
	}

	return logFileMap
}

// Name returns the name of the log file.
//
// Returns:
//   - File name (string).
func (lf *LogFile) Name(js.Value, []js.Value) any {
	return lf.api.Name()
}

// Threshold returns the log level threshold used in the file.
//
// Returns:
//   - Log level (string).
func (lf *LogFile) Threshold(js.Value, []js.Value) any {
	return lf.api.Threshold().String()
}

// GetFile returns the entire log file.
//
// Returns:
//   - Log file contents (string).
func (lf *LogFile) GetFile(js.Value, []js.Value) any {
	return string(lf.api.GetFile())
}

// MaxSize returns the max size, in bytes, of the log file.
//
// Returns:
//   - Max file size (int).
func (lf *LogFile) MaxSize(js.Value, []js.Value) any {
	return lf.api.MaxSize()
}

// Size returns the current size, in bytes, written to the log file.
//
// Returns:
//   - Current file size (int).
func (lf *LogFile) Size(js.Value, []js.Value) any {
	return lf.api.Size()
}

// StopLogging stops writing to the file. The contents remain readable.
func (lf *LogFile) StopLogging(js.Value, []js.Value) any {
	lf.api.StopLogging()
	return nil
}
