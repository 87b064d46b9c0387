////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"syscall/js"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/logging"
	"gitlab.com/parley/parley-wasm/storage"
	"gitlab.com/parley/parley-wasm/wasm"
)

func main() {
	fmt.Println("Parley Web Assembly")

	if err := logging.LogLevel(jww.LevelInfo); err != nil {
		jww.ERROR.Printf("[JS] Failed to set log level: %+v", err)
	}

	// Check that the WASM binary version is correct
	if err := storage.CheckAndStoreVersion(); err != nil {
		jww.FATAL.Panicf("[JS] WASM binary version error: %+v", err)
	}

	// wasm/client.go
	js.Global().Set("NewChatClient", js.FuncOf(wasm.NewChatClient))
	js.Global().Set("GetDefaultParams", js.FuncOf(wasm.GetDefaultParams))

	// wasm/logging.go
	js.Global().Set("LogLevel", js.FuncOf(wasm.LogLevel))
	js.Global().Set("LogToFile", js.FuncOf(wasm.LogToFile))
	js.Global().Set("GetLogFile", js.FuncOf(wasm.GetLogFile))

	// wasm/version.go
	js.Global().Set("GetVersion", js.FuncOf(wasm.GetVersion))
	js.Global().Set("GetOldVersion", js.FuncOf(wasm.GetOldVersion))
	js.Global().Set("Purge", js.FuncOf(wasm.Purge))

	// Wait until the user terminates the program
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	os.Exit(0)
}
