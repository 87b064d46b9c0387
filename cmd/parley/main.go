////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// package main is a command line client for the chat core. It runs the same
// sessions as the WASM module against MongoDB or an in-memory backend and is
// not a WASM module itself.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/parley/parley-wasm/logging"
)

// Flag variables.
var configPath string

// v holds the configuration; flags are bound to its keys.
var v = viper.New()

// cfg is loaded before any subcommand runs.
var cfg Config

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Command line client for Parley direct messaging.",
	Long: "Command line client for Parley direct messaging. Configuration is " +
		"read from the file given with --config and from PARLEY_* " +
		"environment variables (e.g. PARLEY_MONGO_URI).",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = loadConfig(v, configPath); err != nil {
			return err
		}

		threshold, err := logging.ParseThreshold(cfg.Log.Level)
		if err != nil {
			return err
		}
		initLog(threshold, cfg.Log.Path)
		return nil
	},
}

// init is the initialization function for Cobra which defines flags.
func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "",
		"Path to a YAML, JSON or TOML config file.")
	pf.StringP("logLevel", "v", "error",
		"Verbosity level of logging: trace, debug, info, warn, error, "+
			"critical or fatal.")
	pf.StringP("log", "l", "-",
		"Log output path. By default, logs are printed to stdout. "+
			"To disable logging, set this to empty (\"\").")
	pf.StringP("backend", "b", memoryBackend,
		"Backend to use: memory or mongo.")
	pf.String("email", "", "Email of the account to sign in with.")
	pf.String("password", "", "Password of the account to sign in with.")

	bindFlag("log.level", "logLevel")
	bindFlag("log.path", "log")
	bindFlag("backend", "backend")
	bindFlag("account.email", "email")
	bindFlag("account.password", "password")

	rootCmd.AddCommand(registerCmd, usersCmd, chatCmd, profileCmd)
}

func bindFlag(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		jww.FATAL.Panicf("Failed to bind flag %s: %+v", flag, err)
	}
}

// initLog will enable JWW logging to the given log path with the given
// threshold. If log path is empty, then logging is not enabled. Panics if the
// log file cannot be opened.
func initLog(threshold jww.Threshold, logPath string) {
	if logPath == "" {
		// Do not enable logging if no log file is set
		jww.SetStdoutOutput(io.Discard)
		return
	} else if logPath != "-" {
		// Set the log file if stdout is not selected

		// Disable stdout output
		jww.SetStdoutOutput(io.Discard)

		// Use log file
		logOutput, err :=
			os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err)
		}
		jww.SetLogOutput(logOutput)
	}

	// Display microseconds if the threshold is set to TRACE or DEBUG
	if threshold == jww.LevelTrace || threshold == jww.LevelDebug {
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	// Enable logging
	jww.SetStdoutThreshold(threshold)
	jww.SetLogThreshold(threshold)
	jww.INFO.Printf("Log level set to: %s", threshold)
}
