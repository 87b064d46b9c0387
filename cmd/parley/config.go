////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"gitlab.com/parley/parley-wasm/chat"
	"gitlab.com/parley/parley-wasm/media"
)

// envPrefix prefixes every environment variable override (e.g.
// PARLEY_MONGO_URI overrides mongo.uri).
const envPrefix = "PARLEY"

// Backend kinds.
const (
	memoryBackend = "memory"
	mongoBackend  = "mongo"
)

// Media providers.
const (
	noMedia         = "none"
	cloudinaryMedia = "cloudinary"
	s3Media         = "s3"
)

// Config is the configuration of the command line client.
type Config struct {
	// Backend is "memory" or "mongo".
	Backend string      `mapstructure:"backend"`
	Mongo   MongoConfig `mapstructure:"mongo"`
	Media   MediaConfig `mapstructure:"media"`
	Log     LogConfig   `mapstructure:"log"`
	Chat    ChatConfig  `mapstructure:"chat"`

	// Account is the email and password commands sign in with.
	Account AccountConfig `mapstructure:"account"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type MediaConfig struct {
	// Provider is "none", "cloudinary" or "s3".
	Provider   string                 `mapstructure:"provider"`
	Cloudinary media.CloudinaryConfig `mapstructure:"cloudinary"`
	S3         media.S3Config         `mapstructure:"s3"`
}

type LogConfig struct {
	// Level is a level name such as "info" or "debug".
	Level string `mapstructure:"level"`

	// Path is the log file. "-" logs to stdout and "" disables logging.
	Path string `mapstructure:"path"`
}

type ChatConfig struct {
	PageSize   int           `mapstructure:"page_size"`
	TypingIdle time.Duration `mapstructure:"typing_idle"`
}

type AccountConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// defaults are registered with viper so that every key can be overridden from
// the environment even when it is absent from the config file.
func defaults() map[string]any {
	p := chat.DefaultParams()
	return map[string]any{
		"backend":                        memoryBackend,
		"mongo.uri":                      "mongodb://localhost:27017/?replicaSet=rs0",
		"mongo.database":                 "parley",
		"media.provider":                 noMedia,
		"media.cloudinary.cloud_name":    "",
		"media.cloudinary.upload_preset": "",
		"media.cloudinary.base_url":      media.DefaultCloudinaryURL,
		"media.s3.region":                "",
		"media.s3.bucket":                "",
		"media.s3.public_url":            "",
		"log.level":                      "error",
		"log.path":                       "-",
		"chat.page_size":                 p.PageSize,
		"chat.typing_idle":               p.TypingIdle,
		"account.email":                  "",
		"account.password":               "",
	}
}

// loadConfig reads the config file at path, if given, on top of the defaults
// and applies PARLEY_* environment overrides.
func loadConfig(v *viper.Viper, path string) (Config, error) {
	for k, d := range defaults() {
		v.SetDefault(k, d)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}
	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.Backend {
	case memoryBackend:
	case mongoBackend:
		if cfg.Mongo.URI == "" || cfg.Mongo.Database == "" {
			return errors.New("mongo backend requires mongo.uri and " +
				"mongo.database")
		}
	default:
		return errors.Errorf("unknown backend %q", cfg.Backend)
	}

	switch cfg.Media.Provider {
	case noMedia, "", cloudinaryMedia, s3Media:
	default:
		return errors.Errorf("unknown media provider %q", cfg.Media.Provider)
	}
	return nil
}

// params returns the chat parameters from the configuration.
func (cfg Config) params() chat.Params {
	p := chat.DefaultParams()
	p.PageSize = cfg.Chat.PageSize
	p.TypingIdle = cfg.Chat.TypingIdle
	return p
}
