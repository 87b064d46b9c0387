////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package main

import (
	"context"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
	"gitlab.com/parley/parley-wasm/chat"
	"gitlab.com/parley/parley-wasm/media"
	"gitlab.com/parley/parley-wasm/mongostore"
)

// newClient builds a chat.Client on the configured backend and media host.
// The returned function releases the backend.
func newClient(ctx context.Context, cfg Config) (*chat.Client, func(), error) {
	var (
		store    backend.DocumentStore
		identity backend.IdentityProvider
		closeFn  = func() {}
	)

	switch cfg.Backend {
	case mongoBackend:
		ms, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		store, identity = ms, mongostore.NewAccounts(ms)
		closeFn = func() {
			if err := ms.Close(context.Background()); err != nil {
				jww.WARN.Printf("Failed to disconnect from MongoDB: %+v", err)
			}
		}
	default:
		jww.WARN.Print("Using the in-memory backend; nothing outlives " +
			"this process")
		store = backend.NewMemoryStore(nil)
		identity = backend.NewMemoryIdentity()
	}

	mediaHost, err := newMediaHost(ctx, cfg.Media)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	return chat.NewClient(store, identity, mediaHost, cfg.params()), closeFn, nil
}

// newMediaHost returns the configured media host or nil if uploads are
// disabled.
func newMediaHost(
	ctx context.Context, cfg MediaConfig) (backend.MediaHost, error) {
	switch cfg.Provider {
	case cloudinaryMedia:
		return media.NewCloudinary(cfg.Cloudinary, nil)
	case s3Media:
		return media.NewS3(ctx, cfg.S3)
	default:
		return nil, nil
	}
}
