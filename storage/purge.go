////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package storage

import (
	"context"

	"github.com/hack-pad/go-indexeddb/idb"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Purge deletes every indexedDb database and localStorage key created by this
// binary. Databases that are still open block deletion until they are closed
// or the context is done.
func Purge(ctx context.Context) error {
	databases, err := GetIndexedDbList()
	if err != nil {
		return errors.WithMessage(err,
			"failed to get list of indexedDb database names")
	}

	for name := range databases {
		if err = deleteDatabase(ctx, name); err != nil {
			return err
		}
		if err = removeIndexedDb(name); err != nil {
			return err
		}
	}

	n := GetLocalStorage().ClearWASM()
	jww.INFO.Printf("[STORAGE] Purged %d databases and %d localStorage keys",
		len(databases), n)
	return nil
}

func deleteDatabase(ctx context.Context, name string) error {
	req, err := idb.Global().DeleteDatabase(name)
	if err != nil {
		return errors.Wrapf(err, "failed to delete indexedDb database %q", name)
	}
	if err = req.Await(ctx); err != nil {
		return errors.Wrapf(err, "failed to delete indexedDb database %q", name)
	}

	jww.DEBUG.Printf("[STORAGE] Deleted indexedDb database %s", name)
	return nil
}
