////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package wasm

import (
	"context"
	"syscall/js"

	"gitlab.com/parley/parley-wasm/storage"
)

// GetVersion returns the current version of this module.
//
// Returns:
//   - storage.SEMVER (string).
func GetVersion(js.Value, []js.Value) any {
	return storage.SEMVER
}

// GetOldVersion returns the version this module ran at before the current
// page load. It equals the current version once CheckAndStoreVersion has run
// without an upgrade.
//
// Returns:
//   - Version (string).
func GetOldVersion(js.Value, []js.Value) any {
	return storage.GetOldVersion()
}

// Purge deletes every database and local storage entry created by this
// module. Any open session must be logged out first.
//
// Returns a promise:
//   - Resolves when everything is deleted.
//   - Rejected if a database cannot be deleted.
func Purge(js.Value, []js.Value) any {
	return promise(func(ctx context.Context) (any, error) {
		return nil, storage.Purge(ctx)
	})
}
