////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package storage

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// SEMVER is the current semantic version of the chat client WASM.
const SEMVER = "0.1.0"

const semverKey = "semanticVersion"

// oldVersion is the version that was stored before CheckAndStoreVersion
// overwrote it.
var oldVersion struct {
	v string
	sync.Mutex
}

// CheckAndStoreVersion compares the stored WASM version with the current one
// and then stores the current version. On first load, the current version is
// stored.
func CheckAndStoreVersion() error {
	return checkAndStoreVersion(SEMVER, GetLocalStorage())
}

func checkAndStoreVersion(current string, ls *LocalStorage) error {
	stored, err := ls.Get(semverKey)
	if errors.Is(err, os.ErrNotExist) {
		jww.INFO.Printf("[STORAGE] Initialising WASM version to v%s", current)
		stored = []byte(current)
	} else if err != nil {
		return errors.WithMessagef(err, "could not load %s from storage",
			semverKey)
	}

	setOldVersion(string(stored))

	if string(stored) != current {
		jww.INFO.Printf("[STORAGE] WASM out of date; upgrading version: "+
			"v%s -> v%s", stored, current)
	} else {
		jww.INFO.Printf("[STORAGE] WASM version is current: v%s", current)
	}

	return ls.Set(semverKey, []byte(current))
}

// GetOldVersion returns the WASM version stored before the last call to
// CheckAndStoreVersion.
func GetOldVersion() string {
	oldVersion.Lock()
	defer oldVersion.Unlock()
	return oldVersion.v
}

func setOldVersion(v string) {
	oldVersion.Lock()
	defer oldVersion.Unlock()
	oldVersion.v = v
}
