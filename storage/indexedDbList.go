////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package storage

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
)

const indexedDbListKey = "indexedDbList"

var indexedDbListMux sync.Mutex

// GetIndexedDbList returns the names of the indexedDb databases opened by this
// binary.
func GetIndexedDbList() (map[string]struct{}, error) {
	indexedDbListMux.Lock()
	defer indexedDbListMux.Unlock()
	return loadIndexedDbList()
}

// StoreIndexedDb adds the database name to the list of databases deleted on
// Purge.
func StoreIndexedDb(databaseName string) error {
	indexedDbListMux.Lock()
	defer indexedDbListMux.Unlock()

	list, err := loadIndexedDbList()
	if err != nil {
		return err
	}
	if _, exists := list[databaseName]; exists {
		return nil
	}

	list[databaseName] = struct{}{}
	return saveIndexedDbList(list)
}

// removeIndexedDb removes the database name from the list.
func removeIndexedDb(databaseName string) error {
	indexedDbListMux.Lock()
	defer indexedDbListMux.Unlock()

	list, err := loadIndexedDbList()
	if err != nil {
		return err
	}

	delete(list, databaseName)
	return saveIndexedDbList(list)
}

func loadIndexedDbList() (map[string]struct{}, error) {
	list := make(map[string]struct{})
	listBytes, err := GetLocalStorage().Get(indexedDbListKey)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	} else if err == nil {
		if err = json.Unmarshal(listBytes, &list); err != nil {
			return nil, errors.Wrap(err, "failed to parse indexedDb list")
		}
	}
	return list, nil
}

func saveIndexedDbList(list map[string]struct{}) error {
	listBytes, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return GetLocalStorage().Set(indexedDbListKey, listBytes)
}
