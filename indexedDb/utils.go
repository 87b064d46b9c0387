////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

// This file contains the IndexedDB request helpers used by the message cache.

package indexedDb

import (
	"context"
	"syscall/js"
	"time"

	"github.com/hack-pad/go-indexeddb/idb"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/utils"
)

// dbTimeout is the timeout for each IndexedDB operation.
const dbTimeout = time.Second

// newContext builds a context for IndexedDB operations.
func newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

// sendRequest is a wrapper for the request.Await() method providing a timeout.
func sendRequest(request *idb.Request) (js.Value, error) {
	ctx, cancel := newContext()
	defer cancel()
	result, err := request.Await(ctx)
	if err != nil {
		return js.Undefined(), err
	} else if ctx.Err() != nil {
		return js.Undefined(), ctx.Err()
	}
	return result, nil
}

// sendCursorRequest iterates the cursor with iterFunc providing a timeout.
func sendCursorRequest(cur *idb.CursorWithValueRequest,
	iterFunc func(cursor *idb.CursorWithValue) error) error {
	ctx, cancel := newContext()
	defer cancel()
	err := cur.Iter(ctx, iterFunc)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// putAll inserts or replaces every value in the object store in a single
// transaction.
func putAll(db *idb.Database, objectStoreName string, values []js.Value) error {
	parentErr := errors.Errorf("failed to put into %s", objectStoreName)

	txn, err := db.Transaction(idb.TransactionReadWrite, objectStoreName)
	if err != nil {
		return errors.WithMessagef(parentErr,
			"Unable to create Transaction: %+v", err)
	}
	store, err := txn.ObjectStore(objectStoreName)
	if err != nil {
		return errors.WithMessagef(parentErr,
			"Unable to get ObjectStore: %+v", err)
	}

	for _, value := range values {
		if _, err = store.Put(value); err != nil {
			return errors.WithMessagef(parentErr, "Unable to Put: %+v", err)
		}
	}

	ctx, cancel := newContext()
	defer cancel()
	if err = txn.Await(ctx); err != nil {
		return errors.WithMessagef(parentErr,
			"Transaction failed: %+v", err)
	}

	jww.TRACE.Printf("[IDB] Put %d values in %s", len(values), objectStoreName)
	return nil
}

// get returns the value stored at the primary key. Returns false if there is
// none.
func get(db *idb.Database, objectStoreName string,
	key js.Value) (js.Value, bool, error) {
	parentErr := errors.Errorf("failed to get from %s", objectStoreName)

	txn, err := db.Transaction(idb.TransactionReadOnly, objectStoreName)
	if err != nil {
		return js.Undefined(), false, errors.WithMessagef(parentErr,
			"Unable to create Transaction: %+v", err)
	}
	store, err := txn.ObjectStore(objectStoreName)
	if err != nil {
		return js.Undefined(), false, errors.WithMessagef(parentErr,
			"Unable to get ObjectStore: %+v", err)
	}

	request, err := store.Get(key)
	if err != nil {
		return js.Undefined(), false, errors.WithMessagef(parentErr,
			"Unable to Get from ObjectStore: %+v", err)
	}

	result, err := sendRequest(request)
	if err != nil {
		return js.Undefined(), false, errors.WithMessagef(parentErr,
			"Unable to get from ObjectStore: %+v", err)
	} else if result.IsUndefined() {
		return js.Undefined(), false, nil
	}
	return result, true, nil
}

// getAllByIndex returns every value whose index key equals key in index order.
func getAllByIndex(db *idb.Database, objectStoreName, indexName string,
	key js.Value) ([]js.Value, error) {
	parentErr := errors.Errorf("failed to get all from %s/%s",
		objectStoreName, indexName)

	txn, err := db.Transaction(idb.TransactionReadOnly, objectStoreName)
	if err != nil {
		return nil, errors.WithMessagef(parentErr,
			"Unable to create Transaction: %+v", err)
	}
	store, err := txn.ObjectStore(objectStoreName)
	if err != nil {
		return nil, errors.WithMessagef(parentErr,
			"Unable to get ObjectStore: %+v", err)
	}
	index, err := store.Index(indexName)
	if err != nil {
		return nil, errors.WithMessagef(parentErr,
			"Unable to get Index: %+v", err)
	}

	keyRange, err := idb.NewKeyRangeOnly(key)
	if err != nil {
		return nil, errors.WithMessagef(parentErr,
			"Unable to create KeyRange: %+v", err)
	}
	cursorRequest, err := index.OpenCursorRange(keyRange, idb.CursorNext)
	if err != nil {
		return nil, errors.WithMessagef(parentErr,
			"Unable to open Cursor: %+v", err)
	}

	var results []js.Value
	err = sendCursorRequest(cursorRequest,
		func(cursor *idb.CursorWithValue) error {
			row, err := cursor.Value()
			if err != nil {
				return err
			}
			results = append(results, row)
			return nil
		})
	if err != nil {
		return nil, errors.WithMessagef(parentErr, "%+v", err)
	}

	jww.TRACE.Printf("[IDB] Got %d values from %s/%s for %s", len(results),
		objectStoreName, indexName, utils.JsToJson(key))
	return results, nil
}

// deleteByIndex removes every value whose index key equals key. Returns the
// number of values removed.
func deleteByIndex(db *idb.Database, objectStoreName, indexName string,
	key js.Value) (int, error) {
	parentErr := errors.Errorf("failed to delete from %s/%s",
		objectStoreName, indexName)

	txn, err := db.Transaction(idb.TransactionReadWrite, objectStoreName)
	if err != nil {
		return 0, errors.WithMessagef(parentErr,
			"Unable to create Transaction: %+v", err)
	}
	store, err := txn.ObjectStore(objectStoreName)
	if err != nil {
		return 0, errors.WithMessagef(parentErr,
			"Unable to get ObjectStore: %+v", err)
	}
	index, err := store.Index(indexName)
	if err != nil {
		return 0, errors.WithMessagef(parentErr,
			"Unable to get Index: %+v", err)
	}

	keyRange, err := idb.NewKeyRangeOnly(key)
	if err != nil {
		return 0, errors.WithMessagef(parentErr,
			"Unable to create KeyRange: %+v", err)
	}
	cursorRequest, err := index.OpenCursorRange(keyRange, idb.CursorNext)
	if err != nil {
		return 0, errors.WithMessagef(parentErr,
			"Unable to open Cursor: %+v", err)
	}

	var n int
	err = sendCursorRequest(cursorRequest,
		func(cursor *idb.CursorWithValue) error {
			if _, err := cursor.Delete(); err != nil {
				return err
			}
			n++
			return nil
		})
	if err != nil {
		return n, errors.WithMessagef(parentErr, "%+v", err)
	}
	return n, nil
}
