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

	"github.com/hack-pad/safejs"
	"github.com/pkg/errors"

	"gitlab.com/parley/parley-wasm/backend"
	"gitlab.com/parley/parley-wasm/utils"
)

// notFoundName is the name of the Javascript Error a store rejects updateDoc
// with when the document does not exist.
const notFoundName = "NotFound"

// storeMethods are the methods a Javascript document store must implement.
var storeMethods = []string{
	"query", "watch", "watchDoc", "writeDoc", "updateDoc", "addDoc"}

// jsDocumentStore wraps a Javascript object to adhere to the
// [backend.DocumentStore] interface. It is the glue to a browser database SDK
// such as Firestore.
//
// The object must implement:
//
//	query(query) => Promise<Doc[]>
//	watch(query, (docs: Doc[] | null, err: Error | null) => void) => () => void
//	watchDoc(path, (doc: Doc | null, err: Error | null) => void) => () => void
//	writeDoc(path, fields) => Promise<void>
//	updateDoc(path, fields) => Promise<void>
//	addDoc(collection, fields) => Promise<string>
//
// where Doc is {id, path, fields}. updateDoc rejects with an Error named
// "NotFound" when the document does not exist. A field set to
// {"$serverTimestamp": true} must be replaced with the server clock.
type jsDocumentStore struct {
	v safejs.Value
}

// newJsDocumentStore wraps the Javascript object. Returns an error if it is
// missing a method.
func newJsDocumentStore(v js.Value) (*jsDocumentStore, error) {
	for _, m := range storeMethods {
		if !utils.HasMethod(v, m) {
			return nil, errors.Errorf("document store has no method %q", m)
		}
	}
	return &jsDocumentStore{v: safejs.Safe(v)}, nil
}

// call invokes the method and waits for the promise it returns.
func (s *jsDocumentStore) call(
	ctx context.Context, method string, args ...any) (js.Value, error) {
	p, err := s.v.Call(method, args...)
	if err != nil {
		return js.Undefined(), errors.Wrapf(err, "%s threw", method)
	}
	return utils.Await(ctx, safejs.Unsafe(p))
}

func (s *jsDocumentStore) Query(
	ctx context.Context, q backend.Query) ([]backend.Doc, error) {
	v, err := s.call(ctx, "query", queryToJS(q))
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to query %s", q.Collection)
	}
	return docsFromJS(v), nil
}

func (s *jsDocumentStore) Watch(
	q backend.Query, fn backend.SnapshotFunc) (backend.Unsubscribe, error) {
	convert := func(args []js.Value) func() {
		if err := callbackError(args); err != nil {
			return func() { fn(nil, err) }
		}
		docs := docsFromJS(args[0])
		return func() { fn(docs, nil) }
	}

	unsub, err := subscribe(s.v, "watch", q.Collection, convert, queryToJS(q))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to watch %s", q.Collection)
	}
	return unsub, nil
}

func (s *jsDocumentStore) WatchDoc(
	path string, fn backend.DocFunc) (backend.Unsubscribe, error) {
	convert := func(args []js.Value) func() {
		if err := callbackError(args); err != nil {
			return func() { fn(backend.Doc{}, false, err) }
		}
		if len(args) == 0 || args[0].IsNull() || args[0].IsUndefined() {
			return func() { fn(backend.Doc{Path: path}, false, nil) }
		}
		d := docFromJS(args[0])
		return func() { fn(d, true, nil) }
	}

	unsub, err := subscribe(s.v, "watchDoc", path, convert, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to watch %s", path)
	}
	return unsub, nil
}

func (s *jsDocumentStore) WriteDoc(
	ctx context.Context, path string, fields backend.Fields) error {
	if _, err := s.call(ctx, "writeDoc", path, fieldsToJS(fields)); err != nil {
		return errors.WithMessagef(err, "failed to write %s", path)
	}
	return nil
}

func (s *jsDocumentStore) UpdateDoc(
	ctx context.Context, path string, fields backend.Fields) error {
	_, err := s.call(ctx, "updateDoc", path, fieldsToJS(fields))
	if utils.ExceptionName(err) == notFoundName {
		return errors.WithMessagef(backend.ErrNotFound, "%s", path)
	} else if err != nil {
		return errors.WithMessagef(err, "failed to update %s", path)
	}
	return nil
}

func (s *jsDocumentStore) AddDoc(ctx context.Context, collection string,
	fields backend.Fields) (string, error) {
	v, err := s.call(ctx, "addDoc", collection, fieldsToJS(fields))
	if err != nil {
		return "", errors.WithMessagef(err, "failed to add to %s", collection)
	} else if v.Type() != js.TypeString {
		return "", errors.Errorf("addDoc on %s returned %s instead of an ID",
			collection, v.Type())
	}
	return v.String(), nil
}

// callbackError returns the error passed as the second argument of a
// subscription callback or nil if there is none.
func callbackError(args []js.Value) error {
	if len(args) < 2 || args[1].IsNull() || args[1].IsUndefined() {
		return nil
	}
	return utils.GoError(args[1])
}
