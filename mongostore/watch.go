////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mongostore

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gitlab.com/parley/parley-wasm/backend"
)

// readTimeout bounds each read made on behalf of a subscription.
const readTimeout = 10 * time.Second

// Watch subscribes to the query. A change stream on the Mongo collection is
// opened before the initial read so no change is missed; every change under
// the query's parent re-runs the query and delivers the full result.
func (s *Store) Watch(
	q backend.Query, fn backend.SnapshotFunc) (backend.Unsubscribe, error) {
	l, err := locate(q.Collection)
	if err != nil {
		return nil, err
	}

	match := bson.D{{Key: "fullDocument." + parentKey, Value: l.parent}}
	read := func(ctx context.Context) {
		docs, err := s.find(ctx, l, q)
		fn(docs, err)
	}

	fail := func(err error) { fn(nil, err) }

	return s.subscribe(l, match, q.Collection, read, fail)
}

// WatchDoc subscribes to a single document.
func (s *Store) WatchDoc(
	path string, fn backend.DocFunc) (backend.Unsubscribe, error) {
	l, id, err := locateDoc(path)
	if err != nil {
		return nil, err
	}

	match := bson.D{{Key: "documentKey." + idKey, Value: l.key(id)}}
	read := func(ctx context.Context) {
		d, exists, err := s.get(ctx, l, id)
		fn(d, exists, err)
	}

	fail := func(err error) { fn(backend.Doc{}, false, err) }

	return s.subscribe(l, match, path, read, fail)
}

// subscribe opens a change stream on the location filtered by match and calls
// read once initially and after every matching change. Reads run in order on
// one goroutine until the returned function is called. If the stream breaks,
// fail is called and the subscription ends.
func (s *Store) subscribe(l location, match bson.D, name string,
	read func(ctx context.Context), fail func(err error)) (backend.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(context.Background())

	pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := s.db.Collection(l.collection).Watch(ctx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "failed to watch %s", name)
	}

	jww.DEBUG.Printf("[MONGO] Watching %s", name)

	go func() {
		defer func() { _ = stream.Close(context.Background()) }()

		s.readOnce(ctx, read)
		for stream.Next(ctx) {
			s.readOnce(ctx, read)
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			jww.ERROR.Printf("[MONGO] Change stream on %s failed: %+v",
				name, err)
			fail(errors.Wrapf(err, "change stream on %s failed", name))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			jww.DEBUG.Printf("[MONGO] Stopped watching %s", name)
		})
	}, nil
}

// readOnce runs read with a bounded context unless the subscription was
// cancelled.
func (s *Store) readOnce(ctx context.Context, read func(ctx context.Context)) {
	if ctx.Err() != nil {
		return
	}
	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	read(readCtx)
}
