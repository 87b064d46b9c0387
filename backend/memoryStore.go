////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"context"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// MemoryStore is an in-memory DocumentStore. Every subscription is served by
// its own delivery goroutine, so callbacks for a single subscription arrive in
// write order while callbacks of different subscriptions are unordered.
type MemoryStore struct {
	clock       clock.Clock
	collections map[string]map[string]Fields
	watchers    map[uint64]*memWatcher
	nextID      uint64
	mux         sync.Mutex
}

// memWatcher is a single live subscription to either a query or a document.
type memWatcher struct {
	query    *Query
	snapshot SnapshotFunc

	path string
	doc  DocFunc

	q *callQueue
}

// NewMemoryStore returns an empty MemoryStore that stamps ServerTimestamp
// fields using the given clock. A nil clock uses the system clock.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.New()
	}
	return &MemoryStore{
		clock:       c,
		collections: make(map[string]map[string]Fields),
		watchers:    make(map[uint64]*memWatcher),
	}
}

// Query returns the documents matching the query.
func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	return s.run(q), nil
}

// Watch subscribes to the query. The initial result is delivered immediately.
func (s *MemoryStore) Watch(q Query, fn SnapshotFunc) (Unsubscribe, error) {
	if q.Collection == "" {
		return nil, errors.New("cannot watch a query without a collection")
	}

	w := &memWatcher{query: &q, snapshot: fn, q: newCallQueue()}

	s.mux.Lock()
	id := s.addWatcher(w)
	docs := s.run(q)
	w.q.push(func() { fn(docs, nil) })
	s.mux.Unlock()

	jww.TRACE.Printf("[MEMSTORE] Watching query %d on %s", id, q.Collection)

	return s.unsubscribeFunc(id), nil
}

// WatchDoc subscribes to the document at path. The initial state is delivered
// immediately.
func (s *MemoryStore) WatchDoc(path string, fn DocFunc) (Unsubscribe, error) {
	if _, _, err := SplitPath(path); err != nil {
		return nil, err
	}

	w := &memWatcher{path: path, doc: fn, q: newCallQueue()}

	s.mux.Lock()
	id := s.addWatcher(w)
	d, exists := s.get(path)
	w.q.push(func() { fn(d, exists, nil) })
	s.mux.Unlock()

	jww.TRACE.Printf("[MEMSTORE] Watching document %d at %s", id, path)

	return s.unsubscribeFunc(id), nil
}

// WriteDoc creates or replaces the document at path.
func (s *MemoryStore) WriteDoc(ctx context.Context, path string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, id, err := SplitPath(path)
	if err != nil {
		return err
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	s.put(collection, id, s.resolve(fields))
	s.notify(collection, path)
	return nil
}

// UpdateDoc merges fields into the existing document at path.
func (s *MemoryStore) UpdateDoc(ctx context.Context, path string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, id, err := SplitPath(path)
	if err != nil {
		return err
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	existing, exists := s.collections[collection][id]
	if !exists {
		return errors.WithMessagef(ErrNotFound, "failed to update %s", path)
	}

	merged := existing.Clone()
	for k, v := range s.resolve(fields) {
		merged[k] = v
	}
	s.put(collection, id, merged)
	s.notify(collection, path)
	return nil
}

// AddDoc creates a document with a time ordered UUID as its ID.
func (s *MemoryStore) AddDoc(
	ctx context.Context, collection string, fields Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	u, err := uuid.NewV7()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate document ID")
	}
	id := u.String()
	path := JoinPath(collection, id)
	if _, _, err = SplitPath(path); err != nil {
		return "", err
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	s.put(collection, id, s.resolve(fields))
	s.notify(collection, path)
	return id, nil
}

// Count returns the number of documents in the collection.
func (s *MemoryStore) Count(collection string) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.collections[collection])
}

// addWatcher registers the watcher and returns its ID. Must be called with the
// lock held.
func (s *MemoryStore) addWatcher(w *memWatcher) uint64 {
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	return id
}

func (s *MemoryStore) unsubscribeFunc(id uint64) Unsubscribe {
	return func() {
		s.mux.Lock()
		w, exists := s.watchers[id]
		delete(s.watchers, id)
		s.mux.Unlock()

		if exists {
			w.q.stop()
			jww.TRACE.Printf("[MEMSTORE] Stopped watcher %d", id)
		}
	}
}

// put stores the fields. Must be called with the lock held.
func (s *MemoryStore) put(collection, id string, fields Fields) {
	docs, exists := s.collections[collection]
	if !exists {
		docs = make(map[string]Fields)
		s.collections[collection] = docs
	}
	docs[id] = fields
}

// get returns the document at path. Must be called with the lock held.
func (s *MemoryStore) get(path string) (Doc, bool) {
	collection, id, err := SplitPath(path)
	if err != nil {
		return Doc{}, false
	}
	fields, exists := s.collections[collection][id]
	if !exists {
		return Doc{ID: id, Path: path}, false
	}
	return Doc{ID: id, Path: path, Fields: fields.Clone()}, true
}

// run evaluates the query. Must be called with the lock held.
func (s *MemoryStore) run(q Query) []Doc {
	docs := make([]Doc, 0, len(s.collections[q.Collection]))
	for id, fields := range s.collections[q.Collection] {
		d := Doc{ID: id, Path: JoinPath(q.Collection, id), Fields: fields.Clone()}
		if q.Matches(d) && q.After(d) {
			docs = append(docs, d)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return q.Less(docs[i], docs[j]) })

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

// notify queues the new state for every watcher affected by a write to path.
// Must be called with the lock held.
func (s *MemoryStore) notify(collection, path string) {
	for _, w := range s.watchers {
		w := w
		switch {
		case w.query != nil && w.query.Collection == collection:
			docs := s.run(*w.query)
			w.q.push(func() { w.snapshot(docs, nil) })
		case w.doc != nil && w.path == path:
			d, exists := s.get(path)
			w.q.push(func() { w.doc(d, exists, nil) })
		}
	}
}

// resolve replaces ServerTimestamp sentinels with the current time.
func (s *MemoryStore) resolve(fields Fields) Fields {
	resolved := fields.Clone()
	for k, v := range resolved {
		if IsServerTimestamp(v) {
			resolved[k] = s.clock.Now().UTC()
		}
	}
	return resolved
}

////////////////////////////////////////////////////////////////////////////////
// Delivery Queue                                                             //
////////////////////////////////////////////////////////////////////////////////

// callQueue runs queued functions in order on a single goroutine. Pushing
// never blocks.
type callQueue struct {
	pending []func()
	signal  chan struct{}
	quit    chan struct{}
	once    sync.Once
	mux     sync.Mutex
}

func newCallQueue() *callQueue {
	q := &callQueue{
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
	go q.process()
	return q
}

func (q *callQueue) push(fn func()) {
	q.mux.Lock()
	q.pending = append(q.pending, fn)
	q.mux.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *callQueue) stop() {
	q.once.Do(func() { close(q.quit) })
}

func (q *callQueue) process() {
	for {
		select {
		case <-q.quit:
			return
		case <-q.signal:
			if !q.drain() {
				return
			}
		}
	}
}

// drain runs all pending functions. Returns false if the queue was stopped.
func (q *callQueue) drain() bool {
	for {
		q.mux.Lock()
		if len(q.pending) == 0 {
			q.mux.Unlock()
			return true
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		q.mux.Unlock()

		select {
		case <-q.quit:
			return false
		default:
		}
		fn()
	}
}
