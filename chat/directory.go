////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"context"
	"strconv"
	"strings"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
)

// scrollThreshold is the distance, in pixels, from the bottom of the list at
// which the next page is requested.
const scrollThreshold = 5

// DirectoryState is the pagination state of the Directory.
type DirectoryState int

const (
	DirectoryIdle DirectoryState = iota
	DirectoryLoading
	DirectoryLoaded
	DirectoryLoadingMore
	DirectoryExhausted
)

// String returns a human-readable name of the state. This function adheres to
// the fmt.Stringer interface.
func (s DirectoryState) String() string {
	switch s {
	case DirectoryIdle:
		return "Idle"
	case DirectoryLoading:
		return "Loading"
	case DirectoryLoaded:
		return "Loaded"
	case DirectoryLoadingMore:
		return "LoadingMore"
	case DirectoryExhausted:
		return "Exhausted"
	default:
		return "INVALID STATE: " + strconv.Itoa(int(s))
	}
}

// Directory pages through the user directory ordered by user name, excluding
// the signed-in user. In filter mode it instead shows a live, client-side
// filtered view of the whole directory.
type Directory struct {
	store    backend.DocumentStore
	selfID   string
	pageSize int

	// notify is called with every change of the list. It is called while
	// holding the lock and must not call back into the Directory.
	notify func(users []User, state DirectoryState, filtering bool)

	// report receives failures of the filter subscription.
	report func(err error)

	state      DirectoryState
	users      []User
	cursor     *backend.Doc
	filtering  bool
	filterText string

	// epoch is incremented every time the list is replaced wholesale. Loads
	// and filter updates started in an older epoch are discarded.
	epoch       uint64
	unsubFilter backend.Unsubscribe

	mux sync.Mutex
}

func newDirectory(store backend.DocumentStore, selfID string, pageSize int,
	notify func([]User, DirectoryState, bool), report func(error)) *Directory {
	return &Directory{
		store:    store,
		selfID:   selfID,
		pageSize: pageSize,
		notify:   notify,
		report:   report,
		state:    DirectoryIdle,
	}
}

// LoadInitialPage replaces the list with the first page of the directory. On
// failure the list and state are left unchanged.
func (d *Directory) LoadInitialPage(ctx context.Context) error {
	d.mux.Lock()
	if d.filtering {
		d.mux.Unlock()
		return nil
	}
	d.epoch++
	epoch := d.epoch
	prevState := d.state
	d.state = DirectoryLoading
	d.mux.Unlock()

	docs, err := d.store.Query(ctx, d.pageQuery(nil))

	d.mux.Lock()
	defer d.mux.Unlock()
	if epoch != d.epoch {
		return nil
	}
	if err != nil {
		d.state = prevState
		return newError(NetworkError, "LoadInitialPage", err)
	}

	d.users = d.excludeSelf(docs)
	d.cursor = lastDoc(docs)
	d.state = d.stateAfter(docs)

	jww.DEBUG.Printf("[DIR] Loaded initial page of %d users (%s)",
		len(d.users), d.state)
	d.notifyLocked()
	return nil
}

// LoadNextPage appends the next page to the list. It does nothing while a page
// is loading, once the directory is exhausted, before the first page has
// loaded or in filter mode.
func (d *Directory) LoadNextPage(ctx context.Context) error {
	d.mux.Lock()
	if d.state != DirectoryLoaded || d.cursor == nil || d.filtering {
		d.mux.Unlock()
		return nil
	}
	epoch := d.epoch
	cursor := *d.cursor
	d.state = DirectoryLoadingMore
	d.mux.Unlock()

	docs, err := d.store.Query(ctx, d.pageQuery(&cursor))

	d.mux.Lock()
	defer d.mux.Unlock()
	if epoch != d.epoch {
		return nil
	}
	if err != nil {
		d.state = DirectoryLoaded
		return newError(NetworkError, "LoadNextPage", err)
	}

	d.users = append(d.users, d.excludeSelf(docs)...)
	if last := lastDoc(docs); last != nil {
		d.cursor = last
	}
	d.state = d.stateAfter(docs)

	jww.DEBUG.Printf("[DIR] Loaded next page of %d records, %d users total "+
		"(%s)", len(docs), len(d.users), d.state)
	d.notifyLocked()
	return nil
}

// OnScroll requests the next page when the scroll position is within a few
// pixels of the bottom of the list.
func (d *Directory) OnScroll(
	ctx context.Context, scrollTop, scrollHeight, clientHeight float64) error {
	if scrollTop+clientHeight < scrollHeight-scrollThreshold {
		return nil
	}
	return d.LoadNextPage(ctx)
}

// Search enters filter mode with the given text. The list is replaced by every
// user whose user name or email contains the text, ignoring case, and kept
// live. Searching for blank text leaves filter mode and reloads the first
// page.
func (d *Directory) Search(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	d.mux.Lock()
	prevUnsub := d.unsubFilter
	d.unsubFilter = nil
	d.epoch++
	epoch := d.epoch

	if text == "" {
		d.filtering = false
		d.filterText = ""
		d.mux.Unlock()
		if prevUnsub != nil {
			prevUnsub()
		}
		jww.DEBUG.Print("[DIR] Leaving filter mode")
		return d.LoadInitialPage(ctx)
	}

	d.filtering = true
	d.filterText = strings.ToLower(text)
	d.cursor = nil
	d.mux.Unlock()
	if prevUnsub != nil {
		prevUnsub()
	}

	jww.DEBUG.Printf("[DIR] Filtering directory on %q", text)

	unsub, err := d.store.Watch(backend.Query{Collection: usersCollection},
		func(docs []backend.Doc, err error) { d.applyFilter(epoch, docs, err) })
	if err != nil {
		return newError(NetworkError, "Search", err)
	}

	d.mux.Lock()
	if epoch != d.epoch {
		d.mux.Unlock()
		unsub()
		return nil
	}
	d.unsubFilter = unsub
	d.mux.Unlock()
	return nil
}

// applyFilter replaces the list with the matching users of a directory
// snapshot.
func (d *Directory) applyFilter(epoch uint64, docs []backend.Doc, err error) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if epoch != d.epoch {
		jww.TRACE.Printf("[DIR] Dropping stale filter update")
		return
	}
	if err != nil {
		jww.ERROR.Printf("[DIR] Filter subscription failed: %+v", err)
		if d.report != nil {
			d.report(newError(NetworkError, "Search", err))
		}
		return
	}

	matches := make([]User, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == d.selfID {
			continue
		}
		u := userFromDoc(doc)
		if strings.Contains(strings.ToLower(u.UserName), d.filterText) ||
			strings.Contains(strings.ToLower(u.Email), d.filterText) {
			matches = append(matches, u)
		}
	}
	d.users = matches
	d.state = DirectoryLoaded
	d.notifyLocked()
}

// Close cancels the filter subscription. Pending loads are discarded.
func (d *Directory) Close() {
	d.mux.Lock()
	unsub := d.unsubFilter
	d.unsubFilter = nil
	d.epoch++
	d.mux.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Users returns a copy of the current list.
func (d *Directory) Users() []User {
	d.mux.Lock()
	defer d.mux.Unlock()
	return append([]User(nil), d.users...)
}

// State returns the pagination state.
func (d *Directory) State() DirectoryState {
	d.mux.Lock()
	defer d.mux.Unlock()
	return d.state
}

// Filtering returns true in filter mode.
func (d *Directory) Filtering() bool {
	d.mux.Lock()
	defer d.mux.Unlock()
	return d.filtering
}

func (d *Directory) pageQuery(cursor *backend.Doc) backend.Query {
	return backend.Query{
		Collection: usersCollection,
		OrderBy:    fieldUserName,
		Limit:      d.pageSize,
		StartAfter: cursor,
	}
}

// stateAfter returns the state following a page of raw records. A short page
// means the directory is exhausted.
func (d *Directory) stateAfter(docs []backend.Doc) DirectoryState {
	if len(docs) < d.pageSize {
		return DirectoryExhausted
	}
	return DirectoryLoaded
}

func (d *Directory) excludeSelf(docs []backend.Doc) []User {
	users := make([]User, 0, len(docs))
	for _, doc := range docs {
		if doc.ID != d.selfID {
			users = append(users, userFromDoc(doc))
		}
	}
	return users
}

func (d *Directory) notifyLocked() {
	if d.notify != nil {
		d.notify(append([]User(nil), d.users...), d.state, d.filtering)
	}
}

func lastDoc(docs []backend.Doc) *backend.Doc {
	if len(docs) == 0 {
		return nil
	}
	last := docs[len(docs)-1]
	return &last
}
