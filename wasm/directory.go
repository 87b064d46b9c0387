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

	"gitlab.com/parley/parley-wasm/chat"
)

// Directory wraps the [chat.Directory] object so its methods can be wrapped to
// be Javascript compatible. Changes to the list are delivered to the
// DirectoryUpdated method of the session's event model.
type Directory struct {
	api *chat.Directory
}

// newDirectoryJS creates a new Javascript compatible object (map[string]any)
// that matches the [Directory] structure.
func newDirectoryJS(api *chat.Directory) map[string]any {
	d := Directory{api}
	directoryMap := map[string]any{
		"LoadInitialPage": js.FuncOf(d.LoadInitialPage),
		"LoadNextPage":    js.FuncOf(d.LoadNextPage),
		"OnScroll":        js.FuncOf(d.OnScroll),
		"Search":          js.FuncOf(d.Search),
		"GetUsers":        js.FuncOf(d.GetUsers),
		"GetState":        js.FuncOf(d.GetState),
		"IsFiltering":     js.FuncOf(d.IsFiltering),
	}

	return directoryMap
}

// LoadInitialPage replaces the list with the first page of users.
//
// Returns a promise:
//   - Resolves when the page is loaded.
//   - Rejected with an Error named after the failure kind.
func (d *Directory) LoadInitialPage(js.Value, []js.Value) any {
	return promise(func(ctx context.Context) (any, error) {
		return nil, d.api.LoadInitialPage(ctx)
	})
}

// LoadNextPage appends the next page of users. It does nothing while a page
// is loading, in filter mode or once the end is reached.
//
// Returns a promise:
//   - Resolves when the page is loaded.
//   - Rejected with an Error named after the failure kind.
func (d *Directory) LoadNextPage(js.Value, []js.Value) any {
	return promise(func(ctx context.Context) (any, error) {
		return nil, d.api.LoadNextPage(ctx)
	})
}

// OnScroll loads the next page when the list is scrolled to the bottom.
//
// Parameters:
//   - args[0] - scrollTop of the list element (number).
//   - args[1] - scrollHeight of the list element (number).
//   - args[2] - clientHeight of the list element (number).
//
// Returns a promise:
//   - Resolves when any page requested is loaded.
//   - Rejected with an Error named after the failure kind.
func (d *Directory) OnScroll(_ js.Value, args []js.Value) any {
	scrollTop := arg(args, 0).Float()
	scrollHeight := arg(args, 1).Float()
	clientHeight := arg(args, 2).Float()
	return promise(func(ctx context.Context) (any, error) {
		return nil, d.api.OnScroll(ctx, scrollTop, scrollHeight, clientHeight)
	})
}

// Search filters the list to users whose user name or email contains the
// text. Blank text leaves filter mode.
//
// Parameters:
//   - args[0] - Search text (string).
//
// Returns a promise:
//   - Resolves once the filter subscription is open. Results arrive through
//     DirectoryUpdated.
//   - Rejected with an Error named after the failure kind.
func (d *Directory) Search(_ js.Value, args []js.Value) any {
	text := arg(args, 0).String()
	return promise(func(ctx context.Context) (any, error) {
		return nil, d.api.Search(ctx, text)
	})
}

// GetUsers returns the current list.
//
// Returns:
//   - List of user objects.
func (d *Directory) GetUsers(js.Value, []js.Value) any {
	return toJS(d.api.Users())
}

// GetState returns the paging state ("Idle", "Loading", "Loaded",
// "LoadingMore" or "Exhausted").
func (d *Directory) GetState(js.Value, []js.Value) any {
	return d.api.State().String()
}

// IsFiltering returns true in filter mode.
func (d *Directory) IsFiltering(js.Value, []js.Value) any {
	return d.api.Filtering()
}
