////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

//go:build js && wasm

package wasm

import (
	"math"
	"syscall/js"
	"time"

	"gitlab.com/parley/parley-wasm/backend"
	"gitlab.com/parley/parley-wasm/utils"
)

var (
	jsArray = js.Global().Get("Array")
	jsDate  = js.Global().Get("Date")
)

// serverTimestampKey marks a field that the Javascript store must replace with
// its own clock (e.g. Firestore serverTimestamp()).
const serverTimestampKey = "$serverTimestamp"

// fieldsToJS converts document fields to a Javascript object. Times become
// Date objects and ServerTimestamp becomes {"$serverTimestamp": true}.
func fieldsToJS(f backend.Fields) js.Value {
	obj := utils.Object.New()
	for k, v := range f {
		obj.Set(k, valueToJS(v))
	}
	return obj
}

func valueToJS(v any) js.Value {
	switch val := v.(type) {
	case nil:
		return js.Null()
	case time.Time:
		return jsDate.New(float64(val.UnixMilli()))
	case []any:
		arr := jsArray.New(len(val))
		for i, e := range val {
			arr.SetIndex(i, valueToJS(e))
		}
		return arr
	case map[string]any:
		return fieldsToJS(val)
	case backend.Fields:
		return fieldsToJS(val)
	default:
		if backend.IsServerTimestamp(v) {
			marker := utils.Object.New()
			marker.Set(serverTimestampKey, true)
			return marker
		}
		return js.ValueOf(v)
	}
}

// fieldsFromJS converts a Javascript object to document fields. Date objects
// and objects with a toMillis method (Firestore Timestamp) become times;
// integral numbers become int64.
func fieldsFromJS(v js.Value) backend.Fields {
	f := backend.Fields{}
	if v.Type() != js.TypeObject {
		return f
	}

	keys := utils.Object.Call("keys", v)
	for i := 0; i < keys.Length(); i++ {
		k := keys.Index(i).String()
		f[k] = valueFromJS(v.Get(k))
	}
	return f
}

func valueFromJS(v js.Value) any {
	switch v.Type() {
	case js.TypeUndefined, js.TypeNull:
		return nil
	case js.TypeBoolean:
		return v.Bool()
	case js.TypeNumber:
		n := v.Float()
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case js.TypeString:
		return v.String()
	case js.TypeObject:
		switch {
		case v.InstanceOf(jsDate):
			return time.UnixMilli(int64(v.Call("getTime").Float())).UTC()
		case utils.HasMethod(v, "toMillis"):
			return time.UnixMilli(int64(v.Call("toMillis").Float())).UTC()
		case jsArray.Call("isArray", v).Bool():
			arr := make([]any, v.Length())
			for i := range arr {
				arr[i] = valueFromJS(v.Index(i))
			}
			return arr
		default:
			return map[string]any(fieldsFromJS(v))
		}
	default:
		return nil
	}
}

// docFromJS converts {id, path, fields} to a document.
func docFromJS(v js.Value) backend.Doc {
	return backend.Doc{
		ID:     v.Get("id").String(),
		Path:   v.Get("path").String(),
		Fields: fieldsFromJS(v.Get("fields")),
	}
}

func docsFromJS(v js.Value) []backend.Doc {
	if v.Type() != js.TypeObject {
		return nil
	}
	docs := make([]backend.Doc, v.Length())
	for i := range docs {
		docs[i] = docFromJS(v.Index(i))
	}
	return docs
}

// queryToJS converts a query to
//
//	{
//	  "collection": "users",
//	  "filters": [{"field": "email", "value": "a@example.com"}],
//	  "orderBy": "userName",
//	  "limit": 15,
//	  "startAfter": {"id": "u1", "path": "users/u1", "fields": {...}}
//	}
//
// orderBy, limit and startAfter are omitted when unset.
func queryToJS(q backend.Query) js.Value {
	obj := utils.Object.New()
	obj.Set("collection", q.Collection)

	filters := jsArray.New(len(q.Filters))
	for i, f := range q.Filters {
		filter := utils.Object.New()
		filter.Set("field", f.Field)
		filter.Set("value", valueToJS(f.Value))
		filters.SetIndex(i, filter)
	}
	obj.Set("filters", filters)

	if q.OrderBy != "" {
		obj.Set("orderBy", q.OrderBy)
	}
	if q.Limit > 0 {
		obj.Set("limit", q.Limit)
	}
	if q.StartAfter != nil {
		cursor := utils.Object.New()
		cursor.Set("id", q.StartAfter.ID)
		cursor.Set("path", q.StartAfter.Path)
		cursor.Set("fields", fieldsToJS(q.StartAfter.Fields))
		obj.Set("startAfter", cursor)
	}
	return obj
}
