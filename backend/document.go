////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package backend

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Fields is the content of a document keyed on field name.
type Fields map[string]any

// serverTimestamp is the type of the ServerTimestamp sentinel.
type serverTimestamp struct{}

// ServerTimestamp is a field value that the backend replaces with its own
// clock when the document is written.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp returns true if v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	c := make(Fields, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}

// Doc is a document read from the DocumentStore.
type Doc struct {
	// ID is the last segment of the path.
	ID string

	// Path is the full path of the document.
	Path string

	Fields Fields
}

// String returns the field as a string. Returns an empty string if the field
// is missing, null or not a string.
func (d Doc) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Bool returns the field as a bool. Returns false if the field is missing,
// null or not a bool.
func (d Doc) Bool(field string) bool {
	b, _ := d.Fields[field].(bool)
	return b
}

// Time returns the field as a time. Returns the zero time if the field is
// missing, null or not a time.
func (d Doc) Time(field string) time.Time {
	switch t := d.Fields[field].(type) {
	case time.Time:
		return t
	case int64:
		return time.UnixMilli(t)
	default:
		return time.Time{}
	}
}

// Filter restricts a query to documents whose field equals the value.
type Filter struct {
	Field string
	Value any
}

// Query describes a read of a collection.
type Query struct {
	// Collection is the path of the collection (e.g. "chats/a_b/messages").
	Collection string

	// Filters are equality filters that must all match.
	Filters []Filter

	// OrderBy is the field results are sorted on in ascending order. Ties and
	// queries without an order are sorted by document ID.
	OrderBy string

	// Limit is the maximum number of results. Zero means no limit.
	Limit int

	// StartAfter, if set, skips every document ordered at or before it.
	StartAfter *Doc
}

// SplitPath splits a document path into its collection path and document ID.
// Returns an error if the path does not point to a document.
func SplitPath(path string) (collection, id string, err error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", errors.Errorf("%q is not a document path", path)
	}
	for _, s := range segments {
		if s == "" {
			return "", "", errors.Errorf("%q contains an empty segment", path)
		}
	}

	return strings.Join(segments[:len(segments)-1], "/"),
		segments[len(segments)-1], nil
}

// JoinPath joins path segments into a single path.
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// Matches returns true if the document passes all the query filters.
func (q Query) Matches(d Doc) bool {
	for _, f := range q.Filters {
		if CompareValues(d.Fields[f.Field], f.Value) != 0 {
			return false
		}
	}
	return true
}

// Less reports whether a is ordered before b in the query.
func (q Query) Less(a, b Doc) bool {
	return q.compare(a, b) < 0
}

// After reports whether d is ordered after the query's StartAfter cursor.
// Always returns true when there is no cursor.
func (q Query) After(d Doc) bool {
	if q.StartAfter == nil {
		return true
	}
	return q.compare(d, *q.StartAfter) > 0
}

func (q Query) compare(a, b Doc) int {
	if q.OrderBy != "" {
		if c := CompareValues(a.Fields[q.OrderBy], b.Fields[q.OrderBy]); c != 0 {
			return c
		}
	}
	return strings.Compare(a.ID, b.ID)
}

// CompareValues orders two field values. Values of different kinds are ordered
// null < bool < number < time < string.
func CompareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}

	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case time.Time:
		return av.Compare(b.(time.Time))
	case string:
		return strings.Compare(av, b.(string))
	default:
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
