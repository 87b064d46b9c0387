////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mongostore

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gitlab.com/parley/parley-wasm/backend"
)

const (
	idKey     = "_id"
	parentKey = "_parent"
)

// location is where a backend collection path lives in Mongo. The last
// segment of the path names the Mongo collection and the rest is stored in
// the _parent field of every document. The _id of a document is its full
// path, so documents with the same ID under different parents do not collide.
type location struct {
	collection string
	parent     string
}

// locate maps a collection path to its location.
func locate(collectionPath string) (location, error) {
	trimmed := strings.Trim(collectionPath, "/")
	segments := strings.Split(trimmed, "/")
	if trimmed == "" || len(segments)%2 != 1 {
		return location{}, errors.Errorf(
			"%q is not a collection path", collectionPath)
	}
	for _, s := range segments {
		if s == "" {
			return location{}, errors.Errorf(
				"%q contains an empty segment", collectionPath)
		}
	}

	return location{
		collection: segments[len(segments)-1],
		parent:     strings.Join(segments[:len(segments)-1], "/"),
	}, nil
}

// locateDoc maps a document path to its location and ID.
func locateDoc(path string) (location, string, error) {
	collection, id, err := backend.SplitPath(path)
	if err != nil {
		return location{}, "", err
	}
	loc, err := locate(collection)
	return loc, id, err
}

// path returns the collection path of the location.
func (l location) path() string {
	if l.parent == "" {
		return l.collection
	}
	return backend.JoinPath(l.parent, l.collection)
}

// key returns the _id of the document with the ID.
func (l location) key(id string) string {
	return backend.JoinPath(l.path(), id)
}

// id returns the document ID of an _id.
func (l location) id(key string) string {
	return strings.TrimPrefix(key, l.path()+"/")
}

// scope returns the filter selecting every document of the location.
func (l location) scope() bson.D {
	return bson.D{{Key: parentKey, Value: l.parent}}
}

// queryFilter returns the Mongo filter for the query, including the cursor.
func queryFilter(l location, q backend.Query) bson.D {
	filter := l.scope()
	for _, f := range q.Filters {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}
	if q.StartAfter != nil {
		filter = append(filter, cursorFilter(l, q.OrderBy, *q.StartAfter)...)
	}
	return filter
}

// cursorFilter selects documents ordered after the cursor on (orderBy, _id).
// Null sorts before every other value. Within a parent, _id orders the same as
// the document ID.
func cursorFilter(l location, orderBy string, cursor backend.Doc) bson.D {
	key := l.key(cursor.ID)
	if orderBy == "" {
		return bson.D{{Key: idKey, Value: bson.D{{Key: "$gt", Value: key}}}}
	}

	v := cursor.Fields[orderBy]
	after := bson.D{{Key: orderBy, Value: bson.D{{Key: "$gt", Value: v}}}}
	if v == nil {
		after = bson.D{{Key: orderBy, Value: bson.D{{Key: "$ne", Value: nil}}}}
	}

	return bson.D{{Key: "$or", Value: bson.A{
		after,
		bson.D{
			{Key: orderBy, Value: v},
			{Key: idKey, Value: bson.D{{Key: "$gt", Value: key}}},
		},
	}}}
}

// querySort returns the sort order of the query. Ties are broken on _id.
func querySort(q backend.Query) bson.D {
	if q.OrderBy == "" {
		return bson.D{{Key: idKey, Value: 1}}
	}
	return bson.D{{Key: q.OrderBy, Value: 1}, {Key: idKey, Value: 1}}
}

// setExpression converts fields into the body of an aggregation $set stage.
// Values are wrapped in $literal so strings starting with "$" are not read as
// field paths, and ServerTimestamp becomes the server's $$NOW.
func setExpression(fields backend.Fields) bson.D {
	set := make(bson.D, 0, len(fields))
	for k, v := range fields {
		set = append(set, bson.E{Key: k, Value: valueExpression(v)})
	}
	return set
}

func valueExpression(v any) any {
	if backend.IsServerTimestamp(v) {
		return "$$NOW"
	}
	return bson.D{{Key: "$literal", Value: v}}
}

// replacement returns the $replaceWith body for a full document write.
func replacement(l location, id string, fields backend.Fields) bson.D {
	doc := bson.D{
		{Key: idKey, Value: valueExpression(l.key(id))},
		{Key: parentKey, Value: valueExpression(l.parent)},
	}
	return append(doc, setExpression(fields)...)
}

// toDoc converts a raw Mongo document into a backend.Doc.
func toDoc(l location, raw bson.M) backend.Doc {
	key, _ := raw[idKey].(string)
	id := l.id(key)
	fields := make(backend.Fields, len(raw))
	for k, v := range raw {
		if k == idKey || k == parentKey {
			continue
		}
		fields[k] = fromBSON(v)
	}

	return backend.Doc{
		ID:     id,
		Path:   backend.JoinPath(l.path(), id),
		Fields: fields,
	}
}

// fromBSON converts decoded BSON values into the plain Go types used by
// backend.Fields.
func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case int32:
		return int64(t)
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = fromBSON(e)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = fromBSON(e.Value)
		}
		return m
	case bson.A:
		a := make([]any, len(t))
		for i, e := range t {
			a[i] = fromBSON(e)
		}
		return a
	default:
		return v
	}
}
