////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package mongostore implements backend.DocumentStore and
// backend.IdentityProvider on MongoDB. Live queries use change streams, so the
// server must run as a replica set.
package mongostore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gitlab.com/parley/parley-wasm/backend"
)

const connectTimeout = 15 * time.Second

// Store is a backend.DocumentStore on a Mongo database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a connection to the Mongo deployment at uri and returns a
// store on the named database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	jww.INFO.Printf("[MONGO] Connected to database %s", database)

	return New(client, database), nil
}

// New returns a store on the database of an existing client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Database returns the underlying database.
func (s *Store) Database() *mongo.Database { return s.db }

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Query performs a one-shot read of the query.
func (s *Store) Query(ctx context.Context, q backend.Query) ([]backend.Doc, error) {
	l, err := locate(q.Collection)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, l, q)
}

func (s *Store) find(
	ctx context.Context, l location, q backend.Query) ([]backend.Doc, error) {
	opts := options.Find().SetSort(querySort(q))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(l.collection).Find(ctx, queryFilter(l, q), opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", q.Collection)
	}

	var raw []bson.M
	if err = cur.All(ctx, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", q.Collection)
	}

	docs := make([]backend.Doc, len(raw))
	for i, r := range raw {
		docs[i] = toDoc(l, r)
	}
	return docs, nil
}

// get reads a single document. Returns false if it does not exist.
func (s *Store) get(
	ctx context.Context, l location, id string) (backend.Doc, bool, error) {
	filter := bson.D{{Key: idKey, Value: l.key(id)}}

	var raw bson.M
	err := s.db.Collection(l.collection).FindOne(ctx, filter).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return backend.Doc{ID: id, Path: backend.JoinPath(l.path(), id)},
			false, nil
	} else if err != nil {
		return backend.Doc{}, false, errors.Wrapf(err, "failed to read %s/%s",
			l.path(), id)
	}
	return toDoc(l, raw), true, nil
}

// WriteDoc creates or replaces the document at path.
func (s *Store) WriteDoc(
	ctx context.Context, path string, fields backend.Fields) error {
	l, id, err := locateDoc(path)
	if err != nil {
		return err
	}
	return s.replace(ctx, l, id, fields)
}

func (s *Store) replace(ctx context.Context, l location, id string,
	fields backend.Fields) error {
	pipeline := mongo.Pipeline{
		{{Key: "$replaceWith", Value: replacement(l, id, fields)}},
	}
	_, err := s.db.Collection(l.collection).UpdateOne(ctx,
		bson.D{{Key: idKey, Value: l.key(id)}}, pipeline,
		options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(err, "failed to write %s/%s", l.path(), id)
	}

	jww.TRACE.Printf("[MONGO] Wrote %s/%s", l.path(), id)
	return nil
}

// UpdateDoc merges fields into the existing document at path.
func (s *Store) UpdateDoc(
	ctx context.Context, path string, fields backend.Fields) error {
	l, id, err := locateDoc(path)
	if err != nil {
		return err
	}

	filter := bson.D{{Key: idKey, Value: l.key(id)}}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: setExpression(fields)}}}
	res, err := s.db.Collection(l.collection).UpdateOne(ctx, filter, pipeline)
	if err != nil {
		return errors.Wrapf(err, "failed to update %s", path)
	} else if res.MatchedCount == 0 {
		return errors.WithMessagef(backend.ErrNotFound, "%s", path)
	}

	jww.TRACE.Printf("[MONGO] Updated %s", path)
	return nil
}

// AddDoc creates a document with a time-ordered ID in the collection.
func (s *Store) AddDoc(ctx context.Context, collection string,
	fields backend.Fields) (string, error) {
	l, err := locate(collection)
	if err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate document ID")
	}

	if err = s.replace(ctx, l, id.String(), fields); err != nil {
		return "", err
	}
	return id.String(), nil
}
