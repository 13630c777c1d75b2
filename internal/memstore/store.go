// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package memstore is an in-memory document store that satisfies the
// dispatch collaborator interfaces. Group and map-reduce take the names of Go
// functions registered on the Database in place of JavaScript.
package memstore

import (
	"context"
	"sync"

	"github.com/ikmak/mongoquery/dispatch"
	"github.com/ikmak/mongoquery/query"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// GroupReducer folds doc into the accumulator of its group.
type GroupReducer func(doc, acc bson.M)

// Mapper emits key/value pairs for doc.
type Mapper func(doc bson.M, emit func(key, value interface{}))

// Reducer combines the values emitted for key.
type Reducer func(key interface{}, values []interface{}) interface{}

// Finalizer rewrites a group accumulator before it is returned.
type Finalizer func(acc bson.M)

// Database is a named set of collections with a read preference.
type Database struct {
	mu    sync.Mutex
	name  string
	colls map[string]*Collection
	rp    query.ReadPreference

	groupReducers map[string]GroupReducer
	mappers       map[string]Mapper
	reducers      map[string]Reducer
	finalizers    map[string]Finalizer
}

var _ dispatch.Database = (*Database)(nil)

// NewDatabase returns an empty database with a primary read preference.
func NewDatabase(name string) *Database {
	return &Database{
		name:          name,
		colls:         make(map[string]*Collection),
		rp:            query.ReadPreference{Mode: readpref.PrimaryMode},
		groupReducers: make(map[string]GroupReducer),
		mappers:       make(map[string]Mapper),
		reducers:      make(map[string]Reducer),
		finalizers:    make(map[string]Finalizer),
	}
}

// Name returns the database name.
func (db *Database) Name() string { return db.name }

// Collection returns the named collection, creating it if needed.
func (db *Database) Collection(name string) *Collection {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.collectionLocked(name)
}

func (db *Database) collectionLocked(name string) *Collection {
	coll, ok := db.colls[name]
	if !ok {
		coll = &Collection{db: db, name: name}
		db.colls[name] = coll
	}
	return coll
}

// ReadPreference returns the current read preference.
func (db *Database) ReadPreference() query.ReadPreference {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rp
}

// SetReadPreference replaces the read preference. Primary mode cannot carry
// tag sets.
func (db *Database) SetReadPreference(rp query.ReadPreference) error {
	if rp.Mode == readpref.PrimaryMode && len(rp.TagSets) > 0 {
		return errors.Wrap(query.ErrInvalidArgument, "primary read preference cannot have tag sets")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rp = rp
	return nil
}

// RegisterGroupReducer makes fn available to group under name.
func (db *Database) RegisterGroupReducer(name string, fn GroupReducer) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.groupReducers[name] = fn
}

// RegisterMapper makes fn available to map-reduce under name.
func (db *Database) RegisterMapper(name string, fn Mapper) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.mappers[name] = fn
}

// RegisterReducer makes fn available to map-reduce under name.
func (db *Database) RegisterReducer(name string, fn Reducer) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.reducers[name] = fn
}

// RegisterFinalizer makes fn available to group under name.
func (db *Database) RegisterFinalizer(name string, fn Finalizer) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.finalizers[name] = fn
}

// Collection is an ordered list of documents.
type Collection struct {
	db   *Database
	name string
	docs []bson.M
}

var _ dispatch.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Database returns the collection's database.
func (c *Collection) Database() dispatch.Database { return c.db }

// InsertMany stores copies of docs, assigning an ObjectID to those without
// an _id.
func (c *Collection) InsertMany(docs ...bson.M) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	for _, doc := range docs {
		c.insertLocked(doc)
	}
}

func (c *Collection) insertLocked(doc bson.M) interface{} {
	stored := clone(doc)
	if stored == nil {
		stored = bson.M{}
	}
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = primitive.NewObjectID()
	}
	c.docs = append(c.docs, stored)
	return stored["_id"]
}

// matchingLocked returns the indexes of the documents matching filter.
func (c *Collection) matchingLocked(filter bson.M) ([]int, error) {
	var idx []int
	for i, doc := range c.docs {
		ok, err := match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

// Find returns a lazy stream over the documents matching filter.
func (c *Collection) Find(_ context.Context, filter, projection bson.M) (dispatch.RawStream, error) {
	return &stream{coll: c, filter: clone(filter), projection: clone(projection)}, nil
}

// FindAndUpdate updates the first document matching filter in sort order.
// Options: new, fields, sort, upsert.
func (c *Collection) FindAndUpdate(_ context.Context, filter, update bson.M, opts query.Options) (bson.M, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	i, err := c.firstLocked(filter, opts)
	if err != nil {
		return nil, err
	}
	returnNew, _ := opts["new"].(bool)
	fields, _ := toM(opts["fields"])

	if i < 0 {
		if upsert, _ := opts["upsert"].(bool); !upsert {
			return nil, nil
		}
		doc, err := applyUpdate(equalityFields(filter), update)
		if err != nil {
			return nil, err
		}
		c.insertLocked(doc)
		if !returnNew {
			return nil, nil
		}
		return project(c.docs[len(c.docs)-1], fields), nil
	}

	before := c.docs[i]
	after, err := applyUpdate(before, update)
	if err != nil {
		return nil, err
	}
	c.docs[i] = after
	if returnNew {
		return project(after, fields), nil
	}
	return project(before, fields), nil
}

// FindAndRemove removes the first document matching filter in sort order.
// Options: fields, sort.
func (c *Collection) FindAndRemove(_ context.Context, filter bson.M, opts query.Options) (bson.M, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	i, err := c.firstLocked(filter, opts)
	if err != nil || i < 0 {
		return nil, err
	}
	removed := c.docs[i]
	c.docs = append(c.docs[:i], c.docs[i+1:]...)
	fields, _ := toM(opts["fields"])
	return project(removed, fields), nil
}

// firstLocked returns the index of the first match in the order given by the
// sort option, or -1.
func (c *Collection) firstLocked(filter bson.M, opts query.Options) (int, error) {
	idx, err := c.matchingLocked(filter)
	if err != nil || len(idx) == 0 {
		return -1, err
	}
	spec, _ := opts["sort"].(bson.D)
	best := idx[0]
	for _, i := range idx[1:] {
		if lessBySpec(c.docs[i], c.docs[best], spec) {
			best = i
		}
	}
	return best, nil
}

// Insert stores doc.
func (c *Collection) Insert(_ context.Context, doc bson.M, _ query.Options) (dispatch.Status, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	id := c.insertLocked(doc)
	return dispatch.Status{Acknowledged: true, N: 1, InsertedID: id}, nil
}

// Update modifies the first document matching filter, or all of them when the
// multiple option is set. The upsert option inserts a document built from the
// filter's equality conditions when nothing matches.
func (c *Collection) Update(_ context.Context, filter, update bson.M, opts query.Options) (dispatch.Status, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	idx, err := c.matchingLocked(filter)
	if err != nil {
		return dispatch.Status{}, err
	}
	if len(idx) == 0 {
		if upsert, _ := opts["upsert"].(bool); !upsert {
			return dispatch.Status{Acknowledged: true}, nil
		}
		doc, err := applyUpdate(equalityFields(filter), update)
		if err != nil {
			return dispatch.Status{}, err
		}
		id := c.insertLocked(doc)
		return dispatch.Status{Acknowledged: true, N: 1, UpsertedID: id}, nil
	}
	if multiple, _ := opts["multiple"].(bool); !multiple {
		idx = idx[:1]
	}

	status := dispatch.Status{Acknowledged: true, N: int64(len(idx))}
	for _, i := range idx {
		updated, err := applyUpdate(c.docs[i], update)
		if err != nil {
			return dispatch.Status{}, err
		}
		if !equal(c.docs[i], updated) {
			status.Modified++
		}
		c.docs[i] = updated
	}
	return status, nil
}

// Remove deletes the documents matching filter, only the first with the
// justOne option.
func (c *Collection) Remove(_ context.Context, filter bson.M, opts query.Options) (dispatch.Status, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	idx, err := c.matchingLocked(filter)
	if err != nil {
		return dispatch.Status{}, err
	}
	if justOne, _ := opts["justOne"].(bool); justOne && len(idx) > 1 {
		idx = idx[:1]
	}

	remove := make(map[int]bool, len(idx))
	for _, i := range idx {
		remove[i] = true
	}
	kept := c.docs[:0]
	for i, doc := range c.docs {
		if !remove[i] {
			kept = append(kept, doc)
		}
	}
	c.docs = kept
	return dispatch.Status{Acknowledged: true, N: int64(len(idx))}, nil
}

// Count returns the number of documents matching filter.
func (c *Collection) Count(_ context.Context, filter bson.M) (int64, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	idx, err := c.matchingLocked(filter)
	return int64(len(idx)), err
}

func equalityFields(filter bson.M) bson.M {
	doc := bson.M{}
	for k, v := range filter {
		if m, ok := toM(v); (ok && isOperatorDoc(m)) || len(k) > 0 && k[0] == '$' {
			continue
		}
		setPath(doc, k, cloneValue(v))
	}
	return doc
}
