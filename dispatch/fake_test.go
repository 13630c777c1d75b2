// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package dispatch

import (
	"context"

	"github.com/ikmak/mongoquery/query"
	"go.mongodb.org/mongo-driver/bson"
)

type fakeCall struct {
	method string
	args   []interface{}
	// readPref is the database read preference in effect during the call.
	readPref query.ReadPreference
}

type fakeDatabase struct {
	rp      query.ReadPreference
	reads   int
	writes  int
	history []query.ReadPreference
	// setErr, when set, decides the error returned by SetReadPreference.
	setErr func(rp query.ReadPreference) error
}

var _ Database = (*fakeDatabase)(nil)

func (db *fakeDatabase) ReadPreference() query.ReadPreference {
	db.reads++
	return db.rp
}

func (db *fakeDatabase) SetReadPreference(rp query.ReadPreference) error {
	db.writes++
	if db.setErr != nil {
		if err := db.setErr(rp); err != nil {
			return err
		}
	}
	db.rp = rp
	db.history = append(db.history, rp)
	return nil
}

type fakeStream struct {
	docs    []bson.M
	pos     int
	applied []string
	rp      *query.ReadPreference
	limit   int64
	closed  bool
	err     error
}

var _ RawStream = (*fakeStream)(nil)

func (s *fakeStream) SetReadPreference(rp query.ReadPreference) {
	s.applied = append(s.applied, "readPreference")
	s.rp = &rp
}
func (s *fakeStream) Hint(interface{}) { s.applied = append(s.applied, "hint") }
func (s *fakeStream) Immortal(bool) { s.applied = append(s.applied, "immortal") }
func (s *fakeStream) Skip(int64) { s.applied = append(s.applied, "skip") }
func (s *fakeStream) SlaveOkay(bool) { s.applied = append(s.applied, "slaveOkay") }
func (s *fakeStream) Sort(bson.D) { s.applied = append(s.applied, "sort") }
func (s *fakeStream) Snapshot() { s.applied = append(s.applied, "snapshot") }
func (s *fakeStream) Limit(n int64) {
	s.applied = append(s.applied, "limit")
	s.limit = n
}

func (s *fakeStream) Next(context.Context) bool {
	if s.closed || s.err != nil || s.pos >= len(s.docs) {
		return false
	}
	if s.limit > 0 && int64(s.pos) >= s.limit {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Decode(val interface{}) error { return decodeValue(s.docs[s.pos-1], val) }
func (s *fakeStream) Err() error { return s.err }

func (s *fakeStream) Close(context.Context) error {
	s.closed = true
	return nil
}

type fakeCollection struct {
	db    *fakeDatabase
	calls []fakeCall

	stream *fakeStream
	doc    bson.M
	status Status
	mrOut  MapReduceOutput
	values []interface{}
	count  int64

	err       error
	panicWith interface{}
	// mutate, when set, is run on every options bag the collection receives.
	mutate func(opts query.Options)
}

var _ Collection = (*fakeCollection)(nil)

func newFakeCollection() *fakeCollection {
	return &fakeCollection{db: &fakeDatabase{}}
}

func (c *fakeCollection) record(method string, args ...interface{}) error {
	c.calls = append(c.calls, fakeCall{method: method, args: args, readPref: c.db.rp})
	for _, arg := range args {
		if opts, ok := arg.(query.Options); ok && c.mutate != nil {
			c.mutate(opts)
		}
	}
	if c.panicWith != nil {
		panic(c.panicWith)
	}
	return c.err
}

func (c *fakeCollection) Find(_ context.Context, filter, projection bson.M) (RawStream, error) {
	if err := c.record("find", filter, projection); err != nil {
		return nil, err
	}
	if c.stream == nil {
		c.stream = &fakeStream{}
	}
	return c.stream, nil
}

func (c *fakeCollection) FindAndUpdate(_ context.Context, filter, update bson.M, opts query.Options) (bson.M, error) {
	return c.doc, c.record("findAndUpdate", filter, update, opts)
}

func (c *fakeCollection) FindAndRemove(_ context.Context, filter bson.M, opts query.Options) (bson.M, error) {
	return c.doc, c.record("findAndRemove", filter, opts)
}

func (c *fakeCollection) Insert(_ context.Context, doc bson.M, opts query.Options) (Status, error) {
	return c.status, c.record("insert", doc, opts)
}

func (c *fakeCollection) Update(_ context.Context, filter, update bson.M, opts query.Options) (Status, error) {
	return c.status, c.record("update", filter, update, opts)
}

func (c *fakeCollection) Remove(_ context.Context, filter bson.M, opts query.Options) (Status, error) {
	return c.status, c.record("remove", filter, opts)
}

func (c *fakeCollection) Group(_ context.Context, keys interface{}, initial bson.M, reduce string, opts query.Options) (bson.M, error) {
	return c.doc, c.record("group", keys, initial, reduce, opts)
}

func (c *fakeCollection) MapReduce(_ context.Context, mapFn, reduceFn string, out interface{}, filter bson.M, opts query.Options) (MapReduceOutput, error) {
	return c.mrOut, c.record("mapReduce", mapFn, reduceFn, out, filter, opts)
}

func (c *fakeCollection) Distinct(_ context.Context, field string, filter bson.M, opts query.Options) ([]interface{}, error) {
	return c.values, c.record("distinct", field, filter, opts)
}

func (c *fakeCollection) Near(_ context.Context, near interface{}, filter bson.M, opts query.Options) (bson.M, error) {
	return c.doc, c.record("near", near, filter, opts)
}

func (c *fakeCollection) Count(_ context.Context, filter bson.M) (int64, error) {
	return c.count, c.record("count", filter)
}

func (c *fakeCollection) Database() Database { return c.db }

