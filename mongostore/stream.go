// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongostore

import (
	"context"

	"github.com/ikmak/mongoquery/dispatch"
	"github.com/ikmak/mongoquery/query"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var errStreamStarted = errors.New("stream options changed after iteration started")

// stream is a find that is not sent until the first call to Next, so the
// dispatcher can configure it first.
type stream struct {
	coll       *Collection
	filter     bson.M
	projection bson.M

	rp        *query.ReadPreference
	slaveOkay bool
	opts      *options.FindOptions

	cursor *mongo.Cursor
	done   bool
	err    error
}

var _ dispatch.RawStream = (*stream)(nil)

func newStream(coll *Collection, filter, projection bson.M) *stream {
	return &stream{coll: coll, filter: filter, projection: projection, opts: options.Find()}
}

func (s *stream) modify(fn func()) {
	if s.cursor != nil || s.done {
		s.err = errStreamStarted
		return
	}
	fn()
}

func (s *stream) SetReadPreference(rp query.ReadPreference) { s.modify(func() { s.rp = &rp }) }
func (s *stream) Hint(hint interface{}) { s.modify(func() { s.opts.SetHint(hint) }) }
func (s *stream) Immortal(immortal bool) { s.modify(func() { s.opts.SetNoCursorTimeout(immortal) }) }
func (s *stream) Limit(n int64) { s.modify(func() { s.opts.SetLimit(n) }) }
func (s *stream) Skip(n int64) { s.modify(func() { s.opts.SetSkip(n) }) }
func (s *stream) SlaveOkay(ok bool) { s.modify(func() { s.slaveOkay = ok }) }
func (s *stream) Sort(sort bson.D) { s.modify(func() { s.opts.SetSort(sort) }) }
func (s *stream) Snapshot() { s.modify(func() { s.opts.SetSnapshot(true) }) }

// readPref picks the read preference the find runs with: an explicit one
// wins, slaveOkay allows secondaries, otherwise the database's applies.
func (s *stream) readPref() (*readpref.ReadPref, error) {
	switch {
	case s.rp != nil:
		return s.rp.ReadPref()
	case s.slaveOkay:
		return readpref.SecondaryPreferred(), nil
	}
	return nil, nil
}

func (s *stream) open(ctx context.Context) error {
	rp, err := s.readPref()
	if err != nil {
		return errors.Wrap(err, "find")
	}
	coll, err := s.coll.db.collection(s.coll.name, rp)
	if err != nil {
		return err
	}
	if len(s.projection) > 0 {
		s.opts.SetProjection(s.projection)
	}

	ctx, span := startSpan(ctx, "Find")
	s.cursor, err = coll.Find(ctx, filterOrEmpty(s.filter), s.opts)
	endSpan(span, err)
	return errors.Wrapf(err, "find on %s", s.coll.name)
}

func (s *stream) Next(ctx context.Context) bool {
	if s.err != nil || s.done {
		return false
	}
	if s.cursor == nil {
		if err := s.open(ctx); err != nil {
			s.err = err
			s.done = true
			return false
		}
	}
	if s.cursor.Next(ctx) {
		return true
	}
	s.err = s.cursor.Err()
	s.done = true
	return false
}

func (s *stream) Decode(val interface{}) error {
	if s.cursor == nil {
		return errors.New("Decode called before Next")
	}
	return s.cursor.Decode(val)
}

func (s *stream) Err() error { return s.err }

func (s *stream) Close(ctx context.Context) error {
	s.done = true
	if s.cursor == nil {
		return nil
	}
	return s.cursor.Close(ctx)
}

func filterOrEmpty(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
