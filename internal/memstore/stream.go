// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package memstore

import (
	"context"
	"errors"

	"github.com/ikmak/mongoquery/dispatch"
	"github.com/ikmak/mongoquery/query"
	"go.mongodb.org/mongo-driver/bson"
)

var errStarted = errors.New("cursor options cannot be changed after iteration started")

// stream evaluates its query when Next is first called.
type stream struct {
	coll       *Collection
	filter     bson.M
	projection bson.M

	rp        *query.ReadPreference
	hint      interface{}
	immortal  bool
	limit     int64
	skip      int64
	slaveOkay bool
	sort      bson.D
	snapshot  bool

	started bool
	results []bson.M
	pos     int
	closed  bool
	err     error
}

var _ dispatch.RawStream = (*stream)(nil)

func (s *stream) modify(fn func()) {
	if s.started {
		s.err = errStarted
		return
	}
	fn()
}

func (s *stream) SetReadPreference(rp query.ReadPreference) { s.modify(func() { s.rp = &rp }) }
func (s *stream) Hint(hint interface{}) { s.modify(func() { s.hint = hint }) }
func (s *stream) Immortal(immortal bool) { s.modify(func() { s.immortal = immortal }) }
func (s *stream) Limit(n int64) { s.modify(func() { s.limit = n }) }
func (s *stream) Skip(n int64) { s.modify(func() { s.skip = n }) }
func (s *stream) SlaveOkay(ok bool) { s.modify(func() { s.slaveOkay = ok }) }
func (s *stream) Sort(sort bson.D) { s.modify(func() { s.sort = sort }) }
func (s *stream) Snapshot() { s.modify(func() { s.snapshot = true }) }

func (s *stream) run() {
	s.started = true
	c := s.coll
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	idx, err := c.matchingLocked(s.filter)
	if err != nil {
		s.err = err
		return
	}
	docs := make([]bson.M, len(idx))
	for n, i := range idx {
		docs[n] = c.docs[i]
	}
	sortDocs(docs, s.sort)

	if s.skip > 0 {
		if s.skip >= int64(len(docs)) {
			docs = nil
		} else {
			docs = docs[s.skip:]
		}
	}
	// A negative limit is a single batch of that size, as with the server.
	limit := s.limit
	if limit < 0 {
		limit = -limit
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}

	s.results = make([]bson.M, len(docs))
	for i, doc := range docs {
		s.results[i] = project(doc, s.projection)
	}
}

func (s *stream) Next(context.Context) bool {
	if !s.started {
		s.run()
	}
	if s.closed || s.err != nil || s.pos >= len(s.results) {
		return false
	}
	s.pos++
	return true
}

func (s *stream) Decode(val interface{}) error {
	if s.pos == 0 || s.pos > len(s.results) {
		return errors.New("no current document")
	}
	data, err := bson.Marshal(s.results[s.pos-1])
	if err != nil {
		return err
	}
	return bson.Unmarshal(data, val)
}

func (s *stream) Err() error { return s.err }

func (s *stream) Close(context.Context) error {
	s.closed = true
	s.results = nil
	return nil
}
