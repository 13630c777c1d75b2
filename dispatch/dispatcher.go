// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package dispatch executes query descriptors against a collection.
//
// A Dispatcher routes a descriptor to the collection call its kind requires,
// assembles that call's options from the descriptor and the caller's options,
// configures the cursor of stream-producing kinds, and runs database-level
// calls under the descriptor's read preference, reinstating the database's
// previous read preference afterwards.
//
// A Dispatcher is not safe for concurrent use. The scoped read preference is
// installed on a Database handle that may be shared: other users of the same
// handle can observe it while a call is in flight, so callers that need
// isolation should serialize access or use one handle per operation.
package dispatch

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/ikmak/mongoquery/internal/ptrutil"
	"github.com/ikmak/mongoquery/query"
	"github.com/pkg/errors"
)

// Dispatcher executes a single query descriptor.
type Dispatcher struct {
	coll    Collection
	desc    query.Descriptor
	options query.Options

	log     logr.Logger
	tracing bool

	cursor *Cursor
}

// New validates desc and returns a Dispatcher for it. The descriptor and the
// options bag are copied; later changes to either do not affect the
// Dispatcher.
func New(coll Collection, desc query.Descriptor, opts query.Options, dopts ...*DispatcherOptions) (*Dispatcher, error) {
	if coll == nil {
		return nil, errors.Wrap(query.ErrInvalidArgument, "collection must not be nil")
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	do := MergeDispatcherOptions(dopts...)
	return &Dispatcher{
		coll:    coll,
		desc:    desc,
		options: opts.Clone(),
		log:     ptrutil.Deref(do.Logger, logr.Discard()),
		tracing: ptrutil.Deref(do.Tracing, false),
	}, nil
}

// Descriptor returns a copy of the descriptor being executed.
func (d *Dispatcher) Descriptor() query.Descriptor { return d.desc }

// Cursor returns a cursor over the query's results. It is only valid for
// kinds that produce a stream; other kinds fail with query.ErrInvalidOperation
// without calling the collection. The first cursor produced is kept and
// returned by later calls.
func (d *Dispatcher) Cursor(ctx context.Context) (*Cursor, error) {
	if d.cursor != nil {
		return d.cursor, nil
	}
	c, err := d.Iterate(ctx)
	if err != nil {
		return nil, err
	}
	d.cursor = c
	return c, nil
}

// Iterate executes the query again and returns a new cursor, bypassing the
// cursor kept by Cursor.
func (d *Dispatcher) Iterate(ctx context.Context) (*Cursor, error) {
	kind := d.desc.Kind
	if !kind.Streams() {
		return nil, errors.Wrapf(query.ErrInvalidOperation, "a cursor would not be returned for query kind %s", kind)
	}

	res, err := d.Execute(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := d.asCursor(res)
	if !ok {
		return nil, errors.Wrapf(query.ErrUnexpectedResult, "a cursor was not returned for query kind %s (got %s)", kind, res.Kind())
	}
	return c, nil
}

// ToArray drains the cursor returned by Cursor into the slice pointed to by
// results.
func (d *Dispatcher) ToArray(ctx context.Context, results interface{}) error {
	c, err := d.Cursor(ctx)
	if err != nil {
		return err
	}
	return c.All(ctx, results)
}

// SingleResult decodes the next result of the cursor returned by Cursor into
// val. It returns query.ErrNoDocuments when there is none.
func (d *Dispatcher) SingleResult(ctx context.Context, val interface{}) error {
	c, err := d.Cursor(ctx)
	if err != nil {
		return err
	}
	if !c.Next(ctx) {
		if err := c.Err(); err != nil {
			return err
		}
		return query.ErrNoDocuments
	}
	return c.Decode(val)
}

// asCursor turns a stream-shaped result into a cursor. Commands that answer
// inline carry their results in an array field of the response.
func (d *Dispatcher) asCursor(res Result) (*Cursor, bool) {
	switch res.Kind() {
	case StreamResult:
		c, _ := res.Cursor()
		return c, c != nil
	case SequenceResult:
		values, _ := res.Values()
		return newSliceCursor(values, d.coll), true
	case DocumentResult:
		doc, _ := res.Document()
		key := "results"
		if d.desc.Kind == query.Group {
			key = "retval"
		}
		values, ok := toValues(doc[key])
		if !ok {
			return nil, false
		}
		return newSliceCursor(values, d.coll), true
	}
	return nil, false
}
