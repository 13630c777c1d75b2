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

// Collection is the collection-level driver surface a Dispatcher calls into.
// Group, MapReduce, Distinct, Near and Count are run under the read preference
// of the Database returned by Database.
type Collection interface {
	Find(ctx context.Context, filter, projection bson.M) (RawStream, error)
	// FindAndUpdate and FindAndRemove return a nil document when nothing
	// matched.
	FindAndUpdate(ctx context.Context, filter, update bson.M, opts query.Options) (bson.M, error)
	FindAndRemove(ctx context.Context, filter bson.M, opts query.Options) (bson.M, error)
	Insert(ctx context.Context, doc bson.M, opts query.Options) (Status, error)
	Update(ctx context.Context, filter, update bson.M, opts query.Options) (Status, error)
	Remove(ctx context.Context, filter bson.M, opts query.Options) (Status, error)
	Group(ctx context.Context, keys interface{}, initial bson.M, reduce string, opts query.Options) (bson.M, error)
	MapReduce(ctx context.Context, mapFn, reduceFn string, out interface{}, filter bson.M, opts query.Options) (MapReduceOutput, error)
	Distinct(ctx context.Context, field string, filter bson.M, opts query.Options) ([]interface{}, error)
	Near(ctx context.Context, near interface{}, filter bson.M, opts query.Options) (bson.M, error)
	Count(ctx context.Context, filter bson.M) (int64, error)

	Database() Database
}

// Database is the handle whose read preference database-level calls honour.
// It is shared state: a scoped override is visible to anything else using
// the same handle while it is installed.
type Database interface {
	ReadPreference() query.ReadPreference
	SetReadPreference(rp query.ReadPreference) error
}

// RawStream is a lazy sequence of documents as returned by the driver. The
// mutators configure the query and must be called before the first Next.
type RawStream interface {
	SetReadPreference(rp query.ReadPreference)
	Hint(hint interface{})
	Immortal(immortal bool)
	Limit(n int64)
	Skip(n int64)
	SlaveOkay(ok bool)
	Sort(sort bson.D)
	Snapshot()

	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// Status is the acknowledgment document of a write.
type Status struct {
	Acknowledged bool
	// N is the number of documents matched, inserted or removed.
	N        int64
	Modified int64
	// UpsertedID is set when an update inserted a document.
	UpsertedID interface{}
	// InsertedID is set by inserts.
	InsertedID interface{}
}

// MapReduceOutput is what a map-reduce returns: a stream over the output
// collection, or the command response when the output was inlined. Exactly one
// of the fields is set.
type MapReduceOutput struct {
	Stream   RawStream
	Response bson.M
}
