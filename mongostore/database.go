// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package mongostore adapts the official MongoDB driver to the dispatch
// collaborator interfaces.
//
// The driver treats a *mongo.Database's read preference as immutable, while
// dispatch expects a handle whose read preference can be swapped for the
// duration of a command. A Database therefore keeps the read preference
// itself and derives driver handles from it on every call.
package mongostore

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/ikmak/mongoquery/dispatch"
	"github.com/ikmak/mongoquery/query"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opencensus.io/trace"
)

// Database is a database handle with a mutable read preference.
type Database struct {
	db  *mongo.Database
	log logr.Logger

	mu sync.RWMutex
	rp query.ReadPreference
}

var _ dispatch.Database = (*Database)(nil)

// NewDatabase wraps db. The read preference starts as db's own. A zero log
// discards.
func NewDatabase(db *mongo.Database, log logr.Logger) *Database {
	return &Database{
		db:  db,
		log: log.WithName("mongostore").WithValues("database", db.Name()),
		rp:  query.FromReadPref(db.ReadPreference()),
	}
}

// Name returns the database name.
func (db *Database) Name() string { return db.db.Name() }

// ReadPreference returns the current read preference.
func (db *Database) ReadPreference() query.ReadPreference {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.rp
}

// SetReadPreference replaces the read preference. It fails if the driver
// would reject rp, e.g. primary with tag sets.
func (db *Database) SetReadPreference(rp query.ReadPreference) error {
	if _, err := rp.ReadPref(); err != nil {
		return errors.Wrapf(query.ErrInvalidArgument, "read preference %s: %v", rp, err)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rp = rp.Normalized()
	return nil
}

// Collection returns a handle for the named collection.
func (db *Database) Collection(name string) *Collection {
	return &Collection{db: db, name: name}
}

// readPref returns the driver form of the current read preference.
func (db *Database) readPref() (*readpref.ReadPref, error) {
	rp := db.ReadPreference()
	pref, err := rp.ReadPref()
	return pref, errors.Wrapf(err, "read preference %s", rp)
}

// collection returns a driver handle for name that reads with rp, or with the
// database's current read preference when rp is nil.
func (db *Database) collection(name string, rp *readpref.ReadPref) (*mongo.Collection, error) {
	if rp == nil {
		var err error
		if rp, err = db.readPref(); err != nil {
			return nil, err
		}
	}
	return db.db.Collection(name, options.Collection().SetReadPreference(rp)), nil
}

// runCommand runs cmd against the database under the current read
// preference and decodes the reply into a document.
func (db *Database) runCommand(ctx context.Context, name string, cmd interface{}) (bson.M, error) {
	rp, err := db.readPref()
	if err != nil {
		return nil, err
	}
	db.log.V(1).Info("running command", "command", name, "readPreference", rp.Mode().String())

	var reply bson.M
	err = db.db.RunCommand(ctx, cmd, options.RunCmd().SetReadPreference(rp)).Decode(&reply)
	if err != nil {
		return nil, errors.Wrapf(err, "%s command", name)
	}
	return reply, nil
}

func startSpan(ctx context.Context, method string) (context.Context, *trace.Span) {
	return trace.StartSpan(ctx, "mongoquery/mongostore.(*Collection)."+method)
}

func endSpan(span *trace.Span, err error) {
	if err != nil {
		span.SetStatus(trace.Status{Code: trace.StatusCodeInternal, Message: err.Error()})
	}
	span.End()
}
