// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package query defines the descriptor of a single datastore operation: what
// kind of operation to run, against which documents, and with which options.
//
// A Descriptor is plain data. It is validated once, when a dispatcher is
// built around it, and is treated as immutable afterwards.
package query

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// GroupSpec holds the parameters of a group operation.
type GroupSpec struct {
	// Keys is either a document of field names or a key function.
	Keys    interface{}
	Initial bson.M
	Reduce  string
	Options Options
}

// MapReduceSpec holds the parameters of a map-reduce operation.
type MapReduceSpec struct {
	Map    string
	Reduce string
	// Out is a collection name or an output document such as {inline: 1}.
	Out     interface{}
	Options Options
}

// GeoNearSpec holds the parameters of a geo-near operation.
type GeoNearSpec struct {
	// Near is a legacy coordinate pair or a GeoJSON point.
	Near    interface{}
	Options Options
}

// Descriptor describes one logical datastore operation.
type Descriptor struct {
	Kind Kind

	Filter bson.M
	// Select is the projection of a find; find-and-modify sends it as fields.
	Select bson.M
	// NewObj is the update document, the replacement, or the document to
	// insert.
	NewObj bson.M

	Group     *GroupSpec
	MapReduce *MapReduceSpec
	Distinct  string
	GeoNear   *GeoNearSpec

	Hint      interface{}
	Immortal  *bool
	Limit     *int64
	Skip      *int64
	SlaveOkay *bool
	Sort      bson.D
	Snapshot  bool

	New      *bool
	Upsert   *bool
	Multiple *bool

	ReadPreference *ReadPreference
}

// Validate checks the descriptor's kind. Kind-specific fields are checked when
// the descriptor is executed.
func (d *Descriptor) Validate() error {
	if !d.Kind.IsValid() {
		return errors.Wrapf(ErrInvalidArgument, "invalid query kind %s", d.Kind)
	}
	return nil
}

// QueryOptions returns the option-like fields of the descriptor keyed by their
// option names. Absent fields are left out.
func (d *Descriptor) QueryOptions() Options {
	opts := Options{}
	if d.Select != nil {
		opts["select"] = d.Select
	}
	if d.Sort != nil {
		opts["sort"] = d.Sort
	}
	if d.Hint != nil {
		opts["hint"] = d.Hint
	}
	if d.Immortal != nil {
		opts["immortal"] = *d.Immortal
	}
	if d.Limit != nil {
		opts["limit"] = *d.Limit
	}
	if d.Skip != nil {
		opts["skip"] = *d.Skip
	}
	if d.SlaveOkay != nil {
		opts["slaveOkay"] = *d.SlaveOkay
	}
	if d.Snapshot {
		opts["snapshot"] = true
	}
	if d.New != nil {
		opts["new"] = *d.New
	}
	if d.Upsert != nil {
		opts["upsert"] = *d.Upsert
	}
	if d.Multiple != nil {
		opts["multiple"] = *d.Multiple
	}
	return opts
}
