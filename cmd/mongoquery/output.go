// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package main

import (
	"github.com/ikmak/mongoquery/dispatch"
	"github.com/ikmak/mongoquery/internal/config"
	"github.com/pkg/errors"
	"github.com/tidwall/pretty"
	"go.mongodb.org/mongo-driver/bson"
)

// resultValue converts a non-cursor result into something BSON can encode.
func resultValue(res dispatch.Result) interface{} {
	switch res.Kind() {
	case dispatch.DocumentResult:
		doc, _ := res.Document()
		if doc == nil {
			return nil
		}
		return doc
	case dispatch.AcknowledgmentResult:
		status, _ := res.Status()
		ack := bson.D{
			{Key: "acknowledged", Value: status.Acknowledged},
			{Key: "n", Value: status.N},
			{Key: "nModified", Value: status.Modified},
		}
		if status.UpsertedID != nil {
			ack = append(ack, bson.E{Key: "upserted", Value: status.UpsertedID})
		}
		if status.InsertedID != nil {
			ack = append(ack, bson.E{Key: "insertedId", Value: status.InsertedID})
		}
		return ack
	case dispatch.CountResult:
		n, _ := res.Count()
		return n
	case dispatch.SequenceResult:
		values, _ := res.Values()
		return values
	}
	return nil
}

// render encodes the result of qf as one line of relaxed extended JSON, or
// indented when pretty is set.
func render(qf *config.QueryFile, result interface{}, indent bool) ([]byte, error) {
	doc := bson.D{
		{Key: "file", Value: qf.Path},
		{Key: "kind", Value: qf.Descriptor.Kind.String()},
		{Key: "result", Value: result},
	}
	b, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding result of %s", qf.Path)
	}
	if indent {
		return pretty.Pretty(b), nil
	}
	return append(b, '\n'), nil
}
