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
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// distanceField holds the computed distance between $geoNear and $project.
const distanceField = "__mongoquery_dis"

// Group runs the group command. reduce is JavaScript source. Options: cond,
// finalize, keyf.
func (c *Collection) Group(ctx context.Context, keys interface{}, initial bson.M, reduce string, opts query.Options) (reply bson.M, err error) {
	ctx, span := startSpan(ctx, "Group")
	defer func() { endSpan(span, err) }()

	return c.db.runCommand(ctx, "group", groupCommand(c.name, keys, initial, reduce, opts))
}

func groupCommand(coll string, keys interface{}, initial bson.M, reduce string, opts query.Options) bson.D {
	spec := bson.D{
		{Key: "ns", Value: coll},
		{Key: "$reduce", Value: primitive.JavaScript(reduce)},
		{Key: "initial", Value: initialOrEmpty(initial)},
	}
	if keyf, ok := opts["keyf"].(string); ok {
		spec = append(spec, bson.E{Key: "$keyf", Value: primitive.JavaScript(keyf)})
	} else {
		spec = append(spec, bson.E{Key: "key", Value: keys})
	}
	if cond, ok := opts["cond"]; ok {
		spec = append(spec, bson.E{Key: "cond", Value: cond})
	}
	if finalize, ok := opts["finalize"].(string); ok {
		spec = append(spec, bson.E{Key: "finalize", Value: primitive.JavaScript(finalize)})
	}
	return bson.D{{Key: "group", Value: spec}}
}

func initialOrEmpty(initial bson.M) bson.M {
	if initial == nil {
		return bson.M{}
	}
	return initial
}

// mapReduceFields are the options passed through to the mapReduce command.
var mapReduceFields = []string{"sort", "limit", "finalize", "scope", "jsMode", "verbose", "bypassDocumentValidation"}

// MapReduce runs the mapReduce command. mapFn and reduceFn are JavaScript
// source. When the output goes to a collection the result is a stream over
// it; inline output returns the reply.
func (c *Collection) MapReduce(ctx context.Context, mapFn, reduceFn string, out interface{}, filter bson.M, opts query.Options) (output dispatch.MapReduceOutput, err error) {
	ctx, span := startSpan(ctx, "MapReduce")
	defer func() { endSpan(span, err) }()

	reply, err := c.db.runCommand(ctx, "mapReduce", mapReduceCommand(c.name, mapFn, reduceFn, out, filter, opts))
	if err != nil {
		return dispatch.MapReduceOutput{}, err
	}
	target, err := outputCollection(reply)
	if err != nil || target == "" {
		return dispatch.MapReduceOutput{Response: reply}, err
	}
	return dispatch.MapReduceOutput{Stream: newStream(c.db.Collection(target), nil, nil)}, nil
}

func mapReduceCommand(coll, mapFn, reduceFn string, out interface{}, filter bson.M, opts query.Options) bson.D {
	cmd := bson.D{
		{Key: "mapReduce", Value: coll},
		{Key: "map", Value: primitive.JavaScript(mapFn)},
		{Key: "reduce", Value: primitive.JavaScript(reduceFn)},
		{Key: "out", Value: out},
	}
	if len(filter) > 0 {
		cmd = append(cmd, bson.E{Key: "query", Value: filter})
	}
	for _, key := range mapReduceFields {
		v, ok := opts[key]
		if !ok || v == nil {
			continue
		}
		if key == "finalize" {
			if src, ok := v.(string); ok {
				v = primitive.JavaScript(src)
			}
		}
		cmd = append(cmd, bson.E{Key: key, Value: v})
	}
	return cmd
}

// outputCollection returns the collection a mapReduce reply names as its
// result, or "" for inline output. Output to another database is not
// supported.
func outputCollection(reply bson.M) (string, error) {
	switch result := reply["result"].(type) {
	case nil:
		return "", nil
	case string:
		return result, nil
	case bson.M:
		name, _ := result["collection"].(string)
		if name == "" {
			return "", errors.Wrapf(query.ErrUnexpectedResult, "mapReduce result %v", result)
		}
		return name, nil
	}
	return "", errors.Wrapf(query.ErrUnexpectedResult, "mapReduce result of type %T", reply["result"])
}

// Distinct returns the distinct values of field among the documents matching
// filter.
func (c *Collection) Distinct(ctx context.Context, field string, filter bson.M, _ query.Options) (values []interface{}, err error) {
	ctx, span := startSpan(ctx, "Distinct")
	defer func() { endSpan(span, err) }()

	coll, err := c.db.collection(c.name, nil)
	if err != nil {
		return nil, err
	}
	values, err = coll.Distinct(ctx, field, filterOrEmpty(filter))
	return values, errors.Wrapf(err, "distinct %s on %s", field, c.name)
}

// Near returns the documents matching filter nearest to near using a
// $geoNear aggregation. The reply has the shape of the geoNear command's:
// {results: [{dis, obj}], ok}. Options: num, key, maxDistance, minDistance,
// spherical, distanceMultiplier.
func (c *Collection) Near(ctx context.Context, near interface{}, filter bson.M, opts query.Options) (reply bson.M, err error) {
	ctx, span := startSpan(ctx, "Near")
	defer func() { endSpan(span, err) }()

	coll, err := c.db.collection(c.name, nil)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Aggregate(ctx, nearPipeline(near, filter, opts))
	if err != nil {
		return nil, errors.Wrapf(err, "geoNear on %s", c.name)
	}
	var results []bson.M
	if err := cur.All(ctx, &results); err != nil {
		return nil, errors.Wrapf(err, "geoNear on %s", c.name)
	}
	hits := make(bson.A, len(results))
	for i, r := range results {
		hits[i] = r
	}
	return bson.M{"results": hits, "ok": 1.0}, nil
}

func nearPipeline(near interface{}, filter bson.M, opts query.Options) bson.A {
	stage := bson.D{
		{Key: "near", Value: near},
		{Key: "distanceField", Value: distanceField},
	}
	if len(filter) > 0 {
		stage = append(stage, bson.E{Key: "query", Value: filter})
	}
	for _, key := range []string{"key", "maxDistance", "minDistance", "spherical", "distanceMultiplier"} {
		if v, ok := opts[key]; ok && v != nil {
			stage = append(stage, bson.E{Key: key, Value: v})
		}
	}

	pipeline := bson.A{bson.D{{Key: "$geoNear", Value: stage}}}
	if num, ok := opts["num"]; ok && num != nil {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: num}})
	}
	return append(pipeline,
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "dis", Value: "$" + distanceField},
			{Key: "obj", Value: "$$ROOT"},
		}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "obj." + distanceField, Value: 0}}}},
	)
}

// Count returns the number of documents matching filter.
func (c *Collection) Count(ctx context.Context, filter bson.M) (n int64, err error) {
	ctx, span := startSpan(ctx, "Count")
	defer func() { endSpan(span, err) }()

	coll, err := c.db.collection(c.name, nil)
	if err != nil {
		return 0, err
	}
	n, err = coll.CountDocuments(ctx, filterOrEmpty(filter))
	return n, errors.Wrapf(err, "count on %s", c.name)
}
