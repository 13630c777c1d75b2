// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package memstore

import (
	"context"
	"math"
	"sort"

	"github.com/ikmak/mongoquery/dispatch"
	"github.com/ikmak/mongoquery/query"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

const defaultNearNum = 100

// Group groups the documents matching the cond option by keys, folding each
// into a copy of initial with the reducer registered as reduce. The response
// has the shape of the group command's: {retval, count, keys, ok}.
func (c *Collection) Group(_ context.Context, keys interface{}, initial bson.M, reduce string, opts query.Options) (bson.M, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	reducer, ok := c.db.groupReducers[reduce]
	if !ok {
		return nil, errors.Errorf("group: no reducer registered as %q", reduce)
	}
	keyDoc, ok := toM(keys)
	if !ok {
		return nil, errors.New("group: keys must be a document")
	}
	keyFields := make([]string, 0, len(keyDoc))
	for k := range keyDoc {
		keyFields = append(keyFields, k)
	}
	sort.Strings(keyFields)

	cond, _ := toM(opts["cond"])
	idx, err := c.matchingLocked(cond)
	if err != nil {
		return nil, err
	}

	var groups []bson.M
	for _, i := range idx {
		doc := c.docs[i]
		var acc bson.M
		for _, g := range groups {
			if sameKey(g, doc, keyFields) {
				acc = g
				break
			}
		}
		if acc == nil {
			acc = clone(initial)
			if acc == nil {
				acc = bson.M{}
			}
			for _, k := range keyFields {
				v, _ := lookup(doc, k)
				acc[k] = cloneValue(v)
			}
			groups = append(groups, acc)
		}
		reducer(doc, acc)
	}

	if name, ok := opts["finalize"].(string); ok {
		finalize, ok := c.db.finalizers[name]
		if !ok {
			return nil, errors.Errorf("group: no finalizer registered as %q", name)
		}
		for _, g := range groups {
			finalize(g)
		}
	}

	retval := make(bson.A, len(groups))
	for i, g := range groups {
		retval[i] = g
	}
	return bson.M{"retval": retval, "count": int64(len(idx)), "keys": int64(len(groups)), "ok": 1.0}, nil
}

func sameKey(acc, doc bson.M, keyFields []string) bool {
	for _, k := range keyFields {
		v, _ := lookup(doc, k)
		if !equal(acc[k], v) {
			return false
		}
	}
	return true
}

// MapReduce runs the registered mapper and reducer over the documents matching
// filter. The sort and limit options restrict the input. An out of
// {inline: 1} returns {results, ok}; a collection name replaces that
// collection's contents and returns a stream over it.
func (c *Collection) MapReduce(ctx context.Context, mapFn, reduceFn string, out interface{}, filter bson.M, opts query.Options) (dispatch.MapReduceOutput, error) {
	results, err := c.mapReduce(mapFn, reduceFn, filter, opts)
	if err != nil {
		return dispatch.MapReduceOutput{}, err
	}

	if name, ok := out.(string); ok {
		target := c.db.Collection(name)
		c.db.mu.Lock()
		target.docs = nil
		for _, r := range results {
			target.insertLocked(r)
		}
		c.db.mu.Unlock()
		raw, err := target.Find(ctx, nil, nil)
		return dispatch.MapReduceOutput{Stream: raw}, err
	}

	outDoc, ok := toM(out)
	if !ok || !truthy(outDoc["inline"]) {
		return dispatch.MapReduceOutput{}, errors.Errorf("mapReduce: unsupported out %v", out)
	}
	inline := make(bson.A, len(results))
	for i, r := range results {
		inline[i] = r
	}
	return dispatch.MapReduceOutput{Response: bson.M{"results": inline, "ok": 1.0}}, nil
}

func (c *Collection) mapReduce(mapFn, reduceFn string, filter bson.M, opts query.Options) ([]bson.M, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	mapper, ok := c.db.mappers[mapFn]
	if !ok {
		return nil, errors.Errorf("mapReduce: no mapper registered as %q", mapFn)
	}
	reducer, ok := c.db.reducers[reduceFn]
	if !ok {
		return nil, errors.Errorf("mapReduce: no reducer registered as %q", reduceFn)
	}

	idx, err := c.matchingLocked(filter)
	if err != nil {
		return nil, err
	}
	docs := make([]bson.M, len(idx))
	for n, i := range idx {
		docs[n] = c.docs[i]
	}
	if spec, ok := opts["sort"].(bson.D); ok {
		sortDocs(docs, spec)
	}
	if limit, ok := toInt64(opts["limit"]); ok && limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}

	var keys []interface{}
	emitted := map[int][]interface{}{}
	for _, doc := range docs {
		mapper(doc, func(key, value interface{}) {
			for i, k := range keys {
				if equal(k, key) {
					emitted[i] = append(emitted[i], value)
					return
				}
			}
			keys = append(keys, key)
			emitted[len(keys)-1] = []interface{}{value}
		})
	}

	results := make([]bson.M, len(keys))
	for i, key := range keys {
		values := emitted[i]
		value := values[0]
		if len(values) > 1 {
			value = reducer(key, values)
		}
		results[i] = bson.M{"_id": key, "value": value}
	}
	return results, nil
}

// Distinct returns the distinct values of field among the documents matching
// filter, in first-seen order. Array values contribute their elements.
func (c *Collection) Distinct(_ context.Context, field string, filter bson.M, _ query.Options) ([]interface{}, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	idx, err := c.matchingLocked(filter)
	if err != nil {
		return nil, err
	}
	values := []interface{}{}
	add := func(v interface{}) {
		for _, seen := range values {
			if equal(seen, v) {
				return
			}
		}
		values = append(values, cloneValue(v))
	}
	for _, i := range idx {
		v, ok := lookup(c.docs[i], field)
		if !ok {
			continue
		}
		if list, isList := toList(v); isList {
			for _, e := range list {
				add(e)
			}
			continue
		}
		add(v)
	}
	return values, nil
}

// Near returns the documents matching filter ordered by planar distance from
// near, a legacy coordinate pair. Options: key (location field, default
// "loc"), num, maxDistance, distanceMultiplier. The response has the shape of
// the geoNear command's: {results: [{dis, obj}], ok}.
func (c *Collection) Near(_ context.Context, near interface{}, filter bson.M, opts query.Options) (bson.M, error) {
	origin, ok := point(near)
	if !ok {
		return nil, errors.Errorf("geoNear: near must be a coordinate pair, got %v", near)
	}
	key := "loc"
	if k, ok := opts["key"].(string); ok {
		key = k
	}
	num := int64(defaultNearNum)
	if n, ok := toInt64(opts["num"]); ok && n > 0 {
		num = n
	}
	maxDistance := math.Inf(1)
	if isNumber(opts["maxDistance"]) {
		maxDistance = toFloat(opts["maxDistance"])
	}
	multiplier := 1.0
	if isNumber(opts["distanceMultiplier"]) {
		multiplier = toFloat(opts["distanceMultiplier"])
	}

	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	idx, err := c.matchingLocked(filter)
	if err != nil {
		return nil, err
	}

	type hit struct {
		dis float64
		doc bson.M
	}
	var hits []hit
	for _, i := range idx {
		loc, _ := lookup(c.docs[i], key)
		p, ok := point(loc)
		if !ok {
			continue
		}
		dis := math.Hypot(p[0]-origin[0], p[1]-origin[1])
		if dis > maxDistance {
			continue
		}
		hits = append(hits, hit{dis: dis, doc: c.docs[i]})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dis < hits[j].dis })
	if int64(len(hits)) > num {
		hits = hits[:num]
	}

	results := make(bson.A, len(hits))
	for i, h := range hits {
		results[i] = bson.M{"dis": h.dis * multiplier, "obj": clone(h.doc)}
	}
	return bson.M{"results": results, "ok": 1.0}, nil
}

func point(v interface{}) ([2]float64, bool) {
	if m, ok := toM(v); ok {
		if coords, ok := m["coordinates"]; ok {
			return point(coords)
		}
		return [2]float64{}, false
	}
	list, ok := toList(v)
	if !ok || len(list) != 2 || !isNumber(list[0]) || !isNumber(list[1]) {
		return [2]float64{}, false
	}
	return [2]float64{toFloat(list[0]), toFloat(list[1])}, true
}
