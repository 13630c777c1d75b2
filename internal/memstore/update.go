// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package memstore

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// applyUpdate returns doc modified by update. An update without operators
// replaces everything but _id.
func applyUpdate(doc bson.M, update bson.M) (bson.M, error) {
	if !hasOperators(update) {
		replaced := clone(update)
		if id, ok := doc["_id"]; ok {
			replaced["_id"] = id
		}
		return replaced, nil
	}

	out := clone(doc)
	for op, arg := range update {
		fields, ok := toM(arg)
		if !ok {
			return nil, fmt.Errorf("%s requires a document", op)
		}
		for path, v := range fields {
			switch op {
			case "$set":
				setPath(out, path, cloneValue(v))
			case "$unset":
				unsetPath(out, path)
			case "$inc":
				cur, _ := lookup(out, path)
				if cur == nil {
					cur = int32(0)
				}
				if !isNumber(cur) || !isNumber(v) {
					return nil, fmt.Errorf("cannot $inc non-numeric field %s", path)
				}
				setPath(out, path, addNumbers(cur, v))
			default:
				return nil, fmt.Errorf("unsupported update operator %s", op)
			}
		}
	}
	return out, nil
}

func hasOperators(update bson.M) bool {
	for k := range update {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func addNumbers(a, b interface{}) interface{} {
	x, xInt := toInt64Exact(a)
	y, yInt := toInt64Exact(b)
	if xInt && yInt {
		return x + y
	}
	return toFloat(a) + toFloat(b)
}

func toInt64Exact(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func setPath(doc bson.M, path string, v interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := toM(cur[part])
		if !ok {
			next = bson.M{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := toM(cur[part])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// project applies an inclusion or exclusion projection. _id is kept unless
// excluded explicitly.
func project(doc bson.M, projection bson.M) bson.M {
	if len(projection) == 0 {
		return clone(doc)
	}

	include := false
	for k, v := range projection {
		if k != "_id" && truthy(v) {
			include = true
			break
		}
	}

	out := bson.M{}
	if include {
		for k, v := range projection {
			if truthy(v) {
				if val, ok := lookup(doc, k); ok {
					setPath(out, k, cloneValue(val))
				}
			}
		}
		if v, ok := projection["_id"]; !ok || truthy(v) {
			if id, ok := doc["_id"]; ok {
				out["_id"] = id
			}
		}
		return out
	}

	out = clone(doc)
	for k, v := range projection {
		if !truthy(v) {
			unsetPath(out, k)
		}
	}
	return out
}

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	}
	if isNumber(v) {
		return toFloat(v) != 0
	}
	return true
}

// sortDocs orders docs in place by spec. Values that cannot be compared keep
// their relative order.
func sortDocs(docs []bson.M, spec bson.D) {
	if len(spec) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return lessBySpec(docs[i], docs[j], spec)
	})
}

func lessBySpec(a, b bson.M, spec bson.D) bool {
	for _, e := range spec {
		x, _ := lookup(a, e.Key)
		y, _ := lookup(b, e.Key)
		c := compareForSort(x, y)
		if c == 0 {
			continue
		}
		if toFloat(e.Value) < 0 {
			return c > 0
		}
		return c < 0
	}
	return false
}

// compareForSort orders values of different types by type first, with
// missing values lowest, so that sorts are total.
func compareForSort(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if c, ok := compare(a, b); ok {
		return c
	}
	return 0
}

func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 2
	case bson.M, map[string]interface{}, bson.D:
		return 3
	case bson.A, []interface{}:
		return 4
	case primitive.ObjectID:
		return 5
	case bool:
		return 6
	case time.Time, primitive.DateTime:
		return 7
	}
	if isNumber(v) {
		return 1
	}
	return 8
}

func clone(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	if m, ok := toM(v); ok {
		return clone(m)
	}
	switch l := v.(type) {
	case []interface{}, bson.A:
		list, _ := toList(l)
		out := make(bson.A, len(list))
		for i, e := range list {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
