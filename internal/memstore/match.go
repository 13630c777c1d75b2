// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package memstore

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// match reports whether doc satisfies filter. Supported operators are $eq,
// $ne, $gt, $gte, $lt, $lte, $in, $nin, $exists, $and and $or.
func match(doc bson.M, filter bson.M) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$and", "$or":
			clauses, ok := toList(cond)
			if !ok {
				return false, fmt.Errorf("%s requires an array", key)
			}
			ok, err := matchLogical(doc, key, clauses)
			if err != nil || !ok {
				return false, err
			}
			continue
		}

		val, found := lookup(doc, key)
		ok, err := matchCondition(val, found, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(doc bson.M, op string, clauses []interface{}) (bool, error) {
	for _, clause := range clauses {
		sub, ok := toM(clause)
		if !ok {
			return false, fmt.Errorf("%s clauses must be documents", op)
		}
		ok, err := match(doc, sub)
		if err != nil {
			return false, err
		}
		if op == "$or" && ok {
			return true, nil
		}
		if op == "$and" && !ok {
			return false, nil
		}
	}
	return op == "$and", nil
}

func matchCondition(val interface{}, found bool, cond interface{}) (bool, error) {
	ops, ok := toM(cond)
	if !ok || !isOperatorDoc(ops) {
		return found && equal(val, cond), nil
	}

	for op, arg := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = found && equal(val, arg)
		case "$ne":
			ok = !found || !equal(val, arg)
		case "$gt", "$gte", "$lt", "$lte":
			if !found {
				return false, nil
			}
			c, comparable := compare(val, arg)
			if !comparable {
				return false, nil
			}
			switch op {
			case "$gt":
				ok = c > 0
			case "$gte":
				ok = c >= 0
			case "$lt":
				ok = c < 0
			case "$lte":
				ok = c <= 0
			}
		case "$in", "$nin":
			list, isList := toList(arg)
			if !isList {
				return false, fmt.Errorf("%s requires an array", op)
			}
			in := false
			for _, candidate := range list {
				if found && equal(val, candidate) {
					in = true
					break
				}
			}
			ok = in == (op == "$in")
		case "$exists":
			want, isBool := arg.(bool)
			if !isBool {
				want = toFloat(arg) != 0
			}
			ok = found == want
		default:
			return false, fmt.Errorf("unsupported query operator %s", op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func isOperatorDoc(m bson.M) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// lookup resolves a dotted path in doc.
func lookup(doc bson.M, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := toM(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func equal(a, b interface{}) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	if am, ok := toM(a); ok {
		bm, ok := toM(b)
		if !ok || len(am) != len(bm) {
			return false
		}
		for k, v := range am {
			if w, ok := bm[k]; !ok || !equal(v, w) {
				return false
			}
		}
		return true
	}
	if al, ok := toList(a); ok {
		bl, ok := toList(b)
		if !ok || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !equal(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	return a == nil && b == nil
}

// compare orders two scalar values of the same family. It reports false when
// the values cannot be ordered against each other.
func compare(a, b interface{}) (int, bool) {
	if isNumber(a) && isNumber(b) {
		x, y := toFloat(a), toFloat(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	case time.Time:
		if y, ok := toTime(b); ok {
			return x.Compare(y), true
		}
	case primitive.DateTime:
		if y, ok := toTime(b); ok {
			return x.Time().Compare(y), true
		}
	case primitive.ObjectID:
		if y, ok := b.(primitive.ObjectID); ok {
			return bytes.Compare(x[:], y[:]), true
		}
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return math.NaN()
}

func toInt64(v interface{}) (int64, bool) {
	if !isNumber(v) {
		return 0, false
	}
	return int64(toFloat(v)), true
}

func toM(v interface{}) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]interface{}:
		return bson.M(m), true
	case bson.D:
		return m.Map(), true
	}
	return nil, false
}

func toList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case bson.A:
		return []interface{}(l), true
	case []float64:
		out := make([]interface{}, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []bson.M:
		out := make([]interface{}, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}
