// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package dispatch

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

type source interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// Cursor iterates the results of a stream-producing query. It is either a
// configured raw stream or, for commands that return their results inline, an
// in-memory list.
//
// A typical usage of the Cursor type would be:
//
//	cur, err := d.Cursor(ctx)
//	if err != nil {
//		return err
//	}
//	defer cur.Close(ctx)
//
//	for cur.Next(ctx) {
//		var doc bson.M
//		if err := cur.Decode(&doc); err != nil {
//			return err
//		}
//	}
//	return cur.Err()
type Cursor struct {
	src  source
	coll Collection
}

func newCursor(src source, coll Collection) *Cursor {
	return &Cursor{src: src, coll: coll}
}

func newSliceCursor(values []interface{}, coll Collection) *Cursor {
	return newCursor(&sliceSource{values: values}, coll)
}

// Collection returns the collection the query ran against.
func (c *Cursor) Collection() Collection { return c.coll }

// Next advances the cursor. It returns false when the results are exhausted or
// an error occurred; check Err to tell them apart.
func (c *Cursor) Next(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.src.Next(ctx)
}

// Decode decodes the current result into val.
func (c *Cursor) Decode(val interface{}) error { return c.src.Decode(val) }

// Err returns the last error seen while iterating.
func (c *Cursor) Err() error { return c.src.Err() }

// Close releases the underlying stream.
func (c *Cursor) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.src.Close(ctx)
}

// All iterates the cursor and decodes each result into the slice pointed to by
// results, then closes the cursor. Results already in the slice are
// overwritten.
func (c *Cursor) All(ctx context.Context, results interface{}) error {
	resultsVal := reflect.ValueOf(results)
	if resultsVal.Kind() != reflect.Ptr {
		return fmt.Errorf("results argument must be a pointer to a slice, but was a %s", resultsVal.Kind())
	}

	sliceVal := resultsVal.Elem()
	if sliceVal.Kind() == reflect.Interface {
		sliceVal = sliceVal.Elem()
	}
	if sliceVal.Kind() != reflect.Slice {
		return fmt.Errorf("results argument must be a pointer to a slice, but was a pointer to %s", sliceVal.Kind())
	}

	elementType := sliceVal.Type().Elem()
	sliceVal = sliceVal.Slice(0, 0)

	defer c.Close(ctx)

	for c.Next(ctx) {
		elem := reflect.New(elementType)
		if err := c.Decode(elem.Interface()); err != nil {
			return err
		}
		sliceVal = reflect.Append(sliceVal, elem.Elem())
	}

	resultsVal.Elem().Set(sliceVal)
	return c.Err()
}

type sliceSource struct {
	values []interface{}
	pos    int
	closed bool
}

func (s *sliceSource) Next(context.Context) bool {
	if s.closed || s.pos >= len(s.values) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceSource) Decode(val interface{}) error {
	if s.pos == 0 {
		return errors.New("Decode called before Next")
	}
	return decodeValue(s.values[s.pos-1], val)
}

func (s *sliceSource) Err() error { return nil }

func (s *sliceSource) Close(context.Context) error {
	s.closed = true
	return nil
}

// decodeValue stores v in the value val points to, assigning directly when the
// types allow and going through BSON otherwise.
func decodeValue(v interface{}, val interface{}) error {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, but was %T", val)
	}
	if v == nil {
		rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
		return nil
	}
	if reflect.TypeOf(v).AssignableTo(rv.Elem().Type()) {
		rv.Elem().Set(reflect.ValueOf(v))
		return nil
	}
	t, data, err := bson.MarshalValue(v)
	if err != nil {
		return errors.Wrap(err, "encoding result")
	}
	return bson.RawValue{Type: t, Value: data}.Unmarshal(val)
}

// toValues converts an array-shaped value from a command response into a
// slice. It reports false for anything that is not a list.
func toValues(v interface{}) ([]interface{}, bool) {
	switch vs := v.(type) {
	case []interface{}:
		return vs, true
	case bson.A:
		return []interface{}(vs), true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	values := make([]interface{}, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}
