// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package query

import "reflect"

// Options is a bag of named options handed to a collaborator call, such as
// write concern settings or find-and-modify flags.
type Options map[string]interface{}

// Clone returns a shallow copy of o. A nil bag clones to an empty one.
func (o Options) Clone() Options {
	c := make(Options, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// Merge returns a new bag holding the entries of o overlaid with the entries
// of each bag in others, later bags winning.
func (o Options) Merge(others ...Options) Options {
	merged := o.Clone()
	for _, other := range others {
		for k, v := range other {
			merged[k] = v
		}
	}
	return merged
}

// Rename returns a copy of o in which every key found in names is replaced by
// its mapped name.
func (o Options) Rename(names map[string]string) Options {
	renamed := make(Options, len(o))
	for k, v := range o {
		if to, ok := names[k]; ok {
			k = to
		}
		renamed[k] = v
	}
	return renamed
}

// Select returns the entries of o named by keys that are present and not nil.
// Typed nil pointers, maps and slices count as nil.
func Select(o Options, keys ...string) Options {
	selected := make(Options, len(keys))
	for _, key := range keys {
		v, ok := o[key]
		if !ok || isNil(v) {
			continue
		}
		selected[key] = v
	}
	return selected
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
