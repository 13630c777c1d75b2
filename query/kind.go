// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package query

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the type of operation a Descriptor describes.
type Kind uint8

// These constants are all the valid kinds.
const (
	Find Kind = iota + 1
	FindAndUpdate
	FindAndRemove
	Insert
	Update
	Remove
	Group
	MapReduce
	Distinct
	GeoNear
	Count
)

var kindNames = map[Kind]string{
	Find:          "find",
	FindAndUpdate: "findAndUpdate",
	FindAndRemove: "findAndRemove",
	Insert:        "insert",
	Update:        "update",
	Remove:        "remove",
	Group:         "group",
	MapReduce:     "mapReduce",
	Distinct:      "distinct",
	GeoNear:       "geoNear",
	Count:         "count",
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	return []Kind{Find, FindAndUpdate, FindAndRemove, Insert, Update, Remove, Group, MapReduce, Distinct, GeoNear, Count}
}

// ParseKind returns the kind named by s. The names match the ones returned by
// Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidArgument, "unknown query kind %q", s)
}

// IsValid reports whether k is one of the recognized kinds.
func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// Streams reports whether executing a query of this kind yields something
// that can be iterated with a cursor.
func (k Kind) Streams() bool {
	switch k {
	case Find, Group, MapReduce, Distinct, GeoNear:
		return true
	}
	return false
}

// DatabaseLevel reports whether the kind is executed as a database command and
// therefore honours a scoped read preference.
func (k Kind) DatabaseLevel() bool {
	switch k {
	case Group, MapReduce, Distinct, GeoNear, Count:
		return true
	}
	return false
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}
