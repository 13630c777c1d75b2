// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package query

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/tag"
)

// ReadPreference is a mode and an ordered list of tag sets. It is the state a
// database handle carries and the override a descriptor may request.
type ReadPreference struct {
	Mode    readpref.Mode
	TagSets []tag.Set
}

// NewReadPreference parses mode (e.g. "secondaryPreferred") and pairs it with
// tagSets.
func NewReadPreference(mode string, tagSets ...tag.Set) (ReadPreference, error) {
	m, err := readpref.ModeFromString(mode)
	if err != nil {
		return ReadPreference{}, errors.Wrap(ErrInvalidArgument, err.Error())
	}
	return ReadPreference{Mode: m, TagSets: tagSets}, nil
}

// Normalized returns a copy of rp whose empty tag set list is nil.
func (rp ReadPreference) Normalized() ReadPreference {
	if len(rp.TagSets) == 0 {
		return ReadPreference{Mode: rp.Mode}
	}
	sets := make([]tag.Set, len(rp.TagSets))
	copy(sets, rp.TagSets)
	return ReadPreference{Mode: rp.Mode, TagSets: sets}
}

// Equal reports whether rp and other select the same servers.
func (rp ReadPreference) Equal(other ReadPreference) bool {
	if rp.Mode != other.Mode || len(rp.TagSets) != len(other.TagSets) {
		return false
	}
	for i, set := range rp.TagSets {
		if len(set) != len(other.TagSets[i]) {
			return false
		}
		for j, t := range set {
			if t != other.TagSets[i][j] {
				return false
			}
		}
	}
	return true
}

// ReadPref converts rp to the driver's representation. Tag sets are rejected
// by the driver for primary mode.
func (rp ReadPreference) ReadPref() (*readpref.ReadPref, error) {
	if len(rp.TagSets) == 0 {
		return readpref.New(rp.Mode)
	}
	return readpref.New(rp.Mode, readpref.WithTagSets(rp.TagSets...))
}

// FromReadPref converts a driver read preference. A nil value is primary.
func FromReadPref(rp *readpref.ReadPref) ReadPreference {
	if rp == nil {
		return ReadPreference{Mode: readpref.PrimaryMode}
	}
	return ReadPreference{Mode: rp.Mode(), TagSets: rp.TagSets()}.Normalized()
}

func (rp ReadPreference) String() string {
	var b bytes.Buffer
	b.WriteString(rp.Mode.String())
	for i, set := range rp.TagSets {
		if i == 0 {
			b.WriteString("(")
		} else {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "tagSet=%s", set)
	}
	if len(rp.TagSets) > 0 {
		b.WriteString(")")
	}
	return b.String()
}
