// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSelect(t *testing.T) {
	t.Parallel()

	var nilDoc bson.M
	var nilPtr *int64

	opts := Options{
		"new":    true,
		"select": bson.M{"a": 1},
		"sort":   nil,
		"upsert": false,
		"limit":  nilPtr,
		"fields": nilDoc,
		"w":      "majority",
	}

	got := Select(opts, "new", "select", "sort", "upsert", "limit", "fields", "missing")
	want := Options{"new": true, "select": bson.M{"a": 1}, "upsert": false}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}

	require.Empty(t, Select(nil, "new"))
	require.Empty(t, Select(opts))
}

func TestOptions_Clone(t *testing.T) {
	t.Parallel()

	orig := Options{"w": 1}
	c := orig.Clone()
	c["w"] = 2
	c["j"] = true

	assert.Equal(t, Options{"w": 1}, orig)
	assert.NotNil(t, Options(nil).Clone())
}

func TestOptions_Merge(t *testing.T) {
	t.Parallel()

	base := Options{"w": 1, "upsert": false}
	merged := base.Merge(Options{"upsert": true}, Options{"multiple": true})

	assert.Equal(t, Options{"w": 1, "upsert": true, "multiple": true}, merged)
	assert.Equal(t, Options{"w": 1, "upsert": false}, base)
}

func TestOptions_Rename(t *testing.T) {
	t.Parallel()

	got := Options{"select": bson.M{"a": 1}, "sort": bson.D{{Key: "a", Value: 1}}}.Rename(map[string]string{"select": "fields"})
	assert.Equal(t, Options{"fields": bson.M{"a": 1}, "sort": bson.D{{Key: "a", Value: 1}}}, got)
}
