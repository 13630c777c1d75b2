// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		kind Kind
	}{
		{"find", Find},
		{"findAndUpdate", FindAndUpdate},
		{"findAndRemove", FindAndRemove},
		{"insert", Insert},
		{"update", Update},
		{"remove", Remove},
		{"group", Group},
		{"mapReduce", MapReduce},
		{"distinct", Distinct},
		{"geoNear", GeoNear},
		{"count", Count},
		{"Kind(42)", Kind(42)},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.name, tc.kind.String())
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}

	_, err := ParseKind("aggregate")
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Contains(t, err.Error(), "aggregate")
}

func TestKinds(t *testing.T) {
	t.Parallel()

	kinds := Kinds()
	require.Len(t, kinds, 11)
	seen := map[Kind]bool{}
	for _, k := range kinds {
		require.True(t, k.IsValid(), "%s should be valid", k)
		require.False(t, seen[k], "%s listed twice", k)
		seen[k] = true
	}
	require.False(t, Kind(0).IsValid())
	require.False(t, Kind(12).IsValid())
}

func TestKind_Streams(t *testing.T) {
	t.Parallel()

	streaming := map[Kind]bool{Find: true, Group: true, MapReduce: true, Distinct: true, GeoNear: true}
	for _, k := range Kinds() {
		assert.Equal(t, streaming[k], k.Streams(), "kind %s", k)
	}
}

func TestKind_DatabaseLevel(t *testing.T) {
	t.Parallel()

	dbLevel := map[Kind]bool{Group: true, MapReduce: true, Distinct: true, GeoNear: true, Count: true}
	for _, k := range Kinds() {
		assert.Equal(t, dbLevel[k], k.DatabaseLevel(), "kind %s", k)
	}
}
