// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDescriptor_Validate(t *testing.T) {
	t.Parallel()

	t.Run("valid kinds", func(t *testing.T) {
		t.Parallel()

		for _, k := range Kinds() {
			d := &Descriptor{Kind: k}
			require.NoError(t, d.Validate(), "kind %s", k)
		}
	})
	t.Run("invalid kinds", func(t *testing.T) {
		t.Parallel()

		for _, k := range []Kind{0, 12, 255} {
			d := &Descriptor{Kind: k}
			err := d.Validate()
			require.ErrorIs(t, err, ErrInvalidArgument, "kind %d", k)
		}
	})
	t.Run("kind fields are not checked", func(t *testing.T) {
		t.Parallel()

		d := &Descriptor{Kind: Group}
		require.NoError(t, d.Validate())
	})
}

func TestDescriptor_QueryOptions(t *testing.T) {
	t.Parallel()

	limit, skip := int64(5), int64(10)
	yes, no := true, false

	testCases := []struct {
		name string
		d    Descriptor
		want Options
	}{
		{"empty", Descriptor{Kind: Find}, Options{}},
		{
			"cursor fields",
			Descriptor{
				Kind:      Find,
				Limit:     &limit,
				Skip:      &skip,
				Sort:      bson.D{{Key: "created", Value: -1}},
				Hint:      "created_1",
				Immortal:  &no,
				SlaveOkay: &yes,
				Snapshot:  true,
			},
			Options{
				"limit":     int64(5),
				"skip":      int64(10),
				"sort":      bson.D{{Key: "created", Value: -1}},
				"hint":      "created_1",
				"immortal":  false,
				"slaveOkay": true,
				"snapshot":  true,
			},
		},
		{
			"modify fields",
			Descriptor{
				Kind:     FindAndUpdate,
				Select:   bson.M{"name": 1},
				New:      &yes,
				Upsert:   &no,
				Multiple: &yes,
			},
			Options{
				"select":   bson.M{"name": 1},
				"new":      true,
				"upsert":   false,
				"multiple": true,
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := tc.d.QueryOptions()
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("query options mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
