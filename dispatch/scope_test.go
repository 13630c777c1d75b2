// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/ikmak/mongoquery/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/tag"
)

var (
	primary   = query.ReadPreference{Mode: readpref.PrimaryMode}
	secondary = query.ReadPreference{
		Mode:    readpref.SecondaryMode,
		TagSets: []tag.Set{{{Name: "dc", Value: "east"}}},
	}
)

func scopedCount(t *testing.T, coll *fakeCollection, dopts ...*DispatcherOptions) *Dispatcher {
	t.Helper()

	rp := secondary
	d, err := New(coll, query.Descriptor{Kind: query.Count, Filter: bson.M{}, ReadPreference: &rp}, nil, dopts...)
	require.NoError(t, err)
	return d
}

func TestWithScopedReadPreference(t *testing.T) {
	t.Parallel()

	t.Run("no read preference", func(t *testing.T) {
		t.Parallel()

		for _, k := range []query.Kind{query.Group, query.MapReduce, query.Distinct, query.GeoNear, query.Count} {
			coll := newFakeCollection()
			coll.mrOut = MapReduceOutput{Response: bson.M{}}
			d, err := New(coll, fullDescriptor(k), nil)
			require.NoError(t, err)

			_, err = d.Execute(context.Background())
			require.NoError(t, err)
			assert.Zero(t, coll.db.reads, "kind %s", k)
			assert.Zero(t, coll.db.writes, "kind %s", k)
		}
	})
	t.Run("installed during the call and restored after", func(t *testing.T) {
		t.Parallel()

		for _, k := range []query.Kind{query.Group, query.MapReduce, query.Distinct, query.GeoNear, query.Count} {
			coll := newFakeCollection()
			coll.db.rp = primary
			coll.mrOut = MapReduceOutput{Response: bson.M{}}
			desc := fullDescriptor(k)
			rp := secondary
			desc.ReadPreference = &rp
			d, err := New(coll, desc, nil)
			require.NoError(t, err)

			_, err = d.Execute(context.Background())
			require.NoError(t, err)
			require.Len(t, coll.calls, 1)
			assert.True(t, secondary.Equal(coll.calls[0].readPref), "kind %s ran under %s", k, coll.calls[0].readPref)
			assert.True(t, primary.Equal(coll.db.rp), "kind %s left %s", k, coll.db.rp)
			assert.Equal(t, 1, coll.db.reads)
			assert.Equal(t, 2, coll.db.writes)
		}
	})
	t.Run("collection-level kinds are not scoped", func(t *testing.T) {
		t.Parallel()

		for _, k := range []query.Kind{query.FindAndUpdate, query.FindAndRemove, query.Insert, query.Update, query.Remove} {
			coll := newFakeCollection()
			desc := fullDescriptor(k)
			rp := secondary
			desc.ReadPreference = &rp
			d, err := New(coll, desc, nil)
			require.NoError(t, err)

			_, err = d.Execute(context.Background())
			require.NoError(t, err)
			assert.Zero(t, coll.db.reads, "kind %s", k)
			assert.Zero(t, coll.db.writes, "kind %s", k)
		}
	})
	t.Run("restored after error", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("not master and slaveOk=false")
		coll := newFakeCollection()
		coll.db.rp = primary
		coll.err = wantErr

		_, err := scopedCount(t, coll).Execute(context.Background())
		assert.Equal(t, wantErr, err)
		assert.True(t, primary.Equal(coll.db.rp))
	})
	t.Run("restored before panic is re-raised", func(t *testing.T) {
		t.Parallel()

		type fault struct{ msg string }
		wantPanic := &fault{msg: "driver fault"}
		coll := newFakeCollection()
		coll.db.rp = primary
		coll.panicWith = wantPanic
		d := scopedCount(t, coll)

		var recovered interface{}
		var rpAtRecover query.ReadPreference
		func() {
			defer func() {
				recovered = recover()
				rpAtRecover = coll.db.rp
			}()
			_, _ = d.Execute(context.Background())
		}()

		assert.Same(t, wantPanic, recovered)
		assert.True(t, primary.Equal(rpAtRecover))
	})
	t.Run("empty tag sets are restored as nil", func(t *testing.T) {
		t.Parallel()

		coll := newFakeCollection()
		coll.db.rp = query.ReadPreference{Mode: readpref.NearestMode, TagSets: []tag.Set{}}

		_, err := scopedCount(t, coll).Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, readpref.NearestMode, coll.db.rp.Mode)
		assert.Nil(t, coll.db.rp.TagSets)
	})
	t.Run("install failure", func(t *testing.T) {
		t.Parallel()

		coll := newFakeCollection()
		coll.db.rp = primary
		coll.db.setErr = func(query.ReadPreference) error { return assert.AnError }

		_, err := scopedCount(t, coll).Execute(context.Background())
		require.ErrorIs(t, err, assert.AnError)
		assert.Empty(t, coll.calls)
		assert.Equal(t, 1, coll.db.writes)
	})
}

func TestWithScopedReadPreference_RestoreFailure(t *testing.T) {
	t.Parallel()

	restoreErr := errors.New("handle closed")
	failRestore := func(db *fakeDatabase) {
		db.setErr = func(rp query.ReadPreference) error {
			if rp.Mode == readpref.PrimaryMode {
				return restoreErr
			}
			return nil
		}
	}

	t.Run("after success", func(t *testing.T) {
		t.Parallel()

		coll := newFakeCollection()
		coll.db.rp = primary
		coll.count = 5
		failRestore(coll.db)

		var mu sync.Mutex
		var logged []string
		logger := funcr.New(func(prefix, args string) {
			mu.Lock()
			defer mu.Unlock()
			logged = append(logged, args)
		}, funcr.Options{})

		res, err := scopedCount(t, coll, Options().SetLogger(logger)).Execute(context.Background())
		require.ErrorIs(t, err, restoreErr)
		assert.Equal(t, ResultKind(0), res.Kind())

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, logged, 1)
		assert.True(t, strings.Contains(logged[0], "handle closed"), logged[0])
	})
	t.Run("after error", func(t *testing.T) {
		t.Parallel()

		callErr := errors.New("socket timeout")
		coll := newFakeCollection()
		coll.db.rp = primary
		coll.err = callErr
		failRestore(coll.db)

		_, err := scopedCount(t, coll).Execute(context.Background())
		require.ErrorIs(t, err, callErr)

		var restore *RestoreError
		require.True(t, errors.As(err, &restore))
		assert.Equal(t, restoreErr, restore.RestoreErr)
		assert.True(t, primary.Equal(restore.ReadPreference))
		assert.Contains(t, err.Error(), "socket timeout")
		assert.Contains(t, err.Error(), "handle closed")
	})
	t.Run("after panic", func(t *testing.T) {
		t.Parallel()

		coll := newFakeCollection()
		coll.db.rp = primary
		coll.panicWith = "driver fault"
		failRestore(coll.db)

		assert.PanicsWithValue(t, "driver fault", func() {
			_, _ = scopedCount(t, coll).Execute(context.Background())
		})
	})
}
