// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongostore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/ikmak/mongoquery/dispatch"
	"github.com/ikmak/mongoquery/internal/ptrutil"
	"github.com/ikmak/mongoquery/mongostore"
	"github.com/ikmak/mongoquery/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// integrationDatabase connects to MONGODB_URI and returns a freshly seeded
// database, skipping the test when no server is configured.
func integrationDatabase(t *testing.T) (*mongostore.Database, *mongo.Database) {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, readpref.Primary()))

	name := fmt.Sprintf("mongoquery_it_%d", time.Now().UnixNano())
	raw := client.Database(name)
	t.Cleanup(func() {
		_ = raw.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	orders := raw.Collection("orders")
	docs := make([]interface{}, 0, 12)
	for i := 0; i < 12; i++ {
		status := "active"
		if i%3 == 0 {
			status = "closed"
		}
		docs = append(docs, bson.M{"_id": int32(i), "status": status, "n": int32(i), "loc": bson.A{float64(i), 0.0}})
	}
	_, err = orders.InsertMany(ctx, docs)
	require.NoError(t, err)
	_, err = orders.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "loc", Value: "2d"}}})
	require.NoError(t, err)

	return mongostore.NewDatabase(raw, logr.Discard()), raw
}

func execute(t *testing.T, coll dispatch.Collection, desc query.Descriptor) dispatch.Result {
	t.Helper()

	d, err := dispatch.New(coll, desc, nil)
	require.NoError(t, err)
	res, err := d.Execute(context.Background())
	require.NoError(t, err)
	return res
}

func TestIntegration_Find(t *testing.T) {
	db, _ := integrationDatabase(t)
	coll := db.Collection("orders")

	d, err := dispatch.New(coll, query.Descriptor{
		Kind:   query.Find,
		Filter: bson.M{"status": "active"},
		Select: bson.M{"n": 1},
		Sort:   bson.D{{Key: "n", Value: -1}},
		Skip:   ptrutil.Ptr(int64(1)),
		Limit:  ptrutil.Ptr(int64(3)),
	}, nil)
	require.NoError(t, err)

	var got []bson.M
	require.NoError(t, d.ToArray(context.Background(), &got))
	assert.Equal(t, []bson.M{
		{"_id": int32(10), "n": int32(10)},
		{"_id": int32(8), "n": int32(8)},
		{"_id": int32(7), "n": int32(7)},
	}, got)
}

func TestIntegration_Writes(t *testing.T) {
	db, _ := integrationDatabase(t)
	coll := db.Collection("orders")

	res := execute(t, coll, query.Descriptor{
		Kind:     query.Update,
		Filter:   bson.M{"status": "closed"},
		NewObj:   bson.M{"$set": bson.M{"archived": true}},
		Multiple: ptrutil.Ptr(true),
	})
	status, _ := res.Status()
	assert.Equal(t, int64(4), status.N)
	assert.Equal(t, int64(4), status.Modified)

	res = execute(t, coll, query.Descriptor{
		Kind:   query.FindAndUpdate,
		Filter: bson.M{"status": "active"},
		NewObj: bson.M{"$inc": bson.M{"n": 100}},
		Sort:   bson.D{{Key: "n", Value: 1}},
		Select: bson.M{"n": 1},
		New:    ptrutil.Ptr(true),
	})
	doc, _ := res.Document()
	assert.Equal(t, bson.M{"_id": int32(1), "n": int32(101)}, doc)

	res = execute(t, coll, query.Descriptor{Kind: query.FindAndRemove, Filter: bson.M{"_id": int32(404)}})
	doc, ok := res.Document()
	assert.True(t, ok)
	assert.Nil(t, doc)

	res = execute(t, coll, query.Descriptor{Kind: query.Insert, NewObj: bson.M{"_id": int32(50), "status": "new"}})
	status, _ = res.Status()
	assert.Equal(t, int32(50), status.InsertedID)

	res = execute(t, coll, query.Descriptor{Kind: query.Remove, Filter: bson.M{"status": "closed"}})
	status, _ = res.Status()
	assert.Equal(t, int64(4), status.N)

	res = execute(t, coll, query.Descriptor{Kind: query.Count, Filter: bson.M{}})
	n, _ := res.Count()
	assert.Equal(t, int64(9), n)
}

func TestIntegration_DatabaseLevel(t *testing.T) {
	db, _ := integrationDatabase(t)
	coll := db.Collection("orders")
	rp := query.ReadPreference{Mode: readpref.PrimaryPreferredMode}

	res := execute(t, coll, query.Descriptor{Kind: query.Distinct, Distinct: "status", ReadPreference: &rp})
	values, _ := res.Values()
	assert.ElementsMatch(t, []interface{}{"active", "closed"}, values)
	assert.Equal(t, readpref.PrimaryMode, db.ReadPreference().Mode)

	d, err := dispatch.New(coll, query.Descriptor{
		Kind:    query.GeoNear,
		Filter:  bson.M{"status": "active"},
		Limit:   ptrutil.Ptr(int64(2)),
		GeoNear: &query.GeoNearSpec{Near: bson.A{0.0, 0.0}},
	}, nil)
	require.NoError(t, err)

	var hits []struct {
		Dis float64 `bson:"dis"`
		Obj bson.M  `bson:"obj"`
	}
	require.NoError(t, d.ToArray(context.Background(), &hits))
	require.Len(t, hits, 2)
	assert.Equal(t, 1.0, hits[0].Dis)
	assert.Equal(t, int32(1), hits[0].Obj["_id"])
	assert.NotContains(t, hits[0].Obj, "__mongoquery_dis")
}
