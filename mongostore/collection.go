// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongostore

import (
	"context"
	"strings"

	"github.com/ikmak/mongoquery/dispatch"
	"github.com/ikmak/mongoquery/query"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is a collection handle of a Database.
type Collection struct {
	db   *Database
	name string
}

var _ dispatch.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Database returns the handle whose read preference database-level commands
// run under.
func (c *Collection) Database() dispatch.Database { return c.db }

// Find returns a stream that runs the find on its first Next.
func (c *Collection) Find(_ context.Context, filter, projection bson.M) (dispatch.RawStream, error) {
	return newStream(c, filter, projection), nil
}

// FindAndUpdate applies update to the first document matching filter.
// Options: new, fields, sort, upsert. An update without operators replaces
// the document.
func (c *Collection) FindAndUpdate(ctx context.Context, filter, update bson.M, opts query.Options) (doc bson.M, err error) {
	ctx, span := startSpan(ctx, "FindAndUpdate")
	defer func() { endSpan(span, err) }()

	coll, err := c.db.collection(c.name, nil)
	if err != nil {
		return nil, err
	}

	var res *mongo.SingleResult
	if isReplacement(update) {
		res = coll.FindOneAndReplace(ctx, filterOrEmpty(filter), update, findAndReplaceOptions(opts))
	} else {
		res = coll.FindOneAndUpdate(ctx, filterOrEmpty(filter), update, findAndUpdateOptions(opts))
	}
	return decodeSingle(res, "findAndModify")
}

// FindAndRemove deletes the first document matching filter and returns it.
// Options: fields, sort.
func (c *Collection) FindAndRemove(ctx context.Context, filter bson.M, opts query.Options) (doc bson.M, err error) {
	ctx, span := startSpan(ctx, "FindAndRemove")
	defer func() { endSpan(span, err) }()

	coll, err := c.db.collection(c.name, nil)
	if err != nil {
		return nil, err
	}
	fo := options.FindOneAndDelete()
	if fields, ok := opts["fields"]; ok {
		fo.SetProjection(fields)
	}
	if sort, ok := opts["sort"]; ok {
		fo.SetSort(sort)
	}
	return decodeSingle(coll.FindOneAndDelete(ctx, filterOrEmpty(filter), fo), "findAndModify")
}

// Insert inserts doc.
func (c *Collection) Insert(ctx context.Context, doc bson.M, _ query.Options) (status dispatch.Status, err error) {
	ctx, span := startSpan(ctx, "Insert")
	defer func() { endSpan(span, err) }()

	coll, err := c.db.collection(c.name, nil)
	if err != nil {
		return dispatch.Status{}, err
	}
	res, err := coll.InsertOne(ctx, doc)
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return dispatch.Status{}, nil
	}
	if err != nil {
		return dispatch.Status{}, errors.Wrapf(err, "insert into %s", c.name)
	}
	return dispatch.Status{Acknowledged: true, N: 1, InsertedID: res.InsertedID}, nil
}

// Update updates the first document matching filter, or every match with the
// multiple option. The upsert option is honoured. An update without operators
// replaces the document.
func (c *Collection) Update(ctx context.Context, filter, update bson.M, opts query.Options) (status dispatch.Status, err error) {
	ctx, span := startSpan(ctx, "Update")
	defer func() { endSpan(span, err) }()

	coll, err := c.db.collection(c.name, nil)
	if err != nil {
		return dispatch.Status{}, err
	}
	upsert, _ := opts["upsert"].(bool)
	multiple, _ := opts["multiple"].(bool)
	filter = filterOrEmpty(filter)

	var res *mongo.UpdateResult
	switch {
	case isReplacement(update):
		if multiple {
			return dispatch.Status{}, errors.Wrap(query.ErrInvalidArgument, "a replacement document cannot update multiple documents")
		}
		res, err = coll.ReplaceOne(ctx, filter, update, options.Replace().SetUpsert(upsert))
	case multiple:
		res, err = coll.UpdateMany(ctx, filter, update, options.Update().SetUpsert(upsert))
	default:
		res, err = coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(upsert))
	}
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return dispatch.Status{}, nil
	}
	if err != nil {
		return dispatch.Status{}, errors.Wrapf(err, "update %s", c.name)
	}
	return updateStatus(res), nil
}

// Remove deletes the documents matching filter, only the first with the
// justOne option.
func (c *Collection) Remove(ctx context.Context, filter bson.M, opts query.Options) (status dispatch.Status, err error) {
	ctx, span := startSpan(ctx, "Remove")
	defer func() { endSpan(span, err) }()

	coll, err := c.db.collection(c.name, nil)
	if err != nil {
		return dispatch.Status{}, err
	}
	var res *mongo.DeleteResult
	if justOne, _ := opts["justOne"].(bool); justOne {
		res, err = coll.DeleteOne(ctx, filterOrEmpty(filter))
	} else {
		res, err = coll.DeleteMany(ctx, filterOrEmpty(filter))
	}
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return dispatch.Status{}, nil
	}
	if err != nil {
		return dispatch.Status{}, errors.Wrapf(err, "remove from %s", c.name)
	}
	return dispatch.Status{Acknowledged: true, N: res.DeletedCount}, nil
}

func findAndUpdateOptions(opts query.Options) *options.FindOneAndUpdateOptions {
	fo := options.FindOneAndUpdate()
	if returnNew, _ := opts["new"].(bool); returnNew {
		fo.SetReturnDocument(options.After)
	}
	if fields, ok := opts["fields"]; ok {
		fo.SetProjection(fields)
	}
	if sort, ok := opts["sort"]; ok {
		fo.SetSort(sort)
	}
	if upsert, ok := opts["upsert"].(bool); ok {
		fo.SetUpsert(upsert)
	}
	return fo
}

func findAndReplaceOptions(opts query.Options) *options.FindOneAndReplaceOptions {
	fo := options.FindOneAndReplace()
	if returnNew, _ := opts["new"].(bool); returnNew {
		fo.SetReturnDocument(options.After)
	}
	if fields, ok := opts["fields"]; ok {
		fo.SetProjection(fields)
	}
	if sort, ok := opts["sort"]; ok {
		fo.SetSort(sort)
	}
	if upsert, ok := opts["upsert"].(bool); ok {
		fo.SetUpsert(upsert)
	}
	return fo
}

// decodeSingle decodes a find-and-modify reply. No match is a nil document.
func decodeSingle(res *mongo.SingleResult, name string) (bson.M, error) {
	var doc bson.M
	err := res.Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return doc, nil
}

func updateStatus(res *mongo.UpdateResult) dispatch.Status {
	return dispatch.Status{
		Acknowledged: true,
		N:            res.MatchedCount + res.UpsertedCount,
		Modified:     res.ModifiedCount,
		UpsertedID:   res.UpsertedID,
	}
}

// isReplacement reports whether update is a whole document rather than a
// set of update operators.
func isReplacement(update bson.M) bool {
	for k := range update {
		if strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}
