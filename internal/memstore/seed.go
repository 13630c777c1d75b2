// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package memstore

import (
	"io"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// LoadExtJSON reads an extended JSON document mapping collection names to
// arrays of documents and inserts them into db. It returns the number of
// documents inserted.
func LoadExtJSON(db *Database, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, errors.Wrap(err, "reading seed")
	}

	var seed bson.M
	if err := bson.UnmarshalExtJSON(data, false, &seed); err != nil {
		return 0, errors.Wrap(err, "parsing seed")
	}

	n := 0
	for name, v := range seed {
		list, ok := toList(v)
		if !ok {
			return n, errors.Errorf("seed collection %q must be an array", name)
		}
		docs := make([]bson.M, 0, len(list))
		for i, e := range list {
			doc, ok := toM(e)
			if !ok {
				return n, errors.Errorf("seed collection %q: element %d is not a document", name, i)
			}
			docs = append(docs, doc)
		}
		db.Collection(name).InsertMany(docs...)
		n += len(docs)
	}
	return n, nil
}
