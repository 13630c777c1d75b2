// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package config loads query descriptor files and the environment of the
// mongoquery command.
//
// A descriptor file is TOML:
//
//	collection = "orders"
//	kind = "find"
//	limit = 5
//	sort = [{ key = "created", order = -1 }]
//
//	[filter]
//	status = "active"
//
//	[readPreference]
//	mode = "nearest"
//	tagSets = [{ dc = "east" }]
//
// Sort is an array because TOML tables do not keep key order.
package config

import (
	"io"
	"os"
	"sort"

	"github.com/ikmak/mongoquery/query"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/tag"
)

// QueryFile is a parsed descriptor file.
type QueryFile struct {
	Path       string
	Collection string
	Descriptor query.Descriptor
	// Options are passed to the dispatcher as caller options.
	Options query.Options
}

// LoadQueryFile reads and parses the descriptor file at path.
func LoadQueryFile(path string) (*QueryFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	qf, err := ParseQuery(f)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	qf.Path = path
	return qf, nil
}

// ParseQuery parses a descriptor file. The descriptor is validated.
func ParseQuery(r io.Reader) (*QueryFile, error) {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return nil, errors.Wrap(query.ErrInvalidArgument, err.Error())
	}
	p := parser{m: tree.ToMap()}

	qf := &QueryFile{Collection: p.str("collection")}
	if qf.Collection == "" {
		return nil, errors.Wrap(query.ErrInvalidArgument, "collection is required")
	}

	desc := &qf.Descriptor
	if desc.Kind, err = query.ParseKind(p.str("kind")); err != nil {
		return nil, err
	}
	desc.Filter = p.doc("filter")
	desc.Select = p.doc("select")
	desc.NewObj = p.doc("newObj")
	desc.Distinct = p.str("distinct")
	desc.Hint = p.value("hint")
	desc.Immortal = p.boolPtr("immortal")
	desc.Limit = p.intPtr("limit")
	desc.Skip = p.intPtr("skip")
	desc.SlaveOkay = p.boolPtr("slaveOkay")
	desc.Sort = p.sort("sort")
	if snapshot := p.boolPtr("snapshot"); snapshot != nil {
		desc.Snapshot = *snapshot
	}
	desc.New = p.boolPtr("new")
	desc.Upsert = p.boolPtr("upsert")
	desc.Multiple = p.boolPtr("multiple")
	desc.ReadPreference = p.readPreference("readPreference")

	if sub, ok := p.table("group"); ok {
		desc.Group = &query.GroupSpec{
			Keys:    sub.value("keys"),
			Initial: sub.doc("initial"),
			Reduce:  sub.str("reduce"),
			Options: sub.options("options"),
		}
		p.errs = append(p.errs, sub.errs...)
	}
	if sub, ok := p.table("mapReduce"); ok {
		desc.MapReduce = &query.MapReduceSpec{
			Map:     sub.str("map"),
			Reduce:  sub.str("reduce"),
			Out:     sub.value("out"),
			Options: sub.options("options"),
		}
		p.errs = append(p.errs, sub.errs...)
	}
	if sub, ok := p.table("geoNear"); ok {
		desc.GeoNear = &query.GeoNearSpec{
			Near:    sub.value("near"),
			Options: sub.options("options"),
		}
		p.errs = append(p.errs, sub.errs...)
	}
	qf.Options = p.options("options")

	if len(p.errs) > 0 {
		return nil, p.errs[0]
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return qf, nil
}

// parser reads typed values out of a TOML table, collecting the first type
// mismatches in errs.
type parser struct {
	m    map[string]interface{}
	errs []error
}

func (p *parser) fail(key, want string, got interface{}) {
	p.errs = append(p.errs, errors.Wrapf(query.ErrInvalidArgument, "%s must be %s, got %T", key, want, got))
}

func (p *parser) value(key string) interface{} {
	return convert(p.m[key])
}

func (p *parser) str(key string) string {
	v, ok := p.m[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		p.fail(key, "a string", v)
	}
	return s
}

func (p *parser) boolPtr(key string) *bool {
	v, ok := p.m[key]
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		p.fail(key, "a boolean", v)
		return nil
	}
	return &b
}

func (p *parser) intPtr(key string) *int64 {
	v, ok := p.m[key]
	if !ok {
		return nil
	}
	n, ok := v.(int64)
	if !ok {
		p.fail(key, "an integer", v)
		return nil
	}
	return &n
}

func (p *parser) table(key string) (*parser, bool) {
	v, ok := p.m[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		p.fail(key, "a table", v)
		return nil, false
	}
	return &parser{m: m}, true
}

func (p *parser) doc(key string) bson.M {
	v, ok := p.m[key]
	if !ok {
		return nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		p.fail(key, "a table", v)
		return nil
	}
	return convert(m).(bson.M)
}

func (p *parser) options(key string) query.Options {
	doc := p.doc(key)
	if doc == nil {
		return nil
	}
	return query.Options(doc)
}

// sort reads an array of {key, order} tables.
func (p *parser) sort(key string) bson.D {
	v, ok := p.m[key]
	if !ok {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		p.fail(key, "an array of tables", v)
		return nil
	}
	spec := make(bson.D, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			p.fail(key, "an array of tables", item)
			return nil
		}
		field := &parser{m: m}
		name := field.str("key")
		order := field.intPtr("order")
		p.errs = append(p.errs, field.errs...)
		if name == "" || order == nil {
			p.errs = append(p.errs, errors.Wrapf(query.ErrInvalidArgument, "%s entries need a key and an order", key))
			return nil
		}
		spec = append(spec, bson.E{Key: name, Value: int32(*order)})
	}
	return spec
}

func (p *parser) readPreference(key string) *query.ReadPreference {
	sub, ok := p.table(key)
	if !ok {
		return nil
	}
	var sets []tag.Set
	if v, ok := sub.m["tagSets"]; ok {
		list, ok := v.([]interface{})
		if !ok {
			p.fail(key+".tagSets", "an array of tables", v)
			return nil
		}
		for _, item := range list {
			m, ok := item.(map[string]interface{})
			if !ok {
				p.fail(key+".tagSets", "an array of tables", item)
				return nil
			}
			sets = append(sets, tagSet(m))
		}
	}
	rp, err := query.NewReadPreference(sub.str("mode"), sets...)
	p.errs = append(p.errs, sub.errs...)
	if err != nil {
		p.errs = append(p.errs, err)
		return nil
	}
	return &rp
}

// tagSet builds a tag set from a table, in key order so the result is
// deterministic.
func tagSet(m map[string]interface{}) tag.Set {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	set := make(tag.Set, 0, len(names))
	for _, name := range names {
		value, _ := m[name].(string)
		set = append(set, tag.Tag{Name: name, Value: value})
	}
	return set
}

// convert turns TOML tables and arrays into bson.M and bson.A.
func convert(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		doc := make(bson.M, len(v))
		for k, e := range v {
			doc[k] = convert(e)
		}
		return doc
	case []interface{}:
		list := make(bson.A, len(v))
		for i, e := range v {
			list[i] = convert(e)
		}
		return list
	}
	return v
}
