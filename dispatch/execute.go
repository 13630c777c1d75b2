// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package dispatch

import (
	"context"

	"github.com/ikmak/mongoquery/query"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// find-and-modify takes the projection as fields.
var fieldsRename = map[string]string{"select": "fields"}

// Execute runs the query and returns its result. Find, and MapReduce when
// its output is a collection, yield a configured cursor; the other kinds yield
// the collection's answer unchanged.
func (d *Dispatcher) Execute(ctx context.Context) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !d.tracing {
		return d.execute(ctx)
	}

	ctx, span := trace.StartSpan(ctx, "mongoquery/dispatch.(*Dispatcher).Execute")
	defer span.End()
	span.AddAttributes(
		trace.StringAttribute("query.kind", d.desc.Kind.String()),
		trace.BoolAttribute("query.scoped_read_preference", d.scoped()),
	)

	res, err := d.execute(ctx)
	if err != nil {
		span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: err.Error()})
	}
	return res, err
}

func (d *Dispatcher) execute(ctx context.Context) (Result, error) {
	desc := &d.desc
	opts := d.options.Clone()

	d.log.V(1).Info("dispatching query", "kind", desc.Kind.String(), "scopedReadPreference", d.scoped())

	switch desc.Kind {
	case query.Find:
		raw, err := d.coll.Find(ctx, desc.Filter, desc.Select)
		if err != nil {
			return Result{}, err
		}
		return streamResult(d.prepareCursor(raw)), nil

	case query.FindAndUpdate:
		if desc.NewObj == nil {
			return Result{}, missingField(desc.Kind, "new object")
		}
		qopts := d.selectOptions("new", "select", "sort", "upsert").Rename(fieldsRename)
		doc, err := d.coll.FindAndUpdate(ctx, desc.Filter, desc.NewObj, opts.Merge(qopts))
		if err != nil {
			return Result{}, err
		}
		return documentResult(doc), nil

	case query.FindAndRemove:
		qopts := d.selectOptions("select", "sort").Rename(fieldsRename)
		doc, err := d.coll.FindAndRemove(ctx, desc.Filter, opts.Merge(qopts))
		if err != nil {
			return Result{}, err
		}
		return documentResult(doc), nil

	case query.Insert:
		if desc.NewObj == nil {
			return Result{}, missingField(desc.Kind, "new object")
		}
		status, err := d.coll.Insert(ctx, desc.NewObj, opts)
		if err != nil {
			return Result{}, err
		}
		return acknowledgmentResult(status), nil

	case query.Update:
		if desc.NewObj == nil {
			return Result{}, missingField(desc.Kind, "new object")
		}
		status, err := d.coll.Update(ctx, desc.Filter, desc.NewObj, opts.Merge(d.selectOptions("multiple", "upsert")))
		if err != nil {
			return Result{}, err
		}
		return acknowledgmentResult(status), nil

	case query.Remove:
		status, err := d.coll.Remove(ctx, desc.Filter, opts)
		if err != nil {
			return Result{}, err
		}
		return acknowledgmentResult(status), nil

	case query.Group:
		group := desc.Group
		if group == nil {
			return Result{}, missingField(desc.Kind, "group")
		}
		groupOpts := group.Options.Clone()
		if len(desc.Filter) > 0 {
			groupOpts["cond"] = desc.Filter
		}
		return d.withScopedReadPreference(ctx, func(ctx context.Context) (Result, error) {
			doc, err := d.coll.Group(ctx, group.Keys, group.Initial, group.Reduce, groupOpts.Merge(opts))
			if err != nil {
				return Result{}, err
			}
			return documentResult(doc), nil
		})

	case query.MapReduce:
		mr := desc.MapReduce
		if mr == nil {
			return Result{}, missingField(desc.Kind, "mapReduce")
		}
		mrOpts := mr.Options.Clone()
		if desc.Limit != nil {
			mrOpts["limit"] = *desc.Limit
		}
		var out MapReduceOutput
		res, err := d.withScopedReadPreference(ctx, func(ctx context.Context) (Result, error) {
			var err error
			out, err = d.coll.MapReduce(ctx, mr.Map, mr.Reduce, mr.Out, desc.Filter, mrOpts.Merge(opts))
			return Result{}, err
		})
		if err != nil {
			return res, err
		}
		if out.Stream != nil {
			return streamResult(d.prepareCursor(out.Stream)), nil
		}
		return documentResult(out.Response), nil

	case query.Distinct:
		if desc.Distinct == "" {
			return Result{}, missingField(desc.Kind, "distinct field")
		}
		return d.withScopedReadPreference(ctx, func(ctx context.Context) (Result, error) {
			values, err := d.coll.Distinct(ctx, desc.Distinct, desc.Filter, opts)
			if err != nil {
				return Result{}, err
			}
			return sequenceResult(values), nil
		})

	case query.GeoNear:
		geo := desc.GeoNear
		if geo == nil {
			return Result{}, missingField(desc.Kind, "geoNear")
		}
		geoOpts := geo.Options.Clone()
		if desc.Limit != nil {
			geoOpts["num"] = *desc.Limit
		}
		return d.withScopedReadPreference(ctx, func(ctx context.Context) (Result, error) {
			doc, err := d.coll.Near(ctx, geo.Near, desc.Filter, geoOpts.Merge(opts))
			if err != nil {
				return Result{}, err
			}
			return documentResult(doc), nil
		})

	case query.Count:
		return d.withScopedReadPreference(ctx, func(ctx context.Context) (Result, error) {
			n, err := d.coll.Count(ctx, desc.Filter)
			if err != nil {
				return Result{}, err
			}
			return countResult(n), nil
		})
	}

	// New rejects unknown kinds, so this is only reached if a kind is added
	// without a branch here.
	return Result{}, errors.Wrapf(query.ErrInvalidArgument, "no dispatch for query kind %s", desc.Kind)
}

// selectOptions returns the descriptor's options named by keys that are set.
func (d *Dispatcher) selectOptions(keys ...string) query.Options {
	return query.Select(d.desc.QueryOptions(), keys...)
}

// prepareCursor applies the descriptor's cursor options to raw and wraps it.
// Options that are not set are not applied, leaving the stream's defaults in
// place.
func (d *Dispatcher) prepareCursor(raw RawStream) *Cursor {
	desc := &d.desc
	if desc.ReadPreference != nil {
		raw.SetReadPreference(desc.ReadPreference.Normalized())
	}
	if desc.Hint != nil {
		raw.Hint(desc.Hint)
	}
	if desc.Immortal != nil {
		raw.Immortal(*desc.Immortal)
	}
	if desc.Limit != nil {
		raw.Limit(*desc.Limit)
	}
	if desc.Skip != nil {
		raw.Skip(*desc.Skip)
	}
	if desc.SlaveOkay != nil {
		raw.SlaveOkay(*desc.SlaveOkay)
	}
	if desc.Sort != nil {
		raw.Sort(desc.Sort)
	}
	if desc.Snapshot {
		raw.Snapshot()
	}
	return newCursor(raw, d.coll)
}

func (d *Dispatcher) scoped() bool {
	return d.desc.ReadPreference != nil && d.desc.Kind.DatabaseLevel()
}

func missingField(kind query.Kind, field string) error {
	return errors.Wrapf(query.ErrMissingField, "query kind %s requires a %s", kind, field)
}
