// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package dispatch

import (
	"context"

	"github.com/pkg/errors"
)

// withScopedReadPreference runs call with the descriptor's read preference
// installed on the collection's database, then reinstates the database's
// previous read preference whatever call did. Without a read preference on the
// descriptor, call runs directly and the database is not touched.
//
// If call panics, the panic is re-raised after the restore. If the restore
// fails, the call's own error still wins: a successful call reports the
// restore error, a failed call reports a *RestoreError wrapping its error.
func (d *Dispatcher) withScopedReadPreference(ctx context.Context, call func(context.Context) (Result, error)) (res Result, err error) {
	rp := d.desc.ReadPreference
	if rp == nil {
		return call(ctx)
	}

	db := d.coll.Database()
	prev := db.ReadPreference().Normalized()
	if err := db.SetReadPreference(rp.Normalized()); err != nil {
		return Result{}, errors.WithMessagef(err, "installing read preference %s", rp)
	}

	defer func() {
		restoreErr := db.SetReadPreference(prev)
		if r := recover(); r != nil {
			if restoreErr != nil {
				d.log.Error(restoreErr, "restoring read preference after panic", "readPreference", prev.String())
			}
			panic(r)
		}
		if restoreErr == nil {
			return
		}
		d.log.Error(restoreErr, "restoring read preference", "readPreference", prev.String())
		if err != nil {
			err = &RestoreError{Err: err, RestoreErr: restoreErr, ReadPreference: prev}
			return
		}
		res = Result{}
		err = errors.WithMessagef(restoreErr, "restoring read preference %s", prev)
	}()

	return call(ctx)
}
