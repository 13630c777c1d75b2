// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package dispatch

import (
	"fmt"

	"github.com/ikmak/mongoquery/query"
)

// RestoreError is returned when a database-level call failed under a scoped
// read preference and the previous read preference could not be reinstated
// afterwards. It unwraps to the call's error.
type RestoreError struct {
	// Err is the error returned by the call.
	Err error
	// RestoreErr is the error returned while reinstating ReadPreference.
	RestoreErr     error
	ReadPreference query.ReadPreference
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("%v (restoring read preference %s: %v)", e.Err, e.ReadPreference, e.RestoreErr)
}

// Unwrap returns the call's error.
func (e *RestoreError) Unwrap() error { return e.Err }
