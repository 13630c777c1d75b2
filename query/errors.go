// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package query

import "errors"

// ErrInvalidArgument is returned when a descriptor is built with an
// unrecognized kind.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidOperation is returned when an accessor is used with a kind that
// does not support it, such as asking an insert for a cursor.
var ErrInvalidOperation = errors.New("invalid operation")

// ErrUnexpectedResult is returned when a stream-producing kind did not yield a
// stream-shaped result.
var ErrUnexpectedResult = errors.New("unexpected result")

// ErrMissingField is returned at execution time when a descriptor lacks the
// kind-specific part its kind requires.
var ErrMissingField = errors.New("missing field")

// ErrNoDocuments is returned by single-result accessors when the cursor is
// empty.
var ErrNoDocuments = errors.New("no documents in result")
