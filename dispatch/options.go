// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package dispatch

import "github.com/go-logr/logr"

// DispatcherOptions represents options that can be used to configure a
// Dispatcher.
type DispatcherOptions struct {
	// Logger receives a debug line per dispatched query and an error line when
	// a scoped read preference cannot be restored. The default discards.
	Logger *logr.Logger

	// Tracing wraps every Execute in an OpenCensus span. The default is false.
	Tracing *bool
}

// Options creates a new DispatcherOptions instance.
func Options() *DispatcherOptions {
	return &DispatcherOptions{}
}

// SetLogger sets the value for the Logger field.
func (do *DispatcherOptions) SetLogger(l logr.Logger) *DispatcherOptions {
	do.Logger = &l
	return do
}

// SetTracing sets the value for the Tracing field.
func (do *DispatcherOptions) SetTracing(b bool) *DispatcherOptions {
	do.Tracing = &b
	return do
}

// MergeDispatcherOptions combines the given DispatcherOptions instances into a
// single instance in a last-one-wins fashion.
func MergeDispatcherOptions(opts ...*DispatcherOptions) *DispatcherOptions {
	do := Options()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if opt.Logger != nil {
			do.Logger = opt.Logger
		}
		if opt.Tracing != nil {
			do.Tracing = opt.Tracing
		}
	}
	return do
}
