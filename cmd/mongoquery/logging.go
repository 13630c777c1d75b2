// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package main

import (
	"io"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/ikmak/mongoquery/query"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// newLogger returns a logr.Logger backed by logrus writing to w.
func newLogger(level string, w io.Writer) (logr.Logger, *logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logr.Logger{}, nil, errors.Wrap(query.ErrInvalidArgument, err.Error())
	}
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logrusr.New(logger), logger, nil
}

// driverLoggerOptions routes the driver's command log to the same sink when
// debugging.
func driverLoggerOptions(log logr.Logger, logger *logrus.Logger) *options.LoggerOptions {
	opts := options.Logger().SetSink(log.GetSink()).SetMaxDocumentLength(512)
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		opts.SetComponentLevel(options.LogComponentCommand, options.LogLevelDebug)
	}
	return opts
}
