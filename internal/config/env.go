// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Environment variables read by LoadEnv.
const (
	EnvURI      = "MONGODB_URI"
	EnvDatabase = "MONGOQUERY_DATABASE"
	EnvLogLevel = "MONGOQUERY_LOG_LEVEL"
)

// Defaults for unset variables.
const (
	DefaultURI      = "mongodb://localhost:27017"
	DefaultDatabase = "test"
	DefaultLogLevel = "info"
)

// Env is the process configuration taken from the environment.
type Env struct {
	URI      string
	Database string
	LogLevel string
}

// LoadEnv loads the given .env files into the process environment, without
// overriding variables that are already set, and reads Env from it. With no
// files, ./.env is loaded if it exists.
func LoadEnv(files ...string) (Env, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Env{}, errors.Wrap(err, "loading environment files")
		}
	}
	return Env{
		URI:      getenv(EnvURI, DefaultURI),
		Database: getenv(EnvDatabase, DefaultDatabase),
		LogLevel: getenv(EnvLogLevel, DefaultLogLevel),
	}, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
