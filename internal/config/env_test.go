// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadEnv(t *testing.T) {
	unsetenv(t, EnvURI)
	unsetenv(t, EnvDatabase)
	unsetenv(t, EnvLogLevel)

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MONGOQUERY_DATABASE=shop\nMONGOQUERY_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv(EnvLogLevel, "warn")

	env, err := LoadEnv(path)
	require.NoError(t, err)
	assert.Equal(t, Env{URI: DefaultURI, Database: "shop", LogLevel: "warn"}, env)
}

func TestLoadEnv_MissingFile(t *testing.T) {
	_, err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
