// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ikmak/mongoquery/query"
	"github.com/spf13/cobra"
)

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:   "mongoquery",
		Short: "Execute query descriptors against MongoDB",
		Long: `mongoquery loads query descriptors from TOML files and executes them
against a MongoDB deployment, or against an in-memory store seeded from an
extended JSON file.

Environment (also read from .env):
  MONGODB_URI            connection string (default mongodb://localhost:27017)
  MONGOQUERY_DATABASE    database name (default test)
  MONGOQUERY_LOG_LEVEL   logrus level (default info)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "environment files to load (default ./.env if present)")

	root.AddCommand(newRunCommand(&envFiles), newKindsCommand())
	return root
}

func newKindsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the query kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			for _, k := range query.Kinds() {
				var traits []string
				if k.Streams() {
					traits = append(traits, "cursor")
				}
				if k.DatabaseLevel() {
					traits = append(traits, "read-preference scoped")
				}
				if _, err := fmt.Fprintf(w, "%-14s %s\n", k, strings.Join(traits, ", ")); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
