// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/ikmak/mongoquery/dispatch"
	"github.com/ikmak/mongoquery/internal/config"
	"github.com/ikmak/mongoquery/internal/memstore"
	"github.com/ikmak/mongoquery/mongostore"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

type runOptions struct {
	uri         string
	database    string
	memory      string
	repeat      int
	concurrency int
	pretty      bool
	tracing     bool
	timeout     time.Duration
}

func newRunCommand(envFiles *[]string) *cobra.Command {
	var ro runOptions

	cmd := &cobra.Command{
		Use:   "run [flags] file.toml...",
		Short: "Execute query descriptor files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadEnv(*envFiles...)
			if err != nil {
				return err
			}
			if ro.uri == "" {
				ro.uri = env.URI
			}
			if ro.database == "" {
				ro.database = env.Database
			}
			log, logger, err := newLogger(env.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			r := &runner{opts: ro, log: log}
			if ro.memory == "" {
				client, err := connect(cmd.Context(), ro, options.Client().SetLoggerOptions(driverLoggerOptions(log, logger)))
				if err != nil {
					return err
				}
				defer func() { _ = client.Disconnect(context.Background()) }()
				r.client = client
			}
			return r.run(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&ro.uri, "uri", "", "MongoDB connection string (default $MONGODB_URI)")
	flags.StringVar(&ro.database, "database", "", "database name (default $MONGOQUERY_DATABASE)")
	flags.StringVar(&ro.memory, "memory", "", "run against an in-memory store seeded from this extended JSON file")
	flags.IntVar(&ro.repeat, "repeat", 1, "execute each descriptor this many times and report latencies")
	flags.IntVar(&ro.concurrency, "concurrency", 1, "number of descriptor files executed at once")
	flags.BoolVar(&ro.pretty, "pretty", false, "indent the output")
	flags.BoolVar(&ro.tracing, "trace", false, "record an opencensus span per execution")
	flags.DurationVar(&ro.timeout, "timeout", 30*time.Second, "deadline for each execution")
	return cmd
}

func connect(ctx context.Context, ro runOptions, opts *options.ClientOptions) (*mongo.Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, ro.timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts.ApplyURI(ro.uri))
	return client, errors.Wrapf(err, "connecting to %s", ro.uri)
}

type runner struct {
	opts   runOptions
	log    logr.Logger
	client *mongo.Client
}

// outcome is what one descriptor file produced.
type outcome struct {
	file      *config.QueryFile
	result    interface{}
	latencies []float64
}

func (r *runner) run(ctx context.Context, w io.Writer, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.opts.repeat < 1 {
		return errors.Errorf("--repeat must be at least 1, got %d", r.opts.repeat)
	}

	files := make([]*config.QueryFile, len(paths))
	for i, path := range paths {
		qf, err := config.LoadQueryFile(path)
		if err != nil {
			return err
		}
		files[i] = qf
	}

	outcomes := make([]outcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if r.opts.concurrency > 0 {
		g.SetLimit(r.opts.concurrency)
	}
	for i, qf := range files {
		i, qf := i, qf
		g.Go(func() error {
			out, err := r.runFile(gctx, qf)
			if err != nil {
				return errors.WithMessage(err, qf.Path)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, out := range outcomes {
		b, err := render(out.file, out.result, r.opts.pretty)
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		if r.opts.repeat > 1 {
			summary, err := summarize(out.latencies)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "# %s: %s\n", out.file.Path, summary); err != nil {
				return err
			}
		}
	}
	return nil
}

// collection returns the collection qf runs against on a database handle of
// its own, so scoped read preferences of concurrent files do not interfere.
func (r *runner) collection(qf *config.QueryFile) (dispatch.Collection, error) {
	if r.client != nil {
		db := mongostore.NewDatabase(r.client.Database(r.opts.database), r.log)
		return db.Collection(qf.Collection), nil
	}

	f, err := os.Open(r.opts.memory)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	db := memstore.NewDatabase(r.opts.database)
	n, err := memstore.LoadExtJSON(db, f)
	if err != nil {
		return nil, errors.WithMessage(err, r.opts.memory)
	}
	r.log.V(1).Info("seeded in-memory database", "file", r.opts.memory, "documents", n)
	return db.Collection(qf.Collection), nil
}

func (r *runner) runFile(ctx context.Context, qf *config.QueryFile) (outcome, error) {
	coll, err := r.collection(qf)
	if err != nil {
		return outcome{}, err
	}
	dopts := dispatch.Options().
		SetLogger(r.log.WithValues("file", qf.Path)).
		SetTracing(r.opts.tracing)

	out := outcome{file: qf}
	for i := 0; i < r.opts.repeat; i++ {
		start := time.Now()
		out.result, err = r.execute(ctx, coll, qf, dopts)
		if err != nil {
			return outcome{}, err
		}
		out.latencies = append(out.latencies, float64(time.Since(start))/float64(time.Millisecond))
	}
	r.log.Info("executed", "file", qf.Path, "kind", qf.Descriptor.Kind.String(), "runs", r.opts.repeat)
	return out, nil
}

func (r *runner) execute(ctx context.Context, coll dispatch.Collection, qf *config.QueryFile, dopts *dispatch.DispatcherOptions) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.timeout)
	defer cancel()

	d, err := dispatch.New(coll, qf.Descriptor, qf.Options, dopts)
	if err != nil {
		return nil, err
	}
	if qf.Descriptor.Kind.Streams() {
		var docs []interface{}
		if err := d.ToArray(ctx, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}
	res, err := d.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return resultValue(res), nil
}

// summarize reports the mean, median, 95th percentile and maximum of
// latencies in milliseconds.
func summarize(latencies []float64) (string, error) {
	data := stats.Float64Data(latencies)
	mean, err := data.Mean()
	if err != nil {
		return "", errors.Wrap(err, "latency mean")
	}
	p50, err := data.Median()
	if err != nil {
		return "", errors.Wrap(err, "latency median")
	}
	p95, err := data.Percentile(95)
	if err != nil {
		return "", errors.Wrap(err, "latency p95")
	}
	slowest, err := data.Max()
	if err != nil {
		return "", errors.Wrap(err, "latency max")
	}
	return fmt.Sprintf("runs=%d mean=%.3fms p50=%.3fms p95=%.3fms max=%.3fms", len(latencies), mean, p50, p95, slowest), nil
}
