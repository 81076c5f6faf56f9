// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command fwqdemo exercises an fwq queue from the command line.
//
//	fwqdemo run --producers 4 --consumers 8 --items 100000
//	fwqdemo fair --consumers 5
//
// Flags may also be set through FWQ_* environment variables.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"code.hybscloud.com/fwq/internal/harness"
	"github.com/phsym/console-slog"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fwqdemo:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var log *slog.Logger
	return &cli.App{
		Name:  "fwqdemo",
		Usage: "drive a fair FIFO work queue with concurrent producers and consumers",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "log JSON instead of console output", EnvVars: []string{"FWQ_JSON"}},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", EnvVars: []string{"FWQ_DEBUG"}},
		},
		Before: func(c *cli.Context) error {
			log = newLogger(c.Bool("json"), c.Bool("debug"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run a producer/consumer workload and verify delivery",
				Flags: runFlags(),
				Action: func(c *cli.Context) error {
					return runWorkload(c, log)
				},
			},
			{
				Name:  "fair",
				Usage: "show blocked consumers being served in arrival order",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "consumers", Aliases: []string{"c"}, Value: 3, EnvVars: []string{"FWQ_CONSUMERS"}},
				},
				Action: func(c *cli.Context) error {
					return runFair(c, log)
				},
			},
		},
	}
}

func runFlags() []cli.Flag {
	def := harness.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{Name: "producers", Aliases: []string{"p"}, Value: def.Producers, EnvVars: []string{"FWQ_PRODUCERS"}},
		&cli.IntFlag{Name: "consumers", Aliases: []string{"c"}, Value: def.Consumers, EnvVars: []string{"FWQ_CONSUMERS"}},
		&cli.IntFlag{Name: "pollers", Value: def.Pollers, Usage: "consumers using timed polling instead of blocking", EnvVars: []string{"FWQ_POLLERS"}},
		&cli.IntFlag{Name: "items", Aliases: []string{"n"}, Value: def.Items, Usage: "elements per producer", EnvVars: []string{"FWQ_ITEMS"}},
		&cli.DurationFlag{Name: "poll-timeout", Value: def.PollTimeout, EnvVars: []string{"FWQ_POLL_TIMEOUT"}},
		&cli.IntFlag{Name: "prealloc", Value: def.Prealloc, EnvVars: []string{"FWQ_PREALLOC"}},
		&cli.DurationFlag{Name: "timeout", Value: 0, Usage: "bound on draining (0 = none)", EnvVars: []string{"FWQ_TIMEOUT"}},
	}
}

func runWorkload(c *cli.Context, log *slog.Logger) error {
	cfg := harness.Config{
		Producers:   c.Int("producers"),
		Consumers:   c.Int("consumers"),
		Pollers:     c.Int("pollers"),
		Items:       c.Int("items"),
		PollTimeout: c.Duration("poll-timeout"),
		Prealloc:    c.Int("prealloc"),
	}
	ctx := c.Context
	if d := c.Duration("timeout"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	rep, err := harness.Run(ctx, cfg, log)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(rep.PerConsumer))
	for name := range rep.PerConsumer {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		log.Info("worker share", "worker", name, "received", rep.PerConsumer[name])
	}
	log.Info("ok", "elements", rep.Visited, "elapsed", rep.Elapsed, "per_second", perSecond(rep))
	return nil
}

// perSecond is the delivery rate, or 0 when the clock did not advance.
func perSecond(rep harness.Report) int64 {
	if rep.Elapsed <= 0 {
		return 0
	}
	return int64(float64(rep.Visited) / rep.Elapsed.Seconds())
}

func runFair(c *cli.Context, log *slog.Logger) error {
	order, err := harness.Fairness(c.Context, c.Int("consumers"), log)
	if err != nil {
		return err
	}
	for _, s := range order {
		if s.Consumer != s.Element {
			return fmt.Errorf("element %d served to consumer %d out of turn", s.Element, s.Consumer)
		}
	}
	log.Info("ok", "consumers", len(order))
	return nil
}

// newLogger builds the console handler for interactive use, or a JSON
// handler with the "ts" time key for log collection.
func newLogger(jsonOut, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if jsonOut {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Key = "ts"
				}
				return a
			},
		}))
	}
	return slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{Level: level}))
}
