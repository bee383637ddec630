package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/ownership/rc"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Hammer one synchronized block from many goroutines",
	Long: `stress clones, locks and releases handles to a single payload from
many goroutines and checks that the payload is destroyed exactly once and
its control block released exactly once.`,
	Args: cobra.NoArgs,
	RunE: runStress,
}

func init() {
	stressCmd.Flags().Int("workers", 8, "number of goroutines")
	stressCmd.Flags().Int("rounds", 10000, "clone/lock/release rounds per goroutine")
	stressCmd.Flags().Int("payloads", 1, "number of payloads to run in sequence")
}

type stressPayload struct {
	drops *atomic.Int64
}

func (p *stressPayload) Drop() { p.drops.Add(1) }

func runStress(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close(cmd.Context())

	workers, _ := cmd.Flags().GetInt("workers")
	rounds, _ := cmd.Flags().GetInt("rounds")
	payloads, _ := cmd.Flags().GetInt("payloads")
	if workers < 1 || rounds < 0 || payloads < 1 {
		return fail("workers and payloads must be positive, rounds non-negative")
	}

	start := time.Now()
	for i := 0; i < payloads; i++ {
		if err := stressOne(cmd.Context(), e, workers, rounds); err != nil {
			return err
		}
	}

	st := e.source.Counting.Stats()
	e.logger.Info("stress finished",
		zap.Int("workers", workers),
		zap.Int("rounds", rounds),
		zap.Int("payloads", payloads),
		zap.Duration("elapsed", time.Since(start)))
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d payload(s), %d workers x %d rounds, %d block(s) allocated, %d freed, %s\n",
		payloads, workers, rounds, st.Allocs, st.Frees, time.Since(start).Round(time.Millisecond))
	return nil
}

func stressOne(ctx context.Context, e *env, workers, rounds int) error {
	var drops atomic.Int64
	rec := &rc.Recorder{}
	root, err := rc.AdoptWith(&stressPayload{drops: &drops}, nil, rc.Options{
		Allocator:    e.source.Allocator,
		Observer:     rec,
		Synchronized: true,
	})
	if err != nil {
		return err
	}

	owners := make([]*rc.Shared[stressPayload], workers)
	observers := make([]*rc.Weak[stressPayload], workers)
	for i := range owners {
		owners[i] = root.Clone()
		observers[i] = root.Weak()
	}
	root.Release()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		own, obs := owners[i], observers[i]
		g.Go(func() error {
			defer obs.Release()
			defer own.Release()
			for r := 0; r < rounds; r++ {
				if r%1024 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				c := own.Clone()
				l := obs.Lock()
				if l.Empty() {
					c.Release()
					return fail("lock failed while owner %d is alive", i)
				}
				l.Release()
				c.Release()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if n := drops.Load(); n != 1 {
		return fail("payload destroyed %d times", n)
	}
	if n := rec.Count(rc.EventBlockReleased); n != 1 {
		return fail("control block released %d times", n)
	}
	return nil
}
