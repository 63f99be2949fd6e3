package main

import (
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/hostmem/alloc"
)

var (
	runOps     int
	runWorkers int
	runMaxSize string
	runMaxLive int
	runSeed    int64
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVar(&runOps, "ops", 100_000, "Operations per worker")
	cmd.Flags().IntVar(&runWorkers, "workers", 4, "Concurrent workers, at most one per slot")
	cmd.Flags().StringVar(&runMaxSize, "max-size", "64KiB", "Largest single request")
	cmd.Flags().IntVar(&runMaxLive, "max-live", 1024, "Live arena blocks kept per worker")
	cmd.Flags().Int64Var(&runSeed, "seed", 42, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic workload and report allocator statistics",
		Long: `The run command drives every strategy of the allocator: arena
allocations, frees and resizes, scratch frames under forced scratch flags, and
persistent allocations released in LIFO order at the end. It fails if any
memory is still allocated afterwards.

Example:
  memctl run
  memctl run --workers 2 --ops 1000000 --max-size 4MiB
  memctl run --slots 8 --workers 8 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(cmd)
		},
	}
}

type runReport struct {
	Workload workloadResult `json:"workload"`
	Stats    alloc.Stats    `json:"stats"`
}

func runWorkload(cmd *cobra.Command) error {
	maxSize, err := humanize.ParseBytes(runMaxSize)
	if err != nil {
		return err
	}

	a, err := newAllocator()
	if err != nil {
		return err
	}
	defer a.Close()

	w := workload{
		Ops:     runOps,
		Workers: runWorkers,
		MaxSize: uintptr(maxSize),
		MaxLive: runMaxLive,
		Seed:    runSeed,
	}
	res, err := w.run(a)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	stats := a.Stats()
	if jsonOut {
		return printJSON(out, runReport{Workload: res, Stats: stats})
	}

	printInfo(out, "%s operations on %d workers in %s\n",
		humanize.Comma(int64(w.Ops*w.Workers)), w.Workers, res.Elapsed.Round(time.Millisecond))
	printInfo(out, "allocs %s, frees %s, reallocs %s (%s relocated), scratch frames %s, persistent %s\n\n",
		humanize.Comma(int64(res.Allocs)),
		humanize.Comma(int64(res.Frees)),
		humanize.Comma(int64(res.Reallocs)),
		humanize.Comma(int64(res.Relocated)),
		humanize.Comma(int64(res.ScratchFrames)),
		humanize.Comma(int64(res.Persistent)))
	if quiet {
		return nil
	}
	return stats.Report(out)
}
