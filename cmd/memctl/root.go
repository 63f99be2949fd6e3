package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/hostmem/alloc"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	heapFlags configFlags
)

// configFlags mirror alloc.Config; sizes are human readable ("4GiB").
type configFlags struct {
	slots        int
	smallHeap    string
	bigHeap      string
	persistHeap  string
	scratchHeap  string
	bigThreshold string
}

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Exercise and inspect the hostmem allocator",
	Long: `memctl builds a hostmem allocator from the command line configuration,
runs synthetic workloads against it and prints per-slot, per-strategy
statistics. It is meant for sizing reservations and for smoke-testing debug
builds (go build -tags memdebug).`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func init() {
	d := alloc.DefaultConfig
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log allocator events to stderr")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	pf.BoolVar(&jsonOut, "json", false, "Output in JSON format")

	pf.IntVar(&heapFlags.slots, "slots", d.Slots, "Number of allocator slots")
	pf.StringVar(&heapFlags.smallHeap, "small-heap", humanize.IBytes(uint64(d.SmallHeapSize)), "Small-object arena reservation per slot")
	pf.StringVar(&heapFlags.bigHeap, "big-heap", humanize.IBytes(uint64(d.BigHeapSize)), "Big-object arena reservation per slot")
	pf.StringVar(&heapFlags.persistHeap, "persist-heap", humanize.IBytes(uint64(d.PersistHeapSize)), "Persistent stack reservation per slot")
	pf.StringVar(&heapFlags.scratchHeap, "scratch-heap", humanize.IBytes(uint64(d.ScratchHeapSize)), "Scratch stack reservation per slot")
	pf.StringVar(&heapFlags.bigThreshold, "big-threshold", humanize.IBytes(uint64(d.BigObjectThreshold)), "Requests at least this large go to the big-object arena")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig turns the global flags into a validated alloc.Config.
func loadConfig() (alloc.Config, error) {
	cfg := alloc.Config{Slots: heapFlags.slots}
	sizes := []struct {
		flag  string
		value string
		dst   *uintptr
	}{
		{"small-heap", heapFlags.smallHeap, &cfg.SmallHeapSize},
		{"big-heap", heapFlags.bigHeap, &cfg.BigHeapSize},
		{"persist-heap", heapFlags.persistHeap, &cfg.PersistHeapSize},
		{"scratch-heap", heapFlags.scratchHeap, &cfg.ScratchHeapSize},
		{"big-threshold", heapFlags.bigThreshold, &cfg.BigObjectThreshold},
	}
	for _, s := range sizes {
		n, err := humanize.ParseBytes(s.value)
		if err != nil {
			return cfg, fmt.Errorf("--%s: %w", s.flag, err)
		}
		*s.dst = uintptr(n)
	}
	return cfg, cfg.Validate()
}

// newAllocator builds an allocator from the global flags.
func newAllocator() (*alloc.Allocator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return alloc.New(&cfg, alloc.WithLogger(newLogger()))
}

// newLogger returns a debug logger on stderr in verbose mode, nil otherwise
// so the allocator keeps its discarding default.
func newLogger() *slog.Logger {
	if !verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(w io.Writer, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
