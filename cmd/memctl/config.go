package main

import (
	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/hostmem/alloc"
)

func init() {
	rootCmd.AddCommand(newConfigCmd())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective allocator configuration",
		Long: `The config command validates the size flags and prints the resulting
configuration together with the address space it would reserve.

Example:
  memctl config
  memctl config --slots 8 --scratch-heap 64MiB --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printConfig(cmd, cfg)
		},
	}
}

type configView struct {
	Slots         int    `json:"slots"`
	SmallHeap     string `json:"small_heap"`
	BigHeap       string `json:"big_heap"`
	PersistHeap   string `json:"persist_heap"`
	ScratchHeap   string `json:"scratch_heap"`
	BigThreshold  string `json:"big_threshold"`
	ReservedTotal string `json:"reserved_total"`
}

func viewOf(cfg alloc.Config) configView {
	perSlot := cfg.SmallHeapSize + cfg.BigHeapSize + cfg.PersistHeapSize + cfg.ScratchHeapSize
	return configView{
		Slots:         cfg.Slots,
		SmallHeap:     humanize.IBytes(uint64(cfg.SmallHeapSize)),
		BigHeap:       humanize.IBytes(uint64(cfg.BigHeapSize)),
		PersistHeap:   humanize.IBytes(uint64(cfg.PersistHeapSize)),
		ScratchHeap:   humanize.IBytes(uint64(cfg.ScratchHeapSize)),
		BigThreshold:  humanize.IBytes(uint64(cfg.BigObjectThreshold)),
		ReservedTotal: humanize.IBytes(uint64(perSlot) * uint64(cfg.Slots)),
	}
}

func printConfig(cmd *cobra.Command, cfg alloc.Config) error {
	v := viewOf(cfg)
	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, v)
	}
	printInfo(out, "slots:          %d\n", v.Slots)
	printInfo(out, "small heap:     %s\n", v.SmallHeap)
	printInfo(out, "big heap:       %s\n", v.BigHeap)
	printInfo(out, "persist heap:   %s\n", v.PersistHeap)
	printInfo(out, "scratch heap:   %s\n", v.ScratchHeap)
	printInfo(out, "big threshold:  %s\n", v.BigThreshold)
	printInfo(out, "reserved total: %s\n", v.ReservedTotal)
	return nil
}
