package alloc

import (
	"fmt"
	"io"
	"text/tabwriter"

	humanize "github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// StrategyStats is a point-in-time view of one strategy.
type StrategyStats struct {
	Name string
	Kind Kind

	Allocated uintptr // live payload bytes
	Live      int     // live blocks
	Committed uintptr // committed prefix of the reservation
	Reserved  uintptr // size of the reservation
	FreeNodes int     // free-list length, arenas only

	Allocs      int
	Frees       int
	Reallocs    int
	Splits      int
	Merges      int
	GrowInPlace int
	Relocations int
	Commits     int
}

// SlotStats groups the strategies of one slot.
type SlotStats struct {
	Index      int
	Strategies []StrategyStats
}

// Allocated returns the live payload bytes of the slot.
func (s SlotStats) Allocated() uintptr {
	var n uintptr
	for _, st := range s.Strategies {
		n += st.Allocated
	}
	return n
}

// Stats is a snapshot of a whole allocator. Slots are captured one at a
// time, so totals across slots are not atomic.
type Stats struct {
	Slots []SlotStats
}

// Allocated returns the live payload bytes across all slots.
func (s Stats) Allocated() uintptr {
	var n uintptr
	for _, sl := range s.Slots {
		n += sl.Allocated()
	}
	return n
}

// Committed returns the committed bytes across all slots.
func (s Stats) Committed() uintptr {
	var n uintptr
	for _, sl := range s.Slots {
		for _, st := range sl.Strategies {
			n += st.Committed
		}
	}
	return n
}

// Report writes a per-strategy table to w.
func (s Stats) Report(w io.Writer) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	p.Fprintf(tw, "strategy\tlive\tallocated\tcommitted\treserved\tfree nodes\tallocs\tfrees\tgrow in place\trelocations\t\n")
	for _, sl := range s.Slots {
		for _, st := range sl.Strategies {
			p.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t\n",
				st.Name,
				st.Live,
				humanize.IBytes(uint64(st.Allocated)),
				humanize.IBytes(uint64(st.Committed)),
				humanize.IBytes(uint64(st.Reserved)),
				st.FreeNodes,
				st.Allocs,
				st.Frees,
				st.GrowInPlace,
				st.Relocations,
			)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "total allocated %s, committed %s\n",
		humanize.IBytes(uint64(s.Allocated())), humanize.IBytes(uint64(s.Committed())))
	return err
}
