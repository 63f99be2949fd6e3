package main

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
	"unsafe"

	humanize "github.com/dustin/go-humanize"

	"github.com/joshuapare/hostmem/alloc"
)

var errTooManyWorkers = errors.New("memctl: more workers than slots")

// workload is a randomized mix of arena traffic, scratch frames and
// persistent allocations. Every worker owns one slot, so the per-slot stacks
// only ever see LIFO traffic.
type workload struct {
	Ops     int     // operations per worker
	Workers int     // concurrent workers, at most one per slot
	MaxSize uintptr // largest request
	MaxLive int     // live arena blocks per worker
	Seed    int64
}

type workloadResult struct {
	Allocs        int           `json:"allocs"`
	Frees         int           `json:"frees"`
	Reallocs      int           `json:"reallocs"`
	Relocated     int           `json:"relocated"`
	ScratchFrames int           `json:"scratch_frames"`
	Persistent    int           `json:"persistent"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}

func (r *workloadResult) add(o workloadResult) {
	r.Allocs += o.Allocs
	r.Frees += o.Frees
	r.Reallocs += o.Reallocs
	r.Relocated += o.Relocated
	r.ScratchFrames += o.ScratchFrames
	r.Persistent += o.Persistent
}

// run executes the workload and checks that it left nothing allocated.
func (w workload) run(a *alloc.Allocator) (workloadResult, error) {
	var total workloadResult
	if w.Workers > a.NumSlots() {
		return total, fmt.Errorf("%w: %d workers, %d slots", errTooManyWorkers, w.Workers, a.NumSlots())
	}
	if w.Workers <= 0 || w.MaxSize == 0 || w.MaxLive <= 0 {
		return total, fmt.Errorf("memctl: workers, max size and max live must be positive")
	}

	start := time.Now()
	results := make([]workloadResult, w.Workers)
	var wg sync.WaitGroup
	for i := range w.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(w.Seed + int64(i)))
			results[i] = w.worker(a.ThreadOn(i), rng)
		}()
	}
	wg.Wait()
	total.Elapsed = time.Since(start)

	for _, r := range results {
		total.add(r)
	}
	if n := a.AllocatedSize(); n != 0 {
		return total, fmt.Errorf("memctl: workload leaked %s", humanize.IBytes(uint64(n)))
	}
	return total, nil
}

func (w workload) worker(th *alloc.Thread, rng *rand.Rand) workloadResult {
	var r workloadResult
	var live, persist []unsafe.Pointer

	for range w.Ops {
		switch n := rng.Intn(100); {
		case n < 40 && len(live) < w.MaxLive:
			p := th.Allocate(w.size(rng), 8, alloc.FlagNone)
			*(*byte)(p) = byte(n)
			live = append(live, p)
			r.Allocs++

		case n < 70 && len(live) > 0:
			i := rng.Intn(len(live))
			th.Free(live[i])
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			r.Frees++

		case n < 90 && len(live) > 0:
			i := rng.Intn(len(live))
			size := w.size(rng)
			if th.WillRelocate(live[i], size) {
				r.Relocated++
			}
			live[i] = th.Reallocate(live[i], size)
			r.Reallocs++

		case n < 97:
			w.scratchFrame(th, rng, &r)

		default:
			th.PushForceFlags(alloc.FlagPersist)
			persist = append(persist, th.Allocate(w.size(rng), 8, alloc.FlagNone))
			th.PopForceFlags()
			r.Allocs++
			r.Persistent++
		}
	}

	for _, p := range live {
		th.Free(p)
		r.Frees++
	}
	for i := len(persist) - 1; i >= 0; i-- {
		th.Free(persist[i])
		r.Frees++
	}
	return r
}

// scratchFrame allocates a few temporaries under forced scratch flags and
// pops them in reverse order.
func (w workload) scratchFrame(th *alloc.Thread, rng *rand.Rand, r *workloadResult) {
	th.PushForceFlags(alloc.FlagScratch)
	defer th.PopForceFlags()

	bufs := make([]unsafe.Pointer, 1+rng.Intn(4))
	for i := range bufs {
		size := w.size(rng)
		bufs[i] = th.Allocate(size, 16, alloc.FlagNone)
		b := unsafe.Slice((*byte)(bufs[i]), size)
		b[0], b[len(b)-1] = 1, 1
		r.Allocs++
	}
	for i := len(bufs) - 1; i >= 0; i-- {
		th.Free(bufs[i])
		r.Frees++
	}
	r.ScratchFrames++
}

func (w workload) size(rng *rand.Rand) uintptr {
	return 1 + uintptr(rng.Int63n(int64(w.MaxSize)))
}
