// Package profiling accumulates CPU time per render pass within a frame.
package profiling

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Profiler collects named durations for the current frame and keeps a
// smoothed average across frames. The zero value is not usable; call New.
type Profiler struct {
	mu      sync.Mutex
	now     func() time.Time
	frame   map[string]time.Duration
	average map[string]time.Duration
	frames  uint64
}

// smoothing weight of the newest frame in the running average
const smoothing = 0.1

func New() *Profiler {
	return &Profiler{
		now:     time.Now,
		frame:   make(map[string]time.Duration),
		average: make(map[string]time.Duration),
	}
}

// Track returns a stop function that records the elapsed time under name.
// Usage: defer p.Track("shadow")()
func (p *Profiler) Track(name string) func() {
	start := p.now()
	return func() {
		d := p.now().Sub(start)
		p.mu.Lock()
		p.frame[name] += d
		p.mu.Unlock()
	}
}

// ResetFrame folds the finished frame into the averages and clears it.
// Call at the start of each frame.
func (p *Profiler) ResetFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frame) > 0 {
		for k, v := range p.frame {
			if avg, ok := p.average[k]; ok && p.frames > 0 {
				p.average[k] = avg + time.Duration(smoothing*float64(v-avg))
			} else {
				p.average[k] = v
			}
		}
		p.frames++
	}
	clear(p.frame)
}

// Snapshot returns a copy of the current frame totals.
func (p *Profiler) Snapshot() map[string]time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]time.Duration, len(p.frame))
	for k, v := range p.frame {
		out[k] = v
	}
	return out
}

// Average returns the smoothed duration of name over completed frames.
func (p *Profiler) Average(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.average[name]
}

func (p *Profiler) Frames() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// TopN formats the n longest passes of the current frame, longest first.
// Example: "light.point:1.4ms, shadow:0.7ms"
func (p *Profiler) TopN(n int) string {
	ss := p.Snapshot()
	type pair struct {
		name string
		dur  time.Duration
	}
	list := make([]pair, 0, len(ss))
	for k, v := range ss {
		list = append(list, pair{name: k, dur: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].dur == list[j].dur {
			return list[i].name < list[j].name
		}
		return list[i].dur > list[j].dur
	})
	if n > len(list) {
		n = len(list)
	}
	parts := make([]string, 0, n)
	for _, e := range list[:n] {
		parts = append(parts, e.name+":"+formatMs(e.dur))
	}
	return strings.Join(parts, ", ")
}

// formatMs keeps one decimal and drops a trailing .0.
func formatMs(d time.Duration) string {
	s := fmt.Sprintf("%.1f", float64(d.Microseconds())/1000)
	return strings.TrimSuffix(s, ".0") + "ms"
}
