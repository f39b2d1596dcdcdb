package verifier

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Sink receives named metric values as training progresses. Implementations
// must tolerate concurrent Emit calls.
type Sink interface {
	Emit(name string, step int, value float64)
}

// accuracy compares rounded probabilities against {0,1} labels.
func accuracy(probs, labels []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	correct := 0
	for i, p := range probs {
		if math.Round(p) == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(probs))
}

// LogSink accumulates per-metric running means and renders them as a table,
// typically once per epoch.
type LogSink struct {
	mu     sync.Mutex
	sums   map[string]float64
	counts map[string]int
}

func NewLogSink() *LogSink {
	return &LogSink{
		sums:   map[string]float64{},
		counts: map[string]int{},
	}
}

func (s *LogSink) Emit(name string, step int, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sums[name] += value
	s.counts[name]++
}

// Mean returns the running mean for name since the last Flush, or NaN if the
// metric was never emitted.
func (s *LogSink) Mean(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[name] == 0 {
		return math.NaN()
	}
	return s.sums[name] / float64(s.counts[name])
}

// Total returns the sum and count emitted for name since the last Flush,
// letting callers compute means over a window by differencing.
func (s *LogSink) Total(name string) (float64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sums[name], s.counts[name]
}

// Flush renders the accumulated means and resets the sink.
func (s *LogSink) Flush(w io.Writer, title string) {
	s.mu.Lock()
	names := make([]string, 0, len(s.sums))
	for name := range s.sums {
		names = append(names, name)
	}
	sort.Strings(names)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	for _, name := range names {
		t.AppendRow(table.Row{name, fmt.Sprintf("%0.06f", s.sums[name]/float64(s.counts[name]))})
	}

	s.sums = map[string]float64{}
	s.counts = map[string]int{}
	s.mu.Unlock()

	t.Render()
}
