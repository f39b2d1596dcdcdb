package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/echolab/voicepair/pkg/audio"
	"gorgonia.org/tensor"
)

// ErrOutOfRange is returned by Get for indices outside [0, Size()).
var ErrOutOfRange = errors.New("utterance index out of range")

// Utterance is one audio recording plus its integer speaker id, read from a
// co-located label file. Immutable after Load.
type Utterance struct {
	Base  string
	Path  string
	Label int
}

// Dataset holds the utterances of one split directory together with the
// label-sorted index permutation. Records are never mutated after Load, so
// concurrent Get calls need no locking as long as each caller brings its own
// random source.
type Dataset struct {
	records []Utterance
	indices []int // logical position -> position in records, ascending by label
	cache   *Cache
}

// Option configures a Dataset at Load time.
type Option func(*Dataset)

// WithCache attaches a feature-map cache so repeated epochs skip re-decoding
// unchanged files.
func WithCache(c *Cache) Option {
	return func(ds *Dataset) { ds.cache = c }
}

// Load discovers all wav files in dir, reads each record's speaker id from
// the matching .txt label file and builds the label-sorted index. It fails if
// the directory holds no wav files or any label file is missing or
// unparseable.
func Load(dir string, opts ...Option) (*Dataset, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %v", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no wav files in %s", dir)
	}
	sort.Strings(paths)

	records := make([]Utterance, 0, len(paths))
	for _, path := range paths {
		base := strings.TrimSuffix(filepath.Base(path), ".wav")
		labelPath := filepath.Join(dir, base+".txt")
		b, err := os.ReadFile(labelPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read label for %s: %v", base, err)
		}
		label, err := strconv.Atoi(strings.TrimSpace(string(b)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse label %q for %s: %v", strings.TrimSpace(string(b)), base, err)
		}
		records = append(records, Utterance{Base: base, Path: path, Label: label})
	}

	indices := make([]int, len(records))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return records[indices[a]].Label < records[indices[b]].Label
	})

	ds := &Dataset{records: records, indices: indices}
	for _, opt := range opts {
		opt(ds)
	}
	return ds, nil
}

// Size returns the number of utterances in the split.
func (ds *Dataset) Size() int {
	return len(ds.records)
}

// Label returns the speaker id at logical position idx in label-sorted order.
func (ds *Dataset) Label(idx int) int {
	return ds.records[ds.indices[idx]].Label
}

// Record returns the utterance at logical position idx.
func (ds *Dataset) Record(idx int) Utterance {
	return ds.records[ds.indices[idx]]
}

// Get draws a companion for idx using the choice policy, transforms both
// utterances and stacks the feature maps along the frequency axis into a
// (2*MelBands, TimeFrames) map. The label is 1 iff both utterances share a
// speaker id. Repeated calls for the same idx draw fresh companions from
// rng; pass a seeded source to reproduce exact pairs.
func (ds *Dataset) Get(idx int, rng *rand.Rand) (*tensor.Dense, int, error) {
	if idx < 0 || idx >= ds.Size() {
		return nil, 0, fmt.Errorf("%w: %d of %d", ErrOutOfRange, idx, ds.Size())
	}

	choice := Choice(idx, ds.Size(), rng)

	first, err := ds.feature(ds.Record(idx))
	if err != nil {
		return nil, 0, err
	}
	second, err := ds.feature(ds.Record(choice))
	if err != nil {
		return nil, 0, err
	}

	label := 0
	if ds.Label(idx) == ds.Label(choice) {
		label = 1
	}

	stacked := make([]float64, 0, 2*audio.MelBands*audio.TimeFrames)
	stacked = append(stacked, first.Data().([]float64)...)
	stacked = append(stacked, second.Data().([]float64)...)

	x := tensor.New(
		tensor.WithShape(2*audio.MelBands, audio.TimeFrames),
		tensor.WithBacking(stacked))
	return x, label, nil
}

func (ds *Dataset) feature(u Utterance) (*tensor.Dense, error) {
	if ds.cache == nil {
		return audio.Transform(u.Path)
	}
	if m, ok := ds.cache.Get(u.Path); ok {
		return m, nil
	}
	m, err := audio.Transform(u.Path)
	if err != nil {
		return nil, err
	}
	if err := ds.cache.Put(u.Path, m); err != nil {
		return nil, fmt.Errorf("failed to cache features for %s: %v", u.Base, err)
	}
	return m, nil
}
