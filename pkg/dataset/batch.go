package dataset

import (
	"math/rand/v2"
	"sync"

	"github.com/echolab/voicepair/pkg/audio"
	"gorgonia.org/tensor"
)

// Batch is one fixed-size slice of pair examples. X has shape
// (Size, 1, 2*MelBands, TimeFrames) and Y holds the matching binary labels.
// A failed transform surfaces on Err and terminates the stream.
type Batch struct {
	X    *tensor.Dense
	Y    []float64
	Size int
	Err  error
}

// BatchConfig controls batching and prefetch. Workers prefetch batches in
// parallel; each worker owns an independent random source seeded from Seed
// and its worker id, so the choice policy's sampling bias is not confounded
// by a shared generator.
type BatchConfig struct {
	BatchSize int
	Workers   int
	Shuffle   bool
	Seed      uint64
}

// Batches streams the dataset as fixed-size batches. The trailing partial
// batch is dropped so every batch matches the training graph's fixed shape.
// With Shuffle the epoch order is a seeded permutation; without it, logical
// order. More than one worker may reorder batches relative to each other.
func Batches(ds *Dataset, cfg BatchConfig) <-chan Batch {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	order := make([]int, ds.Size())
	for i := range order {
		order[i] = i
	}
	if cfg.Shuffle {
		rng := rand.New(rand.NewPCG(cfg.Seed, 0))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	jobs := make(chan []int, cfg.Workers)
	out := make(chan Batch, cfg.Workers)

	go func() {
		defer close(jobs)
		for start := 0; start+cfg.BatchSize <= len(order); start += cfg.BatchSize {
			jobs <- order[start : start+cfg.BatchSize]
		}
	}()

	var wg sync.WaitGroup
	for w := range cfg.Workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(id)+1))
			for indices := range jobs {
				out <- assemble(ds, indices, rng)
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func assemble(ds *Dataset, indices []int, rng *rand.Rand) Batch {
	stride := 2 * audio.MelBands * audio.TimeFrames
	backing := make([]float64, len(indices)*stride)
	labels := make([]float64, len(indices))

	for i, idx := range indices {
		x, label, err := ds.Get(idx, rng)
		if err != nil {
			return Batch{Err: err}
		}
		copy(backing[i*stride:], x.Data().([]float64))
		labels[i] = float64(label)
	}

	x := tensor.New(
		tensor.WithShape(len(indices), 1, 2*audio.MelBands, audio.TimeFrames),
		tensor.WithBacking(backing))
	return Batch{X: x, Y: labels, Size: len(indices)}
}
