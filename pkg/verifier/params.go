package verifier

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Params fixes the model and training hyperparameters at construction time.
// Nothing here changes during a run except through the solver's own update
// rule on the weights.
type Params struct {
	LearnRate float64
	BatchSize int
	Epochs    int
	Optimizer string

	Widths  [convStages]int
	Hidden  int
	Classes int

	Workers int
	Seed    uint64
}

func (p *Params) Write(w io.Writer, title string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendRows([]table.Row{
		{"VOICEPAIR_LEARN_RATE", fmt.Sprintf("%0.06f", p.LearnRate)},
		{"VOICEPAIR_BATCH_SIZE", fmt.Sprintf("%d", p.BatchSize)},
		{"VOICEPAIR_EPOCHS", fmt.Sprintf("%d", p.Epochs)},
		{"VOICEPAIR_OPTIMIZER", p.Optimizer},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"VOICEPAIR_HIDDEN", fmt.Sprintf("%d", p.Hidden)},
		{"VOICEPAIR_CLASSES", fmt.Sprintf("%d", p.Classes)},
		{"VOICEPAIR_WORKERS", fmt.Sprintf("%d", p.Workers)},
		{"VOICEPAIR_SEED", fmt.Sprintf("%d", p.Seed)},
	})
	t.Render()
}

func NewParamsFromDefaults() Params {
	return Params{
		LearnRate: LearnRate(),
		BatchSize: BatchSize(),
		Epochs:    Epochs(),
		Optimizer: Optimizer(),

		Widths:  [convStages]int{16, 32, 64, 128},
		Hidden:  Hidden(),
		Classes: Classes(),

		Workers: Workers(),
		Seed:    uint64(Seed()),
	}
}

func envInt(name string, def func() int, dec func(v int) int) func() int {
	return func() int {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			if v, err := strconv.ParseInt(v, 10, 32); err != nil {
				log.Fatalf("failed to parse env.%s: %v", name, err)
			} else {
				value = int(v)
			}
		}
		return dec(value)
	}
}

func envFloat64(name string, def func() float64, dec func(v float64) float64) func() float64 {
	return func() float64 {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			if v, err := strconv.ParseFloat(v, 64); err != nil {
				log.Fatalf("failed to parse env.%s: %v", name, err)
			} else {
				value = v
			}
		}
		return dec(value)
	}
}

func envString(name string, def func() string) func() string {
	return func() string {
		value := def()
		if v, ok := os.LookupEnv(name); ok {
			value = v
		}
		return value
	}
}

func atLeastInt(min int) func(int) int {
	return func(v int) int {
		if v < min {
			return min
		}
		return v
	}
}

func positiveFloat(def float64) func(float64) float64 {
	return func(v float64) float64 {
		if v <= 0 {
			return def
		}
		return v
	}
}

var (
	LearnRate = envFloat64("VOICEPAIR_LEARN_RATE", func() float64 { return 0.1 }, positiveFloat(0.1))
	BatchSize = envInt("VOICEPAIR_BATCH_SIZE", func() int { return 4 }, atLeastInt(1))
	Epochs    = envInt("VOICEPAIR_EPOCHS", func() int { return 100 }, atLeastInt(1))
	Optimizer = envString("VOICEPAIR_OPTIMIZER", func() string { return "adam" })
)

var (
	Hidden  = envInt("VOICEPAIR_HIDDEN", func() int { return 64 }, atLeastInt(1))
	Classes = envInt("VOICEPAIR_CLASSES", func() int { return 1 }, atLeastInt(1))
	Workers = envInt("VOICEPAIR_WORKERS", func() int { return 4 }, atLeastInt(1))
	Seed    = envInt("VOICEPAIR_SEED", func() int { return 1 }, atLeastInt(0))
)

var (
	TrainDir  = envString("VOICEPAIR_TRAIN_DIR", func() string { return "data/train" })
	ValDir    = envString("VOICEPAIR_VAL_DIR", func() string { return "data/val" })
	TestDir   = envString("VOICEPAIR_TEST_DIR", func() string { return "" })
	CacheDir  = envString("VOICEPAIR_CACHE", func() string { return "" })
	CorpusURL = envString("VOICEPAIR_CORPUS_URL", func() string { return "" })
)
