package verifier

import (
	"fmt"
	"runtime"

	"github.com/echolab/voicepair/pkg/dataset"
	"github.com/jedib0t/go-pretty/v6/progress"
)

// Train runs the configured number of epochs: shuffled training batches with
// a gradient update after every step, then an unshuffled validation pass.
// The shuffle seed advances per epoch so no two epochs replay the same pair
// draws.
func Train(pw progress.Writer, ctrl *Controller, train, val *dataset.Dataset, logs *LogSink, p Params) error {
	tracker := progress.Tracker{
		Message: "Training",
		Total:   int64(p.Epochs),
		Units:   progress.UnitsDefault,
	}
	pw.AppendTracker(&tracker)
	tracker.Start()

	for epoch := range p.Epochs {
		tracker.SetValue(int64(epoch))

		trainLoss := 0.0
		batches := 0
		for b := range dataset.Batches(train, dataset.BatchConfig{
			BatchSize: p.BatchSize,
			Workers:   p.Workers,
			Shuffle:   true,
			Seed:      p.Seed + uint64(epoch),
		}) {
			loss, err := ctrl.TrainingStep(b)
			if err != nil {
				return err
			}
			if err := ctrl.Update(); err != nil {
				return fmt.Errorf("solver step failed: %v", err)
			}
			trainLoss += loss
			batches++
		}

		var prevValSum float64
		var prevValCount int
		if logs != nil {
			prevValSum, prevValCount = logs.Total("val_loss")
		}

		for b := range dataset.Batches(val, dataset.BatchConfig{
			BatchSize: p.BatchSize,
			Workers:   1,
			Shuffle:   false,
			Seed:      p.Seed,
		}) {
			if err := ctrl.ValidationStep(b); err != nil {
				return err
			}
		}

		// The sink accumulates over the whole run, so the epoch's
		// validation mean is the delta since before this pass.
		if batches > 0 && logs != nil {
			msg := fmt.Sprintf("Training - TL: %.6f", trainLoss/float64(batches))
			if valSum, valCount := logs.Total("val_loss"); valCount > prevValCount {
				msg += fmt.Sprintf(", VL: %.6f", (valSum-prevValSum)/float64(valCount-prevValCount))
			}
			tracker.Message = msg
		}

		if epoch%5 == 0 {
			runtime.GC()
		}
	}

	tracker.MarkAsDone()
	return nil
}

// Test runs a single test pass over a held-out split.
func Test(pw progress.Writer, ctrl *Controller, test *dataset.Dataset, p Params) error {
	tracker := progress.Tracker{
		Message: "Testing",
		Total:   int64(test.Size() / p.BatchSize),
		Units:   progress.UnitsDefault,
	}
	pw.AppendTracker(&tracker)
	tracker.Start()

	for b := range dataset.Batches(test, dataset.BatchConfig{
		BatchSize: p.BatchSize,
		Workers:   1,
		Shuffle:   false,
		Seed:      p.Seed,
	}) {
		if err := ctrl.TestStep(b); err != nil {
			return err
		}
		tracker.Increment(1)
	}

	tracker.MarkAsDone()
	return nil
}
