package verifier

import (
	"io"
	"math"
	"testing"
)

func TestLogSinkMeanAndTotal(t *testing.T) {
	sink := NewLogSink()

	if !math.IsNaN(sink.Mean("val_loss")) {
		t.Fatal("mean of unemitted metric should be NaN")
	}

	sink.Emit("val_loss", 1, 0.4)
	sink.Emit("val_loss", 2, 0.2)

	if got := sink.Mean("val_loss"); math.Abs(got-0.3) > 1e-12 {
		t.Fatalf("mean = %f, want 0.3", got)
	}
	sum, count := sink.Total("val_loss")
	if math.Abs(sum-0.6) > 1e-12 || count != 2 {
		t.Fatalf("total = (%f, %d), want (0.6, 2)", sum, count)
	}
}

// A per-epoch mean computed by differencing Total must reflect only that
// epoch's emissions, even though the sink accumulates across the run.
func TestLogSinkEpochDelta(t *testing.T) {
	sink := NewLogSink()

	sink.Emit("val_loss", 1, 0.8)
	sink.Emit("val_loss", 2, 0.6)

	prevSum, prevCount := sink.Total("val_loss")
	sink.Emit("val_loss", 3, 0.2)
	sink.Emit("val_loss", 4, 0.4)
	sum, count := sink.Total("val_loss")

	epochMean := (sum - prevSum) / float64(count-prevCount)
	if math.Abs(epochMean-0.3) > 1e-12 {
		t.Fatalf("epoch mean = %f, want 0.3", epochMean)
	}
	if runningMean := sink.Mean("val_loss"); math.Abs(runningMean-0.5) > 1e-12 {
		t.Fatalf("running mean = %f, want 0.5", runningMean)
	}
}

func TestLogSinkFlushResets(t *testing.T) {
	sink := NewLogSink()
	sink.Emit("train_loss", 1, 1.5)
	sink.Flush(io.Discard, "Metrics")

	if sum, count := sink.Total("train_loss"); sum != 0 || count != 0 {
		t.Fatalf("total after flush = (%f, %d), want (0, 0)", sum, count)
	}
	if !math.IsNaN(sink.Mean("train_loss")) {
		t.Fatal("mean after flush should be NaN")
	}
}
