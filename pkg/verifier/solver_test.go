package verifier

import (
	"errors"
	"math"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestNewSolverKeys(t *testing.T) {
	for _, kind := range []string{"adam", "adadelta", "adagrad", "rmsprop", "sgd"} {
		solver, err := NewSolver(kind, 0.1)
		if err != nil {
			t.Fatalf("construction failed for %q: %v", kind, err)
		}
		if solver == nil {
			t.Fatalf("nil solver for %q", kind)
		}
	}
}

func TestNewSolverUnknownKey(t *testing.T) {
	for _, kind := range []string{"", "momentum", "ADAM", "lbfgs"} {
		if _, err := NewSolver(kind, 0.1); !errors.Is(err, ErrUnknownOptimizer) {
			t.Fatalf("expected ErrUnknownOptimizer for %q, got %v", kind, err)
		}
	}
}

// Every solver, applied to the quadratic sum(w^2), should reduce |w|.
func TestSolversReduceQuadratic(t *testing.T) {
	for _, kind := range []string{"adam", "adadelta", "adagrad", "rmsprop", "sgd"} {
		t.Run(kind, func(t *testing.T) {
			g := gorgonia.NewGraph()
			w := gorgonia.NewVector(g, tensor.Float64,
				gorgonia.WithShape(2),
				gorgonia.WithValue(tensor.New(tensor.WithShape(2), tensor.WithBacking([]float64{3, -2}))),
				gorgonia.WithName("w"))

			square, err := gorgonia.Square(w)
			if err != nil {
				t.Fatalf("square failed: %v", err)
			}
			loss, err := gorgonia.Sum(square)
			if err != nil {
				t.Fatalf("sum failed: %v", err)
			}
			if _, err := gorgonia.Grad(loss, w); err != nil {
				t.Fatalf("grad failed: %v", err)
			}

			vm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(w))
			defer vm.Close()

			solver, err := NewSolver(kind, 0.1)
			if err != nil {
				t.Fatalf("construction failed: %v", err)
			}

			initial := math.Hypot(3, -2)
			for range 50 {
				vm.Reset()
				if err := vm.RunAll(); err != nil {
					t.Fatalf("run failed: %v", err)
				}
				if err := solver.Step(gorgonia.NodesToValueGrads(gorgonia.Nodes{w})); err != nil {
					t.Fatalf("step failed: %v", err)
				}
			}

			ws := w.Value().Data().([]float64)
			final := math.Hypot(ws[0], ws[1])
			if !(final < initial) {
				t.Fatalf("|w| did not decrease: %f -> %f", initial, final)
			}
			for i, v := range ws {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("non-finite weight %f at %d", v, i)
				}
			}
		})
	}
}
