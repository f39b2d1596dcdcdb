package verifier

import (
	"fmt"
	"math"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// AdadeltaSolver implements the Adadelta update rule (Zeiler 2012) over
// gorgonia's Solver interface, which the library itself does not ship.
// State is kept per parameter, indexed by position in the model slice, the
// same convention gorgonia's own solvers use.
type AdadeltaSolver struct {
	lr  float64
	rho float64
	eps float64

	accGrad  [][]float64
	accDelta [][]float64
}

func NewAdadeltaSolver(lr, rho, eps float64) *AdadeltaSolver {
	return &AdadeltaSolver{lr: lr, rho: rho, eps: eps}
}

// Step applies one Adadelta update to every parameter in model.
func (s *AdadeltaSolver) Step(model []gorgonia.ValueGrad) error {
	for len(s.accGrad) < len(model) {
		s.accGrad = append(s.accGrad, nil)
		s.accDelta = append(s.accDelta, nil)
	}

	for i, param := range model {
		grad, err := param.Grad()
		if err != nil {
			return fmt.Errorf("failed to get gradient for parameter %d: %v", i, err)
		}

		weights, ok := param.Value().(*tensor.Dense)
		if !ok {
			return fmt.Errorf("parameter %d is not a dense tensor", i)
		}
		grads, ok := grad.(*tensor.Dense)
		if !ok {
			return fmt.Errorf("gradient %d is not a dense tensor", i)
		}

		ws := weights.Data().([]float64)
		gs := grads.Data().([]float64)
		if s.accGrad[i] == nil {
			s.accGrad[i] = make([]float64, len(ws))
			s.accDelta[i] = make([]float64, len(ws))
		}
		ag, ad := s.accGrad[i], s.accDelta[i]

		for j, g := range gs {
			ag[j] = s.rho*ag[j] + (1-s.rho)*g*g
			delta := -math.Sqrt(ad[j]+s.eps) / math.Sqrt(ag[j]+s.eps) * g * s.lr
			ad[j] = s.rho*ad[j] + (1-s.rho)*delta*delta
			ws[j] += delta
		}

		grads.Zero()
	}
	return nil
}
