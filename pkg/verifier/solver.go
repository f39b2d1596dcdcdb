package verifier

import (
	"errors"
	"fmt"

	"gorgonia.org/gorgonia"
)

// ErrUnknownOptimizer is returned for optimizer keys outside the supported
// set. Callers treat it as a fatal configuration error.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

var solvers = map[string]func(lr float64) gorgonia.Solver{
	"adam": func(lr float64) gorgonia.Solver {
		return gorgonia.NewAdamSolver(
			gorgonia.WithLearnRate(lr),
			gorgonia.WithBeta1(0.9),
			gorgonia.WithBeta2(0.999),
			gorgonia.WithEps(1e-8))
	},
	"adadelta": func(lr float64) gorgonia.Solver {
		return NewAdadeltaSolver(lr, 0.9, 1e-6)
	},
	"adagrad": func(lr float64) gorgonia.Solver {
		return gorgonia.NewAdaGradSolver(
			gorgonia.WithLearnRate(lr),
			gorgonia.WithEps(1e-8))
	},
	"rmsprop": func(lr float64) gorgonia.Solver {
		return gorgonia.NewRMSPropSolver(gorgonia.WithLearnRate(lr))
	},
	"sgd": func(lr float64) gorgonia.Solver {
		return gorgonia.NewVanillaSolver(gorgonia.WithLearnRate(lr))
	},
}

// NewSolver maps an optimizer key to a solver bound to the configured
// learning rate. The recognized keys are adam, adadelta, adagrad, rmsprop
// and sgd; anything else fails with ErrUnknownOptimizer.
func NewSolver(kind string, lr float64) (gorgonia.Solver, error) {
	factory, ok := solvers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, kind)
	}
	return factory(lr), nil
}
