package verifier

import (
	"fmt"

	"gorgonia.org/gorgonia"
)

// BinaryCrossEntropy computes -mean(y*log(p) + (1-y)*log(1-p)) between
// predicted probabilities and {0,1} targets. Predictions are squashed into
// [eps, 1-eps] first, which keeps both log terms finite and non-positive, so
// the loss can never dip below zero at the interval's edges.
func BinaryCrossEntropy(pred, target *gorgonia.Node) (*gorgonia.Node, error) {
	eps := 1e-7

	scaled, err := gorgonia.Mul(pred, gorgonia.NewConstant(1-2*eps))
	if err != nil {
		return nil, fmt.Errorf("failed to scale predictions: %v", err)
	}
	safePred, err := gorgonia.Add(scaled, gorgonia.NewConstant(eps))
	if err != nil {
		return nil, fmt.Errorf("failed to add epsilon: %v", err)
	}
	logPred, err := gorgonia.Log(safePred)
	if err != nil {
		return nil, fmt.Errorf("failed to compute log: %v", err)
	}
	positive, err := gorgonia.HadamardProd(target, logPred)
	if err != nil {
		return nil, fmt.Errorf("failed to compute positive term: %v", err)
	}

	safeNeg, err := gorgonia.Sub(gorgonia.NewConstant(1.0), safePred)
	if err != nil {
		return nil, fmt.Errorf("failed to compute 1-p: %v", err)
	}
	logNeg, err := gorgonia.Log(safeNeg)
	if err != nil {
		return nil, fmt.Errorf("failed to compute log: %v", err)
	}
	oneMinusTarget, err := gorgonia.Sub(gorgonia.NewConstant(1.0), target)
	if err != nil {
		return nil, fmt.Errorf("failed to compute 1-y: %v", err)
	}
	negative, err := gorgonia.HadamardProd(oneMinusTarget, logNeg)
	if err != nil {
		return nil, fmt.Errorf("failed to compute negative term: %v", err)
	}

	sum, err := gorgonia.Add(positive, negative)
	if err != nil {
		return nil, fmt.Errorf("failed to sum terms: %v", err)
	}
	mean, err := gorgonia.Mean(sum)
	if err != nil {
		return nil, fmt.Errorf("failed to compute mean: %v", err)
	}
	return gorgonia.Neg(mean)
}
