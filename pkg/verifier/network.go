package verifier

import (
	"fmt"

	"github.com/echolab/voicepair/pkg/audio"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const convStages = 4

// Network is the pairwise verification net: four conv/relu/maxpool stages
// over a single-channel stacked feature map, then two fully-connected layers
// ending in a sigmoid same-speaker probability.
type Network struct {
	g *gorgonia.ExprGraph

	conv [convStages]*gorgonia.Node
	fc1  *gorgonia.Node
	fc2  *gorgonia.Node

	flat    int
	classes int
}

// flatSpatial folds the spatial extent of one input plane through the four
// stages: each 3x3 convolution with padding 2 grows a dimension by 2, each
// 2x2 pool halves it rounding down.
func flatSpatial(h, w int) int {
	for range convStages {
		h = (h + 2) / 2
		w = (w + 2) / 2
	}
	return h * w
}

// NewNetwork builds the learnable weights on g. The first fully-connected
// layer's width is computed from the transform's actual output shape rather
// than kept as a manual constant, so the net and the feature pipeline cannot
// drift apart silently.
func NewNetwork(g *gorgonia.ExprGraph, p Params) *Network {
	n := &Network{
		g:       g,
		flat:    p.Widths[convStages-1] * flatSpatial(2*audio.MelBands, audio.TimeFrames),
		classes: p.Classes,
	}

	in := 1
	for i, out := range p.Widths {
		n.conv[i] = gorgonia.NewTensor(g, tensor.Float64, 4,
			gorgonia.WithShape(out, in, 3, 3),
			gorgonia.WithInit(gorgonia.GlorotN(1.0)),
			gorgonia.WithName(fmt.Sprintf("conv%d", i)))
		in = out
	}

	n.fc1 = gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(n.flat, p.Hidden),
		gorgonia.WithInit(gorgonia.GlorotN(1.0)),
		gorgonia.WithName("fc1"))
	n.fc2 = gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(p.Hidden, p.Classes),
		gorgonia.WithInit(gorgonia.GlorotN(1.0)),
		gorgonia.WithName("fc2"))

	return n
}

// Learnables returns the weight nodes in solver order.
func (n *Network) Learnables() gorgonia.Nodes {
	out := gorgonia.Nodes{}
	for _, w := range n.conv[:] {
		out = append(out, w)
	}
	return append(out, n.fc1, n.fc2)
}

// Fwd wires the forward pass for x, shape (batch, 1, 2*MelBands, TimeFrames),
// and returns the (batch, classes) probability node. An input whose spatial
// extent does not collapse to the width the fully-connected layer was built
// for fails here with a dimension mismatch.
func (n *Network) Fwd(x *gorgonia.Node) (*gorgonia.Node, error) {
	out := x
	for i, w := range n.conv {
		c, err := gorgonia.Conv2d(out, w, tensor.Shape{3, 3}, []int{2, 2}, []int{1, 1}, []int{1, 1})
		if err != nil {
			return nil, fmt.Errorf("conv stage %d failed: %v", i, err)
		}
		a, err := gorgonia.Rectify(c)
		if err != nil {
			return nil, fmt.Errorf("relu stage %d failed: %v", i, err)
		}
		p, err := gorgonia.MaxPool2D(a, tensor.Shape{2, 2}, []int{0, 0}, []int{2, 2})
		if err != nil {
			return nil, fmt.Errorf("pool stage %d failed: %v", i, err)
		}
		out = p
	}

	batch := out.Shape()[0]
	flat := out.Shape().TotalSize() / batch
	if flat != n.flat {
		return nil, fmt.Errorf("dimension mismatch: conv output flattens to %d, fully-connected layer expects %d", flat, n.flat)
	}

	r, err := gorgonia.Reshape(out, tensor.Shape{batch, flat})
	if err != nil {
		return nil, fmt.Errorf("flatten failed: %v", err)
	}

	h, err := gorgonia.Mul(r, n.fc1)
	if err != nil {
		return nil, fmt.Errorf("fc1 failed: %v", err)
	}
	hAct, err := gorgonia.Rectify(h)
	if err != nil {
		return nil, fmt.Errorf("fc1 relu failed: %v", err)
	}
	logits, err := gorgonia.Mul(hAct, n.fc2)
	if err != nil {
		return nil, fmt.Errorf("fc2 failed: %v", err)
	}
	prob, err := gorgonia.Sigmoid(logits)
	if err != nil {
		return nil, fmt.Errorf("sigmoid failed: %v", err)
	}
	return prob, nil
}

// Predict runs a standalone forward pass over x with the current weight
// values on a fresh graph, returning per-example probabilities. Deterministic
// for fixed weights.
func (n *Network) Predict(x *tensor.Dense) ([]float64, error) {
	g := gorgonia.NewGraph()

	xNode := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(x.Shape()...),
		gorgonia.WithValue(x),
		gorgonia.WithName("x"))

	clone := &Network{g: g, flat: n.flat, classes: n.classes}
	for i, w := range n.conv {
		clone.conv[i] = gorgonia.NewTensor(g, tensor.Float64, 4,
			gorgonia.WithShape(w.Shape()...),
			gorgonia.WithValue(w.Value()),
			gorgonia.WithName(fmt.Sprintf("conv%d", i)))
	}
	clone.fc1 = gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(n.fc1.Shape()...),
		gorgonia.WithValue(n.fc1.Value()),
		gorgonia.WithName("fc1"))
	clone.fc2 = gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(n.fc2.Shape()...),
		gorgonia.WithValue(n.fc2.Value()),
		gorgonia.WithName("fc2"))

	prob, err := clone.Fwd(xNode)
	if err != nil {
		return nil, err
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()

	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward pass failed: %v", err)
	}
	return valueFloats(prob.Value()), nil
}

// valueFloats flattens a scalar or dense value into a float64 slice.
func valueFloats(v gorgonia.Value) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return data
	case float64:
		return []float64{data}
	default:
		return nil
	}
}
