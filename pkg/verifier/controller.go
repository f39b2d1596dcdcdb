package verifier

import (
	"fmt"

	"github.com/echolab/voicepair/pkg/audio"
	"github.com/echolab/voicepair/pkg/dataset"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Controller owns the training graph and defines the per-batch step
// contracts. The three steps share one eval routine; only TrainingStep is
// followed by a gradient update, which the driver requests via Update.
type Controller struct {
	g   *gorgonia.ExprGraph
	net *Network

	x    *gorgonia.Node
	y    *gorgonia.Node
	out  *gorgonia.Node
	loss *gorgonia.Node

	vm     gorgonia.VM
	solver gorgonia.Solver
	sinks  []Sink

	batch   int
	classes int

	trainSteps int
	valSteps   int
	testSteps  int
}

// NewController builds the forward and backward graph for fixed-shape
// batches and constructs the configured solver. An unrecognized optimizer
// key fails here, before any data is touched.
func NewController(p Params, sinks ...Sink) (*Controller, error) {
	g := gorgonia.NewGraph()
	net := NewNetwork(g, p)

	x := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(p.BatchSize, 1, 2*audio.MelBands, audio.TimeFrames),
		gorgonia.WithName("x"))
	y := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(p.BatchSize, p.Classes),
		gorgonia.WithName("y"))

	out, err := net.Fwd(x)
	if err != nil {
		return nil, err
	}
	loss, err := BinaryCrossEntropy(out, y)
	if err != nil {
		return nil, err
	}
	if _, err := gorgonia.Grad(loss, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("failed to compute gradients: %v", err)
	}

	solver, err := NewSolver(p.Optimizer, p.LearnRate)
	if err != nil {
		return nil, err
	}

	return &Controller{
		g:       g,
		net:     net,
		x:       x,
		y:       y,
		out:     out,
		loss:    loss,
		vm:      gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(net.Learnables()...)),
		solver:  solver,
		sinks:   sinks,
		batch:   p.BatchSize,
		classes: p.Classes,
	}, nil
}

func (c *Controller) Network() *Network {
	return c.net
}

func (c *Controller) Close() error {
	return c.vm.Close()
}

func (c *Controller) emit(name string, step int, value float64) {
	for _, sink := range c.sinks {
		sink.Emit(name, step, value)
	}
}

// evalBatch runs the forward (and backward) pass for one batch and returns
// its binary cross-entropy loss and rounded-prediction accuracy.
func (c *Controller) evalBatch(b dataset.Batch) (float64, float64, error) {
	if b.Err != nil {
		return 0, 0, b.Err
	}
	if b.Size != c.batch {
		return 0, 0, fmt.Errorf("batch size %d does not match graph batch size %d", b.Size, c.batch)
	}

	labels := make([]float64, b.Size*c.classes)
	for i, v := range b.Y {
		for j := range c.classes {
			labels[i*c.classes+j] = v
		}
	}
	yVal := tensor.New(
		tensor.WithShape(b.Size, c.classes),
		tensor.WithBacking(labels))

	if err := gorgonia.Let(c.x, b.X); err != nil {
		return 0, 0, fmt.Errorf("failed to bind x: %v", err)
	}
	if err := gorgonia.Let(c.y, yVal); err != nil {
		return 0, 0, fmt.Errorf("failed to bind y: %v", err)
	}

	c.vm.Reset()
	if err := c.vm.RunAll(); err != nil {
		return 0, 0, fmt.Errorf("forward/backward pass failed: %v", err)
	}

	loss := c.loss.Value().Data().(float64)
	acc := accuracy(valueFloats(c.out.Value()), labels)
	return loss, acc, nil
}

// TrainingStep evaluates one batch and emits train_loss/train_acc. The
// returned loss is the driver's cue to call Update and apply the gradients.
func (c *Controller) TrainingStep(b dataset.Batch) (float64, error) {
	loss, acc, err := c.evalBatch(b)
	if err != nil {
		return 0, err
	}
	c.trainSteps++
	c.emit("train_loss", c.trainSteps, loss)
	c.emit("train_acc", c.trainSteps, acc)
	return loss, nil
}

// Update applies one solver step to the network's weights using the
// gradients of the last TrainingStep.
func (c *Controller) Update() error {
	return c.solver.Step(gorgonia.NodesToValueGrads(c.net.Learnables()))
}

// ValidationStep evaluates one batch and emits val_loss/val_acc. No weights
// are updated.
func (c *Controller) ValidationStep(b dataset.Batch) error {
	loss, acc, err := c.evalBatch(b)
	if err != nil {
		return err
	}
	c.valSteps++
	c.emit("val_loss", c.valSteps, loss)
	c.emit("val_acc", c.valSteps, acc)
	return nil
}

// TestStep evaluates one batch and emits test_loss/test_acc. No weights are
// updated.
func (c *Controller) TestStep(b dataset.Batch) error {
	loss, acc, err := c.evalBatch(b)
	if err != nil {
		return err
	}
	c.testSteps++
	c.emit("test_loss", c.testSteps, loss)
	c.emit("test_acc", c.testSteps, acc)
	return nil
}
