// Package optim holds the optimizers and learning-rate schedules whose state is
// carried in checkpoints.
package optim

import (
	"fmt"
	"math"

	"sewresnet/nn"
	"sewresnet/tensor"

	"gonum.org/v1/gonum/floats"
)

// State is the serializable state of an optimizer. Buffers are keyed by
// "<buffer>/<parameter path>".
type State struct {
	Name    string               `json:"name"`
	LR      float64              `json:"lr"`
	Steps   int                  `json:"steps"`
	Buffers map[string][]float64 `json:"buffers,omitempty"`
}

// Optimizer updates parameters from gradients keyed by parameter path. The
// evaluation driver never calls Step; it only carries the state through
// checkpoints.
type Optimizer interface {
	Step(params []nn.Param, grads map[string]*tensor.Tensor) error
	LR() float64
	SetLR(lr float64)
	State() State
	LoadState(s State) error
}

// NewOptimizer returns "SGD" (with momentum) or "Adam".
func NewOptimizer(name string, lr, momentum float64) (Optimizer, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("%w: learning rate must be positive, got %g", nn.ErrConfiguration, lr)
	}
	switch name {
	case "SGD":
		return NewSGD(lr, momentum), nil
	case "Adam":
		return NewAdam(lr), nil
	}
	return nil, fmt.Errorf("%w: unknown optimizer %q", nn.ErrConfiguration, name)
}

type buffers map[string][]float64

func (b buffers) get(kind, path string, n int) []float64 {
	key := kind + "/" + path
	buf, ok := b[key]
	if !ok {
		buf = make([]float64, n)
		b[key] = buf
	}
	return buf
}

func (b buffers) clone() map[string][]float64 {
	out := make(map[string][]float64, len(b))
	for k, v := range b {
		out[k] = append([]float64(nil), v...)
	}
	return out
}

// each calls f for every trainable parameter that has a gradient.
func each(params []nn.Param, grads map[string]*tensor.Tensor, f func(p nn.Param, g []float64)) error {
	for _, p := range params {
		if p.Buffer {
			continue
		}
		g, ok := grads[p.Path]
		if !ok {
			continue
		}
		if !tensor.SameShape(g, p.Value) {
			return fmt.Errorf("%s: %w: gradient %v for parameter %v", p.Path, tensor.ErrShapeMismatch, g.Shape, p.Value.Shape)
		}
		f(p, g.Data)
	}
	return nil
}

// SGD is stochastic gradient descent with heavy-ball momentum.
type SGD struct {
	lr, Momentum float64
	steps        int
	bufs         buffers
}

func NewSGD(lr, momentum float64) *SGD {
	return &SGD{lr: lr, Momentum: momentum, bufs: buffers{}}
}

func (o *SGD) Step(params []nn.Param, grads map[string]*tensor.Tensor) error {
	err := each(params, grads, func(p nn.Param, g []float64) {
		step := g
		if o.Momentum != 0 {
			key := "momentum/" + p.Path
			buf, seen := o.bufs[key]
			if !seen {
				buf = append([]float64(nil), g...)
				o.bufs[key] = buf
			} else {
				floats.Scale(o.Momentum, buf)
				floats.Add(buf, g)
			}
			step = buf
		}
		floats.AddScaled(p.Value.Data, -o.lr, step)
	})
	if err != nil {
		return err
	}
	o.steps++
	return nil
}

func (o *SGD) LR() float64      { return o.lr }
func (o *SGD) SetLR(lr float64) { o.lr = lr }

func (o *SGD) State() State {
	return State{Name: "SGD", LR: o.lr, Steps: o.steps, Buffers: o.bufs.clone()}
}

func (o *SGD) LoadState(s State) error {
	if s.Name != "SGD" {
		return fmt.Errorf("%w: cannot load %q state into SGD", nn.ErrConfiguration, s.Name)
	}
	o.lr, o.steps, o.bufs = s.LR, s.Steps, buffers(s.Buffers).clone()
	return nil
}

// Adam with the usual bias-corrected moment estimates.
type Adam struct {
	lr           float64
	Beta1, Beta2 float64
	Eps          float64
	steps        int
	bufs         buffers
}

func NewAdam(lr float64) *Adam {
	return &Adam{lr: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, bufs: buffers{}}
}

func (o *Adam) Step(params []nn.Param, grads map[string]*tensor.Tensor) error {
	t := float64(o.steps + 1)
	c1 := 1 - math.Pow(o.Beta1, t)
	c2 := 1 - math.Pow(o.Beta2, t)
	err := each(params, grads, func(p nn.Param, g []float64) {
		m := o.bufs.get("exp_avg", p.Path, len(g))
		v := o.bufs.get("exp_avg_sq", p.Path, len(g))
		for i, gi := range g {
			m[i] = o.Beta1*m[i] + (1-o.Beta1)*gi
			v[i] = o.Beta2*v[i] + (1-o.Beta2)*gi*gi
			p.Value.Data[i] -= o.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + o.Eps)
		}
	})
	if err != nil {
		return err
	}
	o.steps++
	return nil
}

func (o *Adam) LR() float64      { return o.lr }
func (o *Adam) SetLR(lr float64) { o.lr = lr }

func (o *Adam) State() State {
	return State{Name: "Adam", LR: o.lr, Steps: o.steps, Buffers: o.bufs.clone()}
}

func (o *Adam) LoadState(s State) error {
	if s.Name != "Adam" {
		return fmt.Errorf("%w: cannot load %q state into Adam", nn.ErrConfiguration, s.Name)
	}
	o.lr, o.steps, o.bufs = s.LR, s.Steps, buffers(s.Buffers).clone()
	return nil
}
