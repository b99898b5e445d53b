package layers

import (
	"fmt"
	"math"

	"sewresnet/tensor"
)

// ParametricLIF is a multi-step leaky integrate-and-fire neuron whose decay
// 1/tau = sigmoid(w) is a learnable parameter. The membrane potential is kept
// across calls until Reset.
type ParametricLIF struct {
	W *tensor.Tensor // [1]

	VThreshold float64
	VReset     float64
	// DetachReset excludes the reset term from gradient flow. Forward spikes
	// are identical either way.
	DetachReset bool

	v []float64
}

// NewParametricLIF returns a neuron with sigmoid(w) = 1/initTau.
func NewParametricLIF(initTau float64, detachReset bool) *ParametricLIF {
	w := tensor.New(1)
	w.Data[0] = -math.Log(initTau - 1)
	return &ParametricLIF{
		W:           w,
		VThreshold:  1.0,
		VReset:      0.0,
		DetachReset: detachReset,
	}
}

// Tau returns the current membrane time constant.
func (n *ParametricLIF) Tau() float64 {
	return 1 / sigmoid(n.W.Data[0])
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// ForwardSeq integrates a time-major [T, ...] input and returns binary spikes of
// the same shape.
func (n *ParametricLIF) ForwardSeq(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) < 2 || x.Shape[0] == 0 {
		return nil, fmt.Errorf("ParametricLIF: %w: expected [T, ...] with T > 0, got %v", tensor.ErrShapeMismatch, x.Shape)
	}
	steps := x.Shape[0]
	inner := len(x.Data) / steps
	if n.v == nil {
		n.v = make([]float64, inner)
		for i := range n.v {
			n.v[i] = n.VReset
		}
	} else if len(n.v) != inner {
		return nil, fmt.Errorf("ParametricLIF: %w: membrane holds %d neurons, input step has %d; call Reset between unrelated batches",
			tensor.ErrShapeMismatch, len(n.v), inner)
	}

	decay := sigmoid(n.W.Data[0])
	out := tensor.New(x.Shape...)
	for t := 0; t < steps; t++ {
		in := x.Data[t*inner : (t+1)*inner]
		spikes := out.Data[t*inner : (t+1)*inner]
		for i, xi := range in {
			v := n.v[i] + (xi-(n.v[i]-n.VReset))*decay
			if v >= n.VThreshold {
				spikes[i] = 1
				v = n.VReset
			}
			n.v[i] = v
		}
	}
	return out, nil
}

// Reset clears the membrane potential.
func (n *ParametricLIF) Reset() { n.v = nil }

func (n *ParametricLIF) Params(prefix string) []Param {
	return []Param{{Path: join(prefix, "w"), Value: n.W}}
}

func (n *ParametricLIF) Tag() string {
	return fmt.Sprintf("ParametricLIF(tau=%.3g,v_th=%g,detach_reset=%v)", n.Tau(), n.VThreshold, n.DetachReset)
}
