package layers

import (
	"errors"
	"fmt"

	"sewresnet/tensor"
)

// ErrConfiguration marks an unrecognized kernel size, block kind or fusion policy.
var ErrConfiguration = errors.New("configuration error")

// State is the value threaded through a pipeline: the current activation and
// the spike tensors emitted so far, in forward order.
type State struct {
	X   *tensor.Tensor
	Log []*tensor.Tensor
}

// Param is one named parameter or buffer of a unit.
type Param struct {
	Path   string
	Value  *tensor.Tensor
	Buffer bool // running statistics, not trained
}

// Unit is one stage of a spiking pipeline.
type Unit interface {
	Forward(s State) (State, error)
	// Params lists the unit's tensors with paths rooted at prefix.
	Params(prefix string) []Param
	// Reset clears neuron membranes between unrelated sequences.
	Reset()
	Tag() string
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// perStep applies f to a time-major [T, N, ...] tensor with time and batch
// merged into a single leading axis, then splits them again.
func perStep(x *tensor.Tensor, f func(*tensor.Tensor) (*tensor.Tensor, error)) (*tensor.Tensor, error) {
	if len(x.Shape) < 3 {
		return nil, fmt.Errorf("%w: expected time-major input [T, N, ...], got %v", tensor.ErrShapeMismatch, x.Shape)
	}
	steps, batch := x.Shape[0], x.Shape[1]
	merged, err := x.Reshape(append([]int{steps * batch}, x.Shape[2:]...)...)
	if err != nil {
		return nil, err
	}
	out, err := f(merged)
	if err != nil {
		return nil, err
	}
	return out.Reshape(append([]int{steps, batch}, out.Shape[1:]...)...)
}
