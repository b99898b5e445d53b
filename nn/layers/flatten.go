package layers

import (
	"fmt"

	"sewresnet/tensor"
)

// FlattenUnit collapses every dimension after time and batch:
// [T, N, C, H, W] -> [T, N, C*H*W]. The spike log passes through.
type FlattenUnit struct{}

func NewFlatten() *FlattenUnit { return &FlattenUnit{} }

func (f *FlattenUnit) Forward(s State) (State, error) {
	if len(s.X.Shape) < 2 {
		return State{}, fmt.Errorf("Flatten: %w: expected [T, N, ...], got %v", tensor.ErrShapeMismatch, s.X.Shape)
	}
	out, err := s.X.Reshape(s.X.Shape[0], s.X.Shape[1], -1)
	if err != nil {
		return State{}, err
	}
	return State{X: out, Log: s.Log}, nil
}

func (f *FlattenUnit) Params(string) []Param { return nil }
func (f *FlattenUnit) Reset()                {}
func (f *FlattenUnit) Tag() string           { return "Flatten" }
