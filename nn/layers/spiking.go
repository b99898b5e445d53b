package layers

import (
	"fmt"

	"sewresnet/tensor"

	"golang.org/x/exp/rand"
)

// ConvBN is a convolution followed by batch normalization, shared across time steps.
type ConvBN struct {
	Conv *Conv2D
	BN   *BatchNorm2d
}

// NewConvBN builds a size-preserving conv+BN stage; kernel must be 1 or 3.
func NewConvBN(inChan, outChan, kernel int) (*ConvBN, error) {
	var pad int
	switch kernel {
	case 1:
		pad = 0
	case 3:
		pad = 1
	default:
		return nil, fmt.Errorf("%w: unsupported kernel size %d (want 1 or 3)", ErrConfiguration, kernel)
	}
	return &ConvBN{Conv: NewConv2D(inChan, outChan, kernel, pad), BN: NewBatchNorm2d(outChan)}, nil
}

// ForwardSeq applies conv+BN to every step of a [T, N, C, H, W] tensor.
func (cb *ConvBN) ForwardSeq(x *tensor.Tensor) (*tensor.Tensor, error) {
	return perStep(x, func(in *tensor.Tensor) (*tensor.Tensor, error) {
		out, err := cb.Conv.ForwardPlain(in)
		if err != nil {
			return nil, err
		}
		return cb.BN.ForwardPlain(out)
	})
}

func (cb *ConvBN) Params(prefix string) []Param {
	return append(cb.Conv.Params(join(prefix, "conv")), cb.BN.Params(join(prefix, "bn"))...)
}

// SpikingUnit is conv+BN followed by a parametric LIF neuron. Its spikes are
// both the output activation and the unit's log entry.
type SpikingUnit struct {
	Layer *ConvBN
	SN    *ParametricLIF
}

// NewSpikingUnit builds a unit with a 1x1 or 3x3 kernel and tau initialized to 2.
func NewSpikingUnit(inChan, outChan, kernel int, src rand.Source) (*SpikingUnit, error) {
	layer, err := NewConvBN(inChan, outChan, kernel)
	if err != nil {
		return nil, err
	}
	layer.Conv.Init(src)
	return &SpikingUnit{Layer: layer, SN: NewParametricLIF(2.0, true)}, nil
}

func (u *SpikingUnit) Forward(s State) (State, error) {
	out, err := u.Layer.ForwardSeq(s.X)
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", u.Tag(), err)
	}
	spikes, err := u.SN.ForwardSeq(out)
	if err != nil {
		return State{}, err
	}
	return State{X: spikes, Log: append(s.Log, spikes)}, nil
}

func (u *SpikingUnit) Params(prefix string) []Param {
	return append(u.Layer.Params(join(prefix, "layer")), u.SN.Params(join(prefix, "sn"))...)
}

func (u *SpikingUnit) Reset() { u.SN.Reset() }

func (u *SpikingUnit) Tag() string {
	return fmt.Sprintf("SpikingUnit[%s,BN,%s]", u.Layer.Conv.Tag(), u.SN.Tag())
}
