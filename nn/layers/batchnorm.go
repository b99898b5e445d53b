package layers

import (
	"fmt"
	"math"

	"sewresnet/tensor"
)

// BatchNorm2d normalizes each channel with its running statistics.
type BatchNorm2d struct {
	channels int
	Eps      float64

	// affine parameters: [channels]
	Weight, Bias *tensor.Tensor

	// running statistics: [channels]
	RunningMean, RunningVar *tensor.Tensor
}

// NewBatchNorm2d returns an identity-initialized normalization layer.
func NewBatchNorm2d(channels int) *BatchNorm2d {
	bn := &BatchNorm2d{
		channels:    channels,
		Eps:         1e-5,
		Weight:      tensor.New(channels),
		Bias:        tensor.New(channels),
		RunningMean: tensor.New(channels),
		RunningVar:  tensor.New(channels),
	}
	for i := 0; i < channels; i++ {
		bn.Weight.Data[i] = 1
		bn.RunningVar.Data[i] = 1
	}
	return bn
}

// ForwardPlain applies y = (x-mean)/sqrt(var+eps)*weight + bias on a [batch, C, H, W] input.
func (bn *BatchNorm2d) ForwardPlain(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 4 || x.Shape[1] != bn.channels {
		return nil, fmt.Errorf("BatchNorm2d: %w: expected [N, %d, H, W], got %v", tensor.ErrShapeMismatch, bn.channels, x.Shape)
	}
	out := tensor.New(x.Shape...)
	plane := x.Shape[2] * x.Shape[3]
	for b := 0; b < x.Shape[0]; b++ {
		for c := 0; c < bn.channels; c++ {
			scale := bn.Weight.Data[c] / math.Sqrt(bn.RunningVar.Data[c]+bn.Eps)
			shift := bn.Bias.Data[c] - bn.RunningMean.Data[c]*scale
			off := (b*bn.channels + c) * plane
			for i := off; i < off+plane; i++ {
				out.Data[i] = x.Data[i]*scale + shift
			}
		}
	}
	return out, nil
}

func (bn *BatchNorm2d) Params(prefix string) []Param {
	return []Param{
		{Path: join(prefix, "weight"), Value: bn.Weight},
		{Path: join(prefix, "bias"), Value: bn.Bias},
		{Path: join(prefix, "running_mean"), Value: bn.RunningMean, Buffer: true},
		{Path: join(prefix, "running_var"), Value: bn.RunningVar, Buffer: true},
	}
}
