package layers

import (
	"fmt"
	"math"

	"sewresnet/tensor"
)

// MaxPool2D takes the maximum over non-overlapping scale x scale windows.
type MaxPool2D struct {
	scale int
}

func NewMaxPool2D(scale int) *MaxPool2D { return &MaxPool2D{scale: scale} }

// OutputSize returns the pooled size of one spatial dimension.
func (p *MaxPool2D) OutputSize(in int) int { return in / p.scale }

// ForwardPlain pools a [batch, C, H, W] tensor into [batch, C, H/scale, W/scale].
// Trailing rows and columns that do not fill a window are dropped.
func (p *MaxPool2D) ForwardPlain(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("MaxPool2D: %w: input must be 4D, got %v", tensor.ErrShapeMismatch, x.Shape)
	}
	batch, ch, height, width := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	outH, outW := p.OutputSize(height), p.OutputSize(width)
	out := tensor.New(batch, ch, outH, outW)

	for b := 0; b < batch*ch; b++ {
		src := x.Data[b*height*width : (b+1)*height*width]
		dst := out.Data[b*outH*outW : (b+1)*outH*outW]
		for i := 0; i < outH; i++ {
			for j := 0; j < outW; j++ {
				max := math.Inf(-1)
				for yy := i * p.scale; yy < (i+1)*p.scale; yy++ {
					for xx := j * p.scale; xx < (j+1)*p.scale; xx++ {
						if v := src[yy*width+xx]; v > max {
							max = v
						}
					}
				}
				dst[i*outW+j] = max
			}
		}
	}
	return out, nil
}

// PoolUnit max-pools every time step and passes the spike log through.
type PoolUnit struct {
	Pool *MaxPool2D
}

func NewPoolUnit(scale int) *PoolUnit { return &PoolUnit{Pool: NewMaxPool2D(scale)} }

func (u *PoolUnit) Forward(s State) (State, error) {
	out, err := perStep(s.X, u.Pool.ForwardPlain)
	if err != nil {
		return State{}, err
	}
	return State{X: out, Log: s.Log}, nil
}

func (u *PoolUnit) Params(string) []Param { return nil }
func (u *PoolUnit) Reset()                {}
func (u *PoolUnit) Tag() string           { return fmt.Sprintf("MaxPool2D(%d)", u.Pool.scale) }
