package layers

import (
	"fmt"

	"sewresnet/tensor"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Linear is a fully-connected layer y = x·Wᵀ + b.
type Linear struct {
	W *tensor.Tensor // [outDim, inDim]
	B *tensor.Tensor // [outDim]
}

// NewLinear(inDim→outDim) with weights and bias drawn from U(-1/sqrt(inDim), 1/sqrt(inDim)).
func NewLinear(inDim, outDim int, src rand.Source) *Linear {
	l := &Linear{W: tensor.New(outDim, inDim), B: tensor.New(outDim)}
	fillUniform(l.W, inDim, src)
	fillUniform(l.B, inDim, src)
	return l
}

func (l *Linear) InDim() int  { return l.W.Shape[1] }
func (l *Linear) OutDim() int { return l.W.Shape[0] }

// ForwardPlain maps a [batch, inDim] input to [batch, outDim].
func (l *Linear) ForwardPlain(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 2 || x.Shape[1] != l.InDim() {
		return nil, fmt.Errorf("Linear: %w: expected [N, %d], got %v", tensor.ErrShapeMismatch, l.InDim(), x.Shape)
	}
	batch := x.Shape[0]
	out := tensor.New(batch, l.OutDim())
	if batch == 0 {
		return out, nil
	}
	dst := mat.NewDense(batch, l.OutDim(), out.Data)
	dst.Mul(mat.NewDense(batch, l.InDim(), x.Data), mat.NewDense(l.OutDim(), l.InDim(), l.W.Data).T())
	for i := 0; i < batch; i++ {
		row := out.Data[i*l.OutDim() : (i+1)*l.OutDim()]
		for j := range row {
			row[j] += l.B.Data[j]
		}
	}
	return out, nil
}

func (l *Linear) Params(prefix string) []Param {
	return []Param{
		{Path: join(prefix, "weight"), Value: l.W},
		{Path: join(prefix, "bias"), Value: l.B},
	}
}

func (l *Linear) Tag() string {
	return fmt.Sprintf("Linear(%d->%d)", l.InDim(), l.OutDim())
}
