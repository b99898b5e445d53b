package layers

import (
	"fmt"
	"math"

	"sewresnet/tensor"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Conv2D is a stride-1, bias-free 2D convolution with symmetric zero padding.
type Conv2D struct {
	inChan, outChan int // number of input/output channels
	k               int // square kernel size
	pad             int

	// weights: [outChan, inChan, k, k]
	W *tensor.Tensor
}

// NewConv2D creates a new Conv2D layer with zero weights.
func NewConv2D(inChan, outChan, k, pad int) *Conv2D {
	return &Conv2D{
		inChan:  inChan,
		outChan: outChan,
		k:       k,
		pad:     pad,
		W:       tensor.New(outChan, inChan, k, k),
	}
}

// Init draws weights from U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func (c *Conv2D) Init(src rand.Source) {
	fillUniform(c.W, c.inChan*c.k*c.k, src)
}

func fillUniform(t *tensor.Tensor, fanIn int, src rand.Source) {
	bound := 1 / math.Sqrt(float64(fanIn))
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	for i := range t.Data {
		t.Data[i] = dist.Rand()
	}
}

// GetOutputShape returns the spatial output size for an inH x inW input.
func (c *Conv2D) GetOutputShape(inH, inW int) (outH, outW int) {
	return inH + 2*c.pad - c.k + 1, inW + 2*c.pad - c.k + 1
}

// ForwardPlain convolves a [batch, inChan, H, W] input into [batch, outChan, H', W'].
// Each image is unfolded into columns and multiplied with the kernel matrix.
func (c *Conv2D) ForwardPlain(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("Conv2D: %w: input must be 4D, got %v", tensor.ErrShapeMismatch, input.Shape)
	}
	batch, ch, height, width := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	if ch != c.inChan {
		return nil, fmt.Errorf("Conv2D: %w: expected %d input channels, got %d", tensor.ErrShapeMismatch, c.inChan, ch)
	}
	outH, outW := c.GetOutputShape(height, width)
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("Conv2D: %w: input %dx%d too small for kernel %d", tensor.ErrShapeMismatch, height, width, c.k)
	}

	output := tensor.New(batch, c.outChan, outH, outW)
	rows := c.inChan * c.k * c.k
	kernel, err := c.W.Reshape(c.outChan, rows)
	if err != nil {
		return nil, err
	}
	cols := tensor.New(rows, outH*outW)
	inSize := c.inChan * height * width
	outSize := c.outChan * outH * outW

	for b := 0; b < batch; b++ {
		img := input.Data[b*inSize : (b+1)*inSize]
		c.im2col(img, height, width, outH, outW, cols.Data)
		prod, err := tensor.MatMul(kernel, cols)
		if err != nil {
			return nil, err
		}
		copy(output.Data[b*outSize:(b+1)*outSize], prod.Data)
	}
	return output, nil
}

// im2col fills cols, a row-major [inChan*k*k, outH*outW] matrix.
func (c *Conv2D) im2col(img []float64, height, width, outH, outW int, cols []float64) {
	for ic := 0; ic < c.inChan; ic++ {
		for dy := 0; dy < c.k; dy++ {
			for dx := 0; dx < c.k; dx++ {
				row := (ic*c.k+dy)*c.k + dx
				for y := 0; y < outH; y++ {
					iy := y + dy - c.pad
					for x := 0; x < outW; x++ {
						ix := x + dx - c.pad
						v := 0.0
						if iy >= 0 && iy < height && ix >= 0 && ix < width {
							v = img[(ic*height+iy)*width+ix]
						}
						cols[row*outH*outW+y*outW+x] = v
					}
				}
			}
		}
	}
}

func (c *Conv2D) Params(prefix string) []Param {
	return []Param{{Path: join(prefix, "weight"), Value: c.W}}
}

func (c *Conv2D) Tag() string {
	return fmt.Sprintf("Conv2D(%d->%d,k=%d,p=%d)", c.inChan, c.outChan, c.k, c.pad)
}
