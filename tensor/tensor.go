package tensor

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is wrapped by every operation that rejects incompatible shapes.
var ErrShapeMismatch = errors.New("shape mismatch")

// Tensor is a simple n-D array backed by a flat row-major []float64.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a zeroed Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	return &Tensor{
		Data:  make([]float64, Numel(shape)),
		Shape: append([]int(nil), shape...),
	}
}

// NewWithData creates a tensor of the given shape over a copy of data.
func NewWithData(data []float64, shape ...int) (*Tensor, error) {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	if Numel(shape) != len(data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), shape)
	}
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: append([]int(nil), shape...),
	}, nil
}

// Numel returns the number of elements described by shape.
func Numel(shape []int) int {
	total := 1
	for _, d := range shape {
		total *= d
	}
	return total
}

// Len returns the number of elements in t.
func (t *Tensor) Len() int { return len(t.Data) }

// Clone returns a deep copy of t.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), t.Data...),
		Shape: append([]int(nil), t.Shape...),
	}
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *Tensor) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

func checkSame(op string, a, b *Tensor) error {
	if !SameShape(a, b) {
		return fmt.Errorf("%s: %w: %v vs %v", op, ErrShapeMismatch, a.Shape, b.Shape)
	}
	return nil
}

// Add returns a+b (same shape), or error if shapes differ.
func Add(a, b *Tensor) (*Tensor, error) {
	if err := checkSame("Add", a, b); err != nil {
		return nil, err
	}
	out := New(a.Shape...)
	floats.AddTo(out.Data, a.Data, b.Data)
	return out, nil
}

// Mul returns the element-wise product a*b.
func Mul(a, b *Tensor) (*Tensor, error) {
	if err := checkSame("Mul", a, b); err != nil {
		return nil, err
	}
	out := New(a.Shape...)
	floats.MulTo(out.Data, a.Data, b.Data)
	return out, nil
}

// Map returns a new tensor with f applied to every element of a.
func Map(a *Tensor, f func(float64) float64) *Tensor {
	out := New(a.Shape...)
	for i, v := range a.Data {
		out.Data[i] = f(v)
	}
	return out
}

// MatMul returns a×b (2-D only), or error if dims mismatch.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2-D tensors, got %v and %v", a.Shape, b.Shape)
	}
	r, k := a.Shape[0], a.Shape[1]
	k2, c := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("MatMul: %w: inner dimensions %d vs %d", ErrShapeMismatch, k, k2)
	}
	out := New(r, c)
	dst := mat.NewDense(r, c, out.Data)
	dst.Mul(mat.NewDense(r, k, a.Data), mat.NewDense(k2, c, b.Data))
	return out, nil
}

// Reshape returns a view of t with a new shape sharing the same data.
// A single -1 dimension is inferred from the remaining ones.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	shape = append([]int(nil), shape...)
	infer := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if infer >= 0 {
				return nil, fmt.Errorf("Reshape: more than one inferred dimension in %v", shape)
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || len(t.Data)%known != 0 {
			return nil, fmt.Errorf("Reshape: %w: cannot infer %v from %v", ErrShapeMismatch, shape, t.Shape)
		}
		shape[infer] = len(t.Data) / known
	}
	if Numel(shape) != len(t.Data) {
		return nil, fmt.Errorf("Reshape: %w: %v to %v", ErrShapeMismatch, t.Shape, shape)
	}
	return &Tensor{Data: t.Data, Shape: shape}, nil
}

// SwapLeading returns a copy of t with its first two dimensions exchanged,
// e.g. [N, T, ...] -> [T, N, ...].
func SwapLeading(t *Tensor) (*Tensor, error) {
	if len(t.Shape) < 2 {
		return nil, fmt.Errorf("SwapLeading: %w: need at least 2 dims, got %v", ErrShapeMismatch, t.Shape)
	}
	a, b := t.Shape[0], t.Shape[1]
	inner := Numel(t.Shape[2:])
	shape := append([]int{b, a}, t.Shape[2:]...)
	out := New(shape...)
	for i := 0; i < a; i++ {
		for j := 0; j < b; j++ {
			copy(out.Data[(j*a+i)*inner:(j*a+i+1)*inner], t.Data[(i*b+j)*inner:(i*b+j+1)*inner])
		}
	}
	return out, nil
}

// MeanLeading averages t over its first dimension: [T, ...] -> [...].
func MeanLeading(t *Tensor) (*Tensor, error) {
	if len(t.Shape) < 2 {
		return nil, fmt.Errorf("MeanLeading: %w: need at least 2 dims, got %v", ErrShapeMismatch, t.Shape)
	}
	steps := t.Shape[0]
	out := New(t.Shape[1:]...)
	inner := len(out.Data)
	for s := 0; s < steps; s++ {
		floats.Add(out.Data, t.Data[s*inner:(s+1)*inner])
	}
	floats.Scale(1/float64(steps), out.Data)
	return out, nil
}

// Slice returns a view of the i-th entry along the first dimension.
func (t *Tensor) Slice(i int) *Tensor {
	inner := Numel(t.Shape[1:])
	return &Tensor{Data: t.Data[i*inner : (i+1)*inner], Shape: append([]int(nil), t.Shape[1:]...)}
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 { return floats.Sum(t.Data) }

func (t *Tensor) offset(op string, indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("%s: expected %d indices, got %d", op, len(t.Shape), len(indices)))
	}
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("%s: index %d out of bounds for dimension %d (shape: %v)", op, indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}

// At returns the element at the given indices.
// For a 4D tensor [a, b, c, d], At(i, j, k, l) returns the element at position [i][j][k][l].
func (t *Tensor) At(indices ...int) float64 {
	return t.Data[t.offset("At", indices)]
}

// Set sets the element at the given indices to the given value.
func (t *Tensor) Set(value float64, indices ...int) {
	t.Data[t.offset("Set", indices)] = value
}
