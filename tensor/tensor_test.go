package tensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	if len(t1.Data) != 6 {
		t.Fatalf("expected 6 elements, got %d", len(t1.Data))
	}
	if len(t1.Shape) != 2 || t1.Shape[0] != 2 || t1.Shape[1] != 3 {
		t.Fatalf("unexpected shape: %v", t1.Shape)
	}
}

func TestAdd(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{3}}
	b := &Tensor{Data: []float64{4, 5, 6}, Shape: []int{3}}
	c, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{5, 7, 9}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestAddShapeMismatch(t *testing.T) {
	_, err := Add(New(3), New(2, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestMul(t *testing.T) {
	a := &Tensor{Data: []float64{1, 0, 2}, Shape: []int{3}}
	b := &Tensor{Data: []float64{0.5, 3, 4}, Shape: []int{3}}
	c, err := Mul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0, 8}, c.Data)
}

func TestMatMul(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3, 4}, Shape: []int{2, 2}}
	b := &Tensor{Data: []float64{5, 6, 7, 8}, Shape: []int{2, 2}}
	c, err := MatMul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{19, 22, 43, 50}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestMatMulInnerMismatch(t *testing.T) {
	_, err := MatMul(New(2, 3), New(2, 3))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestReshapeSharesData(t *testing.T) {
	a := New(2, 3, 4)
	b, err := a.Reshape(6, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 4}, b.Shape)
	b.Data[5] = 7
	assert.Equal(t, 7.0, a.Data[5])

	_, err = a.Reshape(5, -1)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSwapLeading(t *testing.T) {
	// [N=2, T=3, 1]
	a, err := NewWithData([]float64{0, 1, 2, 10, 11, 12}, 2, 3, 1)
	require.NoError(t, err)
	b, err := SwapLeading(a)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, b.Shape)
	assert.Equal(t, []float64{0, 10, 1, 11, 2, 12}, b.Data)
	assert.Equal(t, a.At(1, 2, 0), b.At(2, 1, 0))
}

func TestMeanLeading(t *testing.T) {
	a, err := NewWithData([]float64{1, 2, 3, 5, 6, 7}, 2, 3)
	require.NoError(t, err)
	m, err := MeanLeading(a)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, m.Shape)
	assert.InDeltaSlice(t, []float64{3, 4, 5}, m.Data, 1e-12)
}

func TestAtSet(t *testing.T) {
	a := New(2, 3)
	a.Set(4, 1, 2)
	assert.Equal(t, 4.0, a.At(1, 2))
	assert.Equal(t, 4.0, a.Data[5])
	assert.Panics(t, func() { a.At(2, 0) })
}

func TestSliceAndSum(t *testing.T) {
	a, err := NewWithData([]float64{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 7.0, a.Slice(1).Sum())
	assert.Equal(t, 10.0, a.Sum())
}
