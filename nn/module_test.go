package nn

import (
	"errors"
	"testing"

	"sewresnet/tensor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dummy unit: adds a constant and logs its output
type addUnit struct {
	c      float64
	w      *tensor.Tensor
	resets int
}

func (u *addUnit) Forward(s State) (State, error) {
	out := tensor.Map(s.X, func(v float64) float64 { return v + u.c })
	return State{X: out, Log: append(s.Log, out)}, nil
}
func (u *addUnit) Params(prefix string) []Param {
	return []Param{{Path: prefix + ".w", Value: u.w}}
}
func (u *addUnit) Reset()      { u.resets++ }
func (u *addUnit) Tag() string { return "add" }

// dummy unit: error on forward
type errUnit struct{}

func (errUnit) Forward(State) (State, error) { return State{}, errors.New("fail") }
func (errUnit) Params(string) []Param        { return nil }
func (errUnit) Reset()                       {}
func (errUnit) Tag() string                  { return "err" }

func TestSequentialForward(t *testing.T) {
	a := tensor.New(1)
	a.Data[0] = 1
	seq := &Sequential{Layers: []Unit{&addUnit{c: 2, w: tensor.New(1)}, &addUnit{c: 3, w: tensor.New(2)}}}
	out, err := seq.Forward(State{X: a})
	require.NoError(t, err)
	assert.Equal(t, 6.0, out.X.Data[0])
	require.Len(t, out.Log, 2)
	assert.Equal(t, 3.0, out.Log[0].Data[0])
	assert.Same(t, out.X, out.Log[1])
}

func TestSequentialParamsAndReset(t *testing.T) {
	u0, u1 := &addUnit{w: tensor.New(1)}, &addUnit{w: tensor.New(1)}
	seq := &Sequential{Layers: []Unit{u0, errUnit{}, u1}}

	var paths []string
	for _, p := range seq.Params("conv") {
		paths = append(paths, p.Path)
	}
	assert.Equal(t, []string{"conv.0.w", "conv.2.w"}, paths)
	assert.Equal(t, "Sequential(add, err, add)", seq.Tag())

	seq.Reset()
	assert.Equal(t, 1, u0.resets)
	assert.Equal(t, 1, u1.resets)
}

func TestSequentialError(t *testing.T) {
	seq := &Sequential{Layers: []Unit{&addUnit{c: 1}, errUnit{}}}
	_, err := seq.Forward(State{X: tensor.New(1)})
	assert.Error(t, err)
}
