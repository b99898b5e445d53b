package optim

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"sewresnet/nn"
	"sewresnet/tensor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func param(t *testing.T, path string, data ...float64) nn.Param {
	t.Helper()
	v, err := tensor.NewWithData(data)
	require.NoError(t, err)
	return nn.Param{Path: path, Value: v}
}

func grad(t *testing.T, data ...float64) *tensor.Tensor {
	t.Helper()
	g, err := tensor.NewWithData(data)
	require.NoError(t, err)
	return g
}

func TestSGDMomentum(t *testing.T) {
	p := param(t, "w", 1, 2)
	opt := NewSGD(0.1, 0.9)
	grads := map[string]*tensor.Tensor{"w": grad(t, 1, -1)}

	require.NoError(t, opt.Step([]nn.Param{p}, grads))
	assert.InDeltaSlice(t, []float64{0.9, 2.1}, p.Value.Data, 1e-12)

	// buf = 0.9*buf + g = 1.9
	require.NoError(t, opt.Step([]nn.Param{p}, grads))
	assert.InDeltaSlice(t, []float64{0.71, 2.29}, p.Value.Data, 1e-12)
}

func TestSGDSkipsBuffersAndMissingGrads(t *testing.T) {
	p := param(t, "w", 1)
	b := param(t, "bn.running_mean", 1)
	b.Buffer = true
	opt := NewSGD(1, 0)
	grads := map[string]*tensor.Tensor{"bn.running_mean": grad(t, 5)}
	require.NoError(t, opt.Step([]nn.Param{p, b}, grads))
	assert.Equal(t, 1.0, p.Value.Data[0])
	assert.Equal(t, 1.0, b.Value.Data[0])

	err := opt.Step([]nn.Param{p}, map[string]*tensor.Tensor{"w": grad(t, 1, 2)})
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))
}

func TestAdamFirstStep(t *testing.T) {
	p := param(t, "w", 0, 0)
	opt := NewAdam(0.01)
	require.NoError(t, opt.Step([]nn.Param{p}, map[string]*tensor.Tensor{"w": grad(t, 3, -0.5)}))
	// bias correction makes the first step lr * sign(g)
	assert.InDeltaSlice(t, []float64{-0.01, 0.01}, p.Value.Data, 1e-8)
}

func TestOptimizerStateRoundTrip(t *testing.T) {
	for _, name := range []string{"SGD", "Adam"} {
		a, err := NewOptimizer(name, 0.1, 0.9)
		require.NoError(t, err)
		b, err := NewOptimizer(name, 0.5, 0.9)
		require.NoError(t, err)

		pa, pb := param(t, "w", 1, 1), param(t, "w", 1, 1)
		grads := map[string]*tensor.Tensor{"w": grad(t, 0.3, -0.2)}
		require.NoError(t, a.Step([]nn.Param{pa}, grads))
		require.NoError(t, b.Step([]nn.Param{pb}, grads))
		pb.Value.Data = append([]float64(nil), pa.Value.Data...)

		raw, err := json.Marshal(a.State())
		require.NoError(t, err)
		var st State
		require.NoError(t, json.Unmarshal(raw, &st))
		require.NoError(t, b.LoadState(st), name)
		assert.Equal(t, 0.1, b.LR())

		require.NoError(t, a.Step([]nn.Param{pa}, grads))
		require.NoError(t, b.Step([]nn.Param{pb}, grads))
		assert.InDeltaSlice(t, pa.Value.Data, pb.Value.Data, 1e-12, name)
	}

	sgd := NewSGD(0.1, 0)
	assert.True(t, errors.Is(sgd.LoadState(State{Name: "Adam"}), nn.ErrConfiguration))
}

func TestNewOptimizerRejectsUnknown(t *testing.T) {
	_, err := NewOptimizer("RMSprop", 0.1, 0)
	assert.True(t, errors.Is(err, nn.ErrConfiguration))
	_, err = NewOptimizer("SGD", 0, 0)
	assert.True(t, errors.Is(err, nn.ErrConfiguration))
}

func TestStepLR(t *testing.T) {
	opt := NewSGD(1, 0)
	s, err := NewScheduler("StepLR", opt, 2, 0.1, 0)
	require.NoError(t, err)

	var lrs []float64
	for i := 0; i < 5; i++ {
		s.Step()
		lrs = append(lrs, opt.LR())
	}
	assert.InDeltaSlice(t, []float64{1, 0.1, 0.1, 0.01, 0.01}, lrs, 1e-12)
}

func TestCosALR(t *testing.T) {
	opt := NewAdam(0.1)
	s, err := NewScheduler("CosALR", opt, 0, 0, 4)
	require.NoError(t, err)

	var lrs []float64
	for i := 0; i < 4; i++ {
		s.Step()
		lrs = append(lrs, opt.LR())
	}
	want := []float64{
		0.05 * (1 + math.Cos(math.Pi/4)),
		0.05,
		0.05 * (1 + math.Cos(3*math.Pi/4)),
		0,
	}
	assert.InDeltaSlice(t, want, lrs, 1e-12)
}

func TestSchedulerResume(t *testing.T) {
	opt := NewSGD(1, 0)
	s, err := NewScheduler("StepLR", opt, 1, 0.5, 0)
	require.NoError(t, err)
	s.Step()
	s.Step()
	st := s.State()
	assert.Equal(t, SchedulerState{Name: "StepLR", BaseLR: 1, LastEpoch: 2}, st)

	fresh := NewSGD(1, 0)
	resumed, err := NewScheduler("StepLR", fresh, 1, 0.5, 0)
	require.NoError(t, err)
	require.NoError(t, resumed.LoadState(st))
	assert.InDelta(t, 0.25, fresh.LR(), 1e-12)

	resumed.Step()
	assert.InDelta(t, 0.125, fresh.LR(), 1e-12)

	cos, err := NewScheduler("CosALR", fresh, 0, 0, 10)
	require.NoError(t, err)
	assert.True(t, errors.Is(cos.LoadState(st), nn.ErrConfiguration))
}

func TestNewSchedulerRejectsUnknown(t *testing.T) {
	opt := NewSGD(1, 0)
	_, err := NewScheduler("OneCycle", opt, 1, 0.1, 1)
	assert.True(t, errors.Is(err, nn.ErrConfiguration))
	_, err = NewScheduler("StepLR", opt, 0, 0.1, 1)
	assert.True(t, errors.Is(err, nn.ErrConfiguration))
	_, err = NewScheduler("CosALR", opt, 1, 0.1, 0)
	assert.True(t, errors.Is(err, nn.ErrConfiguration))
}
