package nn

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"sewresnet/nn/layers"
	"sewresnet/tensor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func randomFrames(seed uint64, shape ...int) *tensor.Tensor {
	rng := rand.New(rand.NewSource(seed))
	x := tensor.New(shape...)
	for i := range x.Data {
		if rng.Float64() < 0.3 {
			x.Data[i] = 1
		}
	}
	return x
}

func TestNewResNetN_SingleStagePlain(t *testing.T) {
	specs := []LayerSpec{{Channels: 4, UpKernelSize: 1, NumBlocks: 1, BlockKind: layers.BlockPlain}}
	net, err := NewResNetN(specs, 3, 0, WithInputSize(8, 8))
	require.NoError(t, err)

	logits, log, err := net.Forward(tensor.New(1, 5, 2, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, logits.Shape)
	for _, v := range logits.Data {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	// upsampling unit plus the two units of the plain block
	require.Len(t, log, 3)
	for _, s := range log {
		assert.Equal(t, []int{5, 1, 4, 8, 8}, s.Shape)
	}
}

func TestNewResNetN_LogLengthFromConfig(t *testing.T) {
	specs := []LayerSpec{
		{Channels: 4, UpKernelSize: 3, NumBlocks: 2, BlockKind: layers.BlockSEW, PoolKernel: 2},
		{Channels: 4, NumBlocks: 1, BlockKind: layers.BlockBasic},
		{Channels: 6, UpKernelSize: 1, MidChannels: 3, NumBlocks: 1, BlockKind: layers.BlockPlain, PoolKernel: 2},
		{Channels: 6, PoolKernel: 2},
	}
	net, err := NewResNetN(specs, 5, layers.FusionIAND, WithInputSize(16, 16), WithRandSource(rand.NewSource(1)))
	require.NoError(t, err)

	// 4 blocks of 2 entries each, 2 upsampling units
	want := 2*4 + 2
	for seed := uint64(0); seed < 3; seed++ {
		net.Reset()
		logits, log, err := net.Forward(randomFrames(seed, 2, 3, 2, 16, 16))
		require.NoError(t, err)
		assert.Equal(t, []int{2, 5}, logits.Shape)
		assert.Len(t, log, want)
	}
	net.Reset()
	_, log, err := net.Forward(tensor.New(2, 3, 2, 16, 16))
	require.NoError(t, err)
	assert.Len(t, log, want)
	assert.Equal(t, []int{3, 2, 3, 8, 8}, log[len(log)-2].Shape)
	assert.Equal(t, 2*2*6, net.Out.InDim())
}

func TestNewResNetN_ConfigurationErrors(t *testing.T) {
	var kind BlockKind
	require.Error(t, json.Unmarshal([]byte(`"bogus"`), &kind))

	cases := map[string][]LayerSpec{
		"missing block kind": {{Channels: 2, NumBlocks: 1}},
		"bad kind":           {{Channels: 2, NumBlocks: 1, BlockKind: BlockKind(42)}},
		"bad up kernel":      {{Channels: 4, UpKernelSize: 5}},
		"absent up kernel":   {{Channels: 4, NumBlocks: 1, BlockKind: layers.BlockPlain}},
		"zero channels":      {{Channels: 0}},
		"sew without fusion": {{Channels: 2, NumBlocks: 1, BlockKind: layers.BlockSEW}},
		"pooled away":        {{Channels: 2, PoolKernel: 256}},
	}
	for name, specs := range cases {
		net, err := NewResNetN(specs, 10, 0)
		assert.Nil(t, net, name)
		assert.True(t, errors.Is(err, ErrConfiguration), "%s: %v", name, err)
	}

	_, err := NewResNetN(nil, 0, 0)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestLayerSpec_JSON(t *testing.T) {
	var specs []LayerSpec
	err := json.Unmarshal([]byte(`[
		{"channels": 32, "up_kernel_size": 1, "num_blocks": 1, "block_type": "sew", "k_pool": 2},
		{"channels": 32, "mid_channels": 16}
	]`), &specs)
	require.NoError(t, err)
	assert.Equal(t, []LayerSpec{
		{Channels: 32, UpKernelSize: 1, NumBlocks: 1, BlockKind: layers.BlockSEW, PoolKernel: 2},
		{Channels: 32, MidChannels: 16},
	}, specs)

	err = json.Unmarshal([]byte(`[{"channels": 2, "num_blocks": 1, "block_type": "bogus"}]`), &specs)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestNetwork_ForwardShapeErrors(t *testing.T) {
	specs := []LayerSpec{{Channels: 4, UpKernelSize: 1, PoolKernel: 2}}
	net, err := NewResNetN(specs, 2, 0, WithInputSize(8, 8))
	require.NoError(t, err)

	_, _, err = net.Forward(tensor.New(1, 2, 8, 8))
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))

	_, _, err = net.Forward(tensor.New(1, 2, 3, 8, 8))
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))

	// no time steps
	_, _, err = net.Forward(tensor.New(1, 0, 2, 8, 8))
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))

	// classifier was sized for 8x8 frames
	net.Reset()
	_, _, err = net.Forward(tensor.New(1, 2, 2, 16, 16))
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))
}

func TestNetwork_Deterministic(t *testing.T) {
	specs := []LayerSpec{{Channels: 4, UpKernelSize: 3, NumBlocks: 1, BlockKind: layers.BlockSEW, PoolKernel: 2}}
	build := func() *Network {
		net, err := NewResNetN(specs, 4, layers.FusionADD, WithInputSize(8, 8))
		require.NoError(t, err)
		return net
	}
	x := randomFrames(3, 2, 4, 2, 8, 8)
	a, _, err := build().Forward(x)
	require.NoError(t, err)
	b, _, err := build().Forward(x)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestNetwork_StateDictRoundTrip(t *testing.T) {
	specs := []LayerSpec{{Channels: 4, UpKernelSize: 1, NumBlocks: 1, BlockKind: layers.BlockBasic, PoolKernel: 2}}
	src, err := NewResNetN(specs, 3, 0, WithInputSize(8, 8), WithRandSource(rand.NewSource(1)))
	require.NoError(t, err)
	dst, err := NewResNetN(specs, 3, 0, WithInputSize(8, 8), WithRandSource(rand.NewSource(2)))
	require.NoError(t, err)

	dict := src.StateDict()
	assert.Contains(t, dict, "conv.0.layer.conv.weight")
	assert.Contains(t, dict, "conv.1.conv.1.bn.running_var")
	assert.Contains(t, dict, "conv.1.sn.w")
	assert.Contains(t, dict, "out.bias")

	require.NoError(t, dst.LoadStateDict(dict))
	x := randomFrames(9, 1, 3, 2, 8, 8)
	a, _, err := src.Forward(x)
	require.NoError(t, err)
	b, _, err := dst.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)

	// copies, not aliases
	dict["out.bias"].Data[0] = 100
	assert.NotEqual(t, 100.0, src.Out.B.Data[0])
}

func TestNetwork_LoadStateDictRejectsMismatch(t *testing.T) {
	specs := []LayerSpec{{Channels: 4, UpKernelSize: 1, PoolKernel: 2}}
	net, err := NewResNetN(specs, 3, 0, WithInputSize(8, 8))
	require.NoError(t, err)

	dict := net.StateDict()
	delete(dict, "out.weight")
	assert.True(t, errors.Is(net.LoadStateDict(dict), ErrConfiguration))

	dict = net.StateDict()
	dict["conv.9.sn.w"] = tensor.New(1)
	assert.True(t, errors.Is(net.LoadStateDict(dict), ErrConfiguration))

	dict = net.StateDict()
	dict["out.bias"] = nil
	assert.True(t, errors.Is(net.LoadStateDict(dict), ErrConfiguration))

	dict = net.StateDict()
	dict["out.bias"] = tensor.New(7)
	assert.True(t, errors.Is(net.LoadStateDict(dict), tensor.ErrShapeMismatch))
}

func TestNetwork_Summary(t *testing.T) {
	specs := []LayerSpec{{Channels: 4, UpKernelSize: 1, PoolKernel: 2}}
	net, err := NewResNetN(specs, 3, 0, WithInputSize(8, 8))
	require.NoError(t, err)

	s := net.Summary()
	// conv 4*2, bn 4+4 (+8 buffers), plif 1, linear 64*3+3
	assert.Equal(t, 8+8+1+192+3, s.Trainable)
	assert.Equal(t, s.Trainable+8, s.Total)
	assert.Len(t, s.Units, 4)
	assert.Contains(t, s.String(), "Trainable: 212")
}
