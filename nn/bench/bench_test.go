package bench

import (
	"bytes"
	"strings"
	"testing"

	"sewresnet/nn"
	"sewresnet/nn/layers"
	"sewresnet/tensor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeUnits(t *testing.T) {
	specs := []nn.LayerSpec{{Channels: 4, UpKernelSize: 1, NumBlocks: 1, BlockKind: layers.BlockBasic, PoolKernel: 2}}
	net, err := nn.NewResNetN(specs, 3, 0, nn.WithInputSize(8, 8))
	require.NoError(t, err)

	points, err := TimeUnits(BuiltNet{Name: "tiny", Net: net}, tensor.New(2, 3, 2, 8, 8), 2)
	require.NoError(t, err)
	// up unit, basic block, pool, flatten, classifier
	require.Len(t, points, 5)
	assert.Equal(t, []int{1, 2, 0, 0, 0}, []int{points[0].Spikes, points[1].Spikes, points[2].Spikes, points[3].Spikes, points[4].Spikes})
	assert.Equal(t, "Flatten", points[3].Unit)
	assert.Equal(t, Total(points), points[0].Fwd+points[1].Fwd+points[2].Fwd+points[3].Fwd+points[4].Fwd)

	var buf bytes.Buffer
	PrintTable(&buf, points)
	assert.Equal(t, 7, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "Fwd (us)")

	// membranes were reset, so a differently sized batch still runs
	_, err = TimeUnits(BuiltNet{Name: "tiny", Net: net}, tensor.New(1, 3, 2, 8, 8), 1)
	require.NoError(t, err)

	_, err = TimeUnits(BuiltNet{Name: "tiny", Net: net}, tensor.New(1, 3, 2, 16, 16), 1)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	_, err = TimeUnits(BuiltNet{Name: "tiny", Net: net}, tensor.New(1, 3, 2, 8, 8), 0)
	assert.Error(t, err)
}

func TestBuildPresets(t *testing.T) {
	nets, err := BuildPresets("dvsgesture", layers.FusionADD, 128)
	require.NoError(t, err)
	require.Len(t, nets, 3)
	assert.Equal(t, "PlainNet/dvsgesture", nets[0].Name)
	for _, b := range nets {
		assert.Equal(t, 11, b.Net.NumClasses())
	}

	_, err = BuildPresets("dvsgesture", layers.FusionADD, 64)
	assert.Error(t, err)
}
