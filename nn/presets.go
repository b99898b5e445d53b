package nn

import (
	"fmt"
	"sort"
	"strings"

	"sewresnet/nn/layers"
)

type datasetInfo struct {
	classes  int
	channels []int
}

var datasets = map[string]datasetInfo{
	"cifar10dvs": {classes: 10, channels: []int{64, 64, 64, 64, 128, 128, 128}},
	"dvsgesture": {classes: 11, channels: []int{32, 32, 32, 32, 32, 32, 32}},
}

// models maps a model name to the residual block kind of its stages.
var models = map[string]BlockKind{
	"SEWResNet":     layers.BlockSEW,
	"PlainNet":      layers.BlockPlain,
	"SpikingResNet": layers.BlockBasic,
}

// Models returns the registered model names in sorted order.
func Models() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NumClasses returns the class count of a dataset.
func NumClasses(dataset string) (int, error) {
	info, ok := datasets[strings.ToLower(dataset)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown dataset %q", ErrConfiguration, dataset)
	}
	return info.classes, nil
}

// PresetLayers returns the stage list of a model on a dataset: each stage maps
// to its channel count with a 1x1 spiking unit, runs one residual block and
// halves the spatial size.
func PresetLayers(model, dataset string) ([]LayerSpec, error) {
	kind, ok := models[model]
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q (have %s)", ErrConfiguration, model, strings.Join(Models(), ", "))
	}
	info, ok := datasets[strings.ToLower(dataset)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dataset %q", ErrConfiguration, dataset)
	}
	specs := make([]LayerSpec, len(info.channels))
	for i, c := range info.channels {
		specs[i] = LayerSpec{Channels: c, UpKernelSize: 1, NumBlocks: 1, BlockKind: kind, PoolKernel: 2}
	}
	return specs, nil
}

// NewPreset builds a registered model for a dataset. fusion is only used by
// models with SEW blocks.
func NewPreset(model, dataset string, fusion Fusion, opts ...Option) (*Network, error) {
	specs, err := PresetLayers(model, dataset)
	if err != nil {
		return nil, err
	}
	classes, err := NumClasses(dataset)
	if err != nil {
		return nil, err
	}
	return NewResNetN(specs, classes, fusion, opts...)
}
