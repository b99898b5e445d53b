package bench

import (
	"sewresnet/nn"
	"sewresnet/nn/layers"
)

// BuiltNet holds a named network ready for timing.
type BuiltNet struct {
	Name string
	Net  *nn.Network
}

// BuildPresets builds every registered model for a dataset at the given frame
// size. SEW models use fusion.
func BuildPresets(dataset string, fusion layers.Fusion, inputSize int) ([]BuiltNet, error) {
	var nets []BuiltNet
	for _, name := range nn.Models() {
		net, err := nn.NewPreset(name, dataset, fusion, nn.WithInputSize(inputSize, inputSize))
		if err != nil {
			return nil, err
		}
		nets = append(nets, BuiltNet{Name: name + "/" + dataset, Net: net})
	}
	return nets, nil
}
