package nn

import (
	"strconv"
	"strings"

	"sewresnet/nn/layers"
)

// Unit, State and Param are re-exported so callers assembling networks only
// need this package.
type (
	Unit  = layers.Unit
	State = layers.State
	Param = layers.Param
)

// ErrConfiguration marks an invalid network description.
var ErrConfiguration = layers.ErrConfiguration

// Sequential chains multiple Units in order. The i-th unit's parameters are
// rooted at "<prefix>.<i>".
type Sequential struct {
	Layers []Unit
}

// Forward applies each layer in sequence, threading the spike log.
func (s *Sequential) Forward(st State) (State, error) {
	var err error
	for _, layer := range s.Layers {
		st, err = layer.Forward(st)
		if err != nil {
			return State{}, err
		}
	}
	return st, nil
}

// Reset clears the neuron state of every layer.
func (s *Sequential) Reset() {
	for _, layer := range s.Layers {
		layer.Reset()
	}
}

func (s *Sequential) Params(prefix string) []Param {
	var params []Param
	for i, layer := range s.Layers {
		params = append(params, layer.Params(indexPath(prefix, i))...)
	}
	return params
}

func (s *Sequential) Tag() string {
	tags := make([]string, len(s.Layers))
	for i, layer := range s.Layers {
		tags[i] = layer.Tag()
	}
	return "Sequential(" + strings.Join(tags, ", ") + ")"
}

func indexPath(prefix string, i int) string {
	if prefix == "" {
		return strconv.Itoa(i)
	}
	return prefix + "." + strconv.Itoa(i)
}
