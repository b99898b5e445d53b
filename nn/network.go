package nn

import (
	"fmt"
	"sort"
	"strings"

	"sewresnet/nn/layers"
	"sewresnet/tensor"

	"golang.org/x/exp/rand"
)

// DefaultSeed seeds parameter initialization when no source is supplied.
const DefaultSeed = 2020

// DefaultInputSize is the frame height and width the classifier width is derived from.
const DefaultInputSize = 128

// InputChannels is the polarity channel count of event frames.
const InputChannels = 2

type (
	Fusion    = layers.Fusion
	BlockKind = layers.BlockKind
)

// LayerSpec describes one stage of the network. Zero values mean "absent".
type LayerSpec struct {
	Channels     int       `json:"channels"`
	UpKernelSize int       `json:"up_kernel_size,omitempty"`
	MidChannels  int       `json:"mid_channels,omitempty"`
	NumBlocks    int       `json:"num_blocks,omitempty"`
	BlockKind    BlockKind `json:"block_type,omitempty"`
	PoolKernel   int       `json:"k_pool,omitempty"`
}

type options struct {
	src      rand.Source
	inH, inW int
}

// Option configures NewResNetN.
type Option func(*options)

// WithRandSource sets the source parameter initialization draws from.
func WithRandSource(src rand.Source) Option {
	return func(o *options) { o.src = src }
}

// WithInputSize sets the frame size used to derive the classifier input width.
func WithInputSize(height, width int) Option {
	return func(o *options) { o.inH, o.inW = height, width }
}

// Network is a spiking residual network followed by a linear classifier over
// the time-averaged features.
type Network struct {
	Conv   *Sequential
	Out    *layers.Linear
	Fusion Fusion

	inH, inW int
}

// NewResNetN assembles a network from a list of stages. Any invalid stage
// fails the whole construction.
func NewResNetN(specs []LayerSpec, numClasses int, fusion Fusion, opts ...Option) (*Network, error) {
	o := options{inH: DefaultInputSize, inW: DefaultInputSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		o.src = rand.NewSource(DefaultSeed)
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("%w: class count must be positive, got %d", ErrConfiguration, numClasses)
	}
	if o.inH <= 0 || o.inW <= 0 {
		return nil, fmt.Errorf("%w: invalid input size %dx%d", ErrConfiguration, o.inH, o.inW)
	}

	in := InputChannels
	h, w := o.inH, o.inW
	var units []Unit
	for i, spec := range specs {
		if spec.Channels <= 0 {
			return nil, fmt.Errorf("%w: layer %d: channels must be positive, got %d", ErrConfiguration, i, spec.Channels)
		}
		if spec.NumBlocks < 0 || spec.PoolKernel < 0 || spec.MidChannels < 0 {
			return nil, fmt.Errorf("%w: layer %d: negative field in %+v", ErrConfiguration, i, spec)
		}
		mid := spec.MidChannels
		if mid == 0 {
			mid = spec.Channels
		}

		if spec.Channels != in {
			if spec.UpKernelSize != 1 && spec.UpKernelSize != 3 {
				return nil, fmt.Errorf("%w: layer %d: up_kernel_size must be 1 or 3 to map %d to %d channels, got %d",
					ErrConfiguration, i, in, spec.Channels, spec.UpKernelSize)
			}
			up, err := layers.NewSpikingUnit(in, spec.Channels, spec.UpKernelSize, o.src)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			units = append(units, up)
			in = spec.Channels
		}

		for j := 0; j < spec.NumBlocks; j++ {
			block, err := layers.NewBlock(spec.BlockKind, in, mid, fusion, o.src)
			if err != nil {
				return nil, fmt.Errorf("layer %d block %d: %w", i, j, err)
			}
			units = append(units, block)
		}

		if spec.PoolKernel > 0 {
			pool := layers.NewPoolUnit(spec.PoolKernel)
			units = append(units, pool)
			h, w = pool.Pool.OutputSize(h), pool.Pool.OutputSize(w)
		}
	}
	units = append(units, layers.NewFlatten())

	if h == 0 || w == 0 {
		return nil, fmt.Errorf("%w: a %dx%d input is pooled to nothing", ErrConfiguration, o.inH, o.inW)
	}
	return &Network{
		Conv:   &Sequential{Layers: units},
		Out:    layers.NewLinear(h*w*in, numClasses, o.src),
		Fusion: fusion,
		inH:    o.inH,
		inW:    o.inW,
	}, nil
}

// Forward runs a batch of frame sequences [N, T, 2, H, W] and returns the
// class logits [N, classes] together with every spike tensor emitted, in
// forward order. Each spike tensor is [T, N, C, H, W].
func (n *Network) Forward(x *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor, error) {
	if len(x.Shape) != 5 || x.Shape[1] == 0 {
		return nil, nil, fmt.Errorf("Network: %w: expected [N, T, C, H, W] with T > 0, got %v", tensor.ErrShapeMismatch, x.Shape)
	}
	seq, err := tensor.SwapLeading(x)
	if err != nil {
		return nil, nil, err
	}
	st, err := n.Conv.Forward(State{X: seq, Log: []*tensor.Tensor{}})
	if err != nil {
		return nil, nil, err
	}
	feat, err := tensor.MeanLeading(st.X)
	if err != nil {
		return nil, nil, err
	}
	logits, err := n.Out.ForwardPlain(feat)
	if err != nil {
		return nil, nil, fmt.Errorf("classifier: %w", err)
	}
	return logits, st.Log, nil
}

// Reset clears every neuron's membrane potential.
func (n *Network) Reset() { n.Conv.Reset() }

// InputSize returns the frame size the classifier was sized for.
func (n *Network) InputSize() (height, width int) { return n.inH, n.inW }

// NumClasses returns the classifier output width.
func (n *Network) NumClasses() int { return n.Out.OutDim() }

// Parameters lists every parameter and buffer in a stable order.
func (n *Network) Parameters() []Param {
	return append(n.Conv.Params("conv"), n.Out.Params("out")...)
}

// StateDict returns copies of all parameters keyed by path.
func (n *Network) StateDict() map[string]*tensor.Tensor {
	params := n.Parameters()
	dict := make(map[string]*tensor.Tensor, len(params))
	for _, p := range params {
		dict[p.Path] = p.Value.Clone()
	}
	return dict
}

// LoadStateDict overwrites the network's parameters. Every path must be present
// with a matching shape and no unknown paths are accepted.
func (n *Network) LoadStateDict(dict map[string]*tensor.Tensor) error {
	params := n.Parameters()
	known := make(map[string]bool, len(params))
	var missing []string
	for _, p := range params {
		known[p.Path] = true
		v, ok := dict[p.Path]
		if !ok || v == nil {
			missing = append(missing, p.Path)
			continue
		}
		if !tensor.SameShape(v, p.Value) {
			return fmt.Errorf("%s: %w: have %v, checkpoint has %v", p.Path, tensor.ErrShapeMismatch, p.Value.Shape, v.Shape)
		}
	}
	var unexpected []string
	for path := range dict {
		if !known[path] {
			unexpected = append(unexpected, path)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(unexpected)
		return fmt.Errorf("%w: state dict mismatch: missing %v, unexpected %v", ErrConfiguration, missing, unexpected)
	}
	for _, p := range params {
		copy(p.Value.Data, dict[p.Path].Data)
	}
	return nil
}

// Summary describes the network's size and layout.
type Summary struct {
	Total     int // every element, including running statistics
	Trainable int // learnable parameters only
	Units     []string
}

func (n *Network) Summary() Summary {
	var s Summary
	for _, p := range n.Parameters() {
		s.Total += p.Value.Len()
		if !p.Buffer {
			s.Trainable += p.Value.Len()
		}
	}
	for i, u := range n.Conv.Layers {
		s.Units = append(s.Units, fmt.Sprintf("conv.%d %s", i, u.Tag()))
	}
	s.Units = append(s.Units, "out "+n.Out.Tag())
	return s
}

func (s Summary) String() string {
	var b strings.Builder
	for _, u := range s.Units {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Total: %d, Trainable: %d", s.Total, s.Trainable)
	return b.String()
}
