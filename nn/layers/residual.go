package layers

import (
	"fmt"
	"strings"

	"sewresnet/tensor"

	"golang.org/x/exp/rand"
)

// Fusion selects how a SEW block combines its transform output with its input.
type Fusion int

const (
	FusionADD  Fusion = iota + 1 // out + x
	FusionAND                    // out * x
	FusionIAND                   // x * (1 - out)
)

// ParseFusion maps "ADD", "AND" or "IAND" to a Fusion.
func ParseFusion(s string) (Fusion, error) {
	switch strings.ToUpper(s) {
	case "ADD":
		return FusionADD, nil
	case "AND":
		return FusionAND, nil
	case "IAND":
		return FusionIAND, nil
	}
	return 0, fmt.Errorf("%w: unknown fusion %q", ErrConfiguration, s)
}

func (f Fusion) String() string {
	switch f {
	case FusionADD:
		return "ADD"
	case FusionAND:
		return "AND"
	case FusionIAND:
		return "IAND"
	}
	return fmt.Sprintf("Fusion(%d)", int(f))
}

// Apply combines the transform output out with the block input x.
func (f Fusion) Apply(out, x *tensor.Tensor) (*tensor.Tensor, error) {
	switch f {
	case FusionADD:
		return tensor.Add(out, x)
	case FusionAND:
		return tensor.Mul(out, x)
	case FusionIAND:
		return tensor.Mul(x, tensor.Map(out, func(v float64) float64 { return 1 - v }))
	}
	return nil, fmt.Errorf("%w: unknown fusion %s", ErrConfiguration, f)
}

// BlockKind is the residual block variant.
type BlockKind int

const (
	BlockPlain BlockKind = iota + 1
	BlockBasic
	BlockSEW
)

// ParseBlockKind maps "plain", "basic" or "sew" to a BlockKind.
func ParseBlockKind(s string) (BlockKind, error) {
	switch s {
	case "plain":
		return BlockPlain, nil
	case "basic":
		return BlockBasic, nil
	case "sew":
		return BlockSEW, nil
	}
	return 0, fmt.Errorf("%w: unknown block type %q", ErrConfiguration, s)
}

func (k BlockKind) String() string {
	switch k {
	case BlockPlain:
		return "plain"
	case BlockBasic:
		return "basic"
	case BlockSEW:
		return "sew"
	}
	return fmt.Sprintf("BlockKind(%d)", int(k))
}

func (k BlockKind) MarshalText() ([]byte, error) {
	if k == 0 {
		return []byte{}, nil
	}
	return []byte(k.String()), nil
}

func (k *BlockKind) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = 0
		return nil
	}
	kind, err := ParseBlockKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// NewBlock builds one residual block of the given kind mapping
// inChan -> midChan -> inChan. fusion is only consulted for BlockSEW.
func NewBlock(kind BlockKind, inChan, midChan int, fusion Fusion, src rand.Source) (Unit, error) {
	switch kind {
	case BlockPlain:
		return NewPlainBlock(inChan, midChan, src)
	case BlockBasic:
		return NewBasicBlock(inChan, midChan, src)
	case BlockSEW:
		return NewSEWBlock(inChan, midChan, fusion, src)
	}
	return nil, fmt.Errorf("%w: unknown block type %s", ErrConfiguration, kind)
}

func newPair(inChan, midChan int, src rand.Source) ([2]*SpikingUnit, error) {
	var conv [2]*SpikingUnit
	var err error
	if conv[0], err = NewSpikingUnit(inChan, midChan, 3, src); err != nil {
		return conv, err
	}
	if conv[1], err = NewSpikingUnit(midChan, inChan, 3, src); err != nil {
		return conv, err
	}
	return conv, nil
}

func runPair(conv [2]*SpikingUnit, s State) (State, error) {
	var err error
	for _, u := range conv {
		if s, err = u.Forward(s); err != nil {
			return State{}, err
		}
	}
	return s, nil
}

func pairParams(conv [2]*SpikingUnit, prefix string) []Param {
	return append(conv[0].Params(join(prefix, "conv.0")), conv[1].Params(join(prefix, "conv.1"))...)
}

func pairTag(name string, conv [2]*SpikingUnit) string {
	return name + "[" + conv[0].Tag() + "," + conv[1].Tag() + "]"
}

// PlainBlock is two spiking units with no shortcut.
type PlainBlock struct {
	Conv [2]*SpikingUnit
}

func NewPlainBlock(inChan, midChan int, src rand.Source) (*PlainBlock, error) {
	conv, err := newPair(inChan, midChan, src)
	if err != nil {
		return nil, err
	}
	return &PlainBlock{Conv: conv}, nil
}

func (b *PlainBlock) Forward(s State) (State, error) { return runPair(b.Conv, s) }

func (b *PlainBlock) Params(prefix string) []Param { return pairParams(b.Conv, prefix) }

func (b *PlainBlock) Reset() {
	b.Conv[0].Reset()
	b.Conv[1].Reset()
}

func (b *PlainBlock) Tag() string { return pairTag("PlainBlock", b.Conv) }

// SEWBlock fuses the output of two spiking units with the block input.
type SEWBlock struct {
	Conv   [2]*SpikingUnit
	Fusion Fusion
}

func NewSEWBlock(inChan, midChan int, fusion Fusion, src rand.Source) (*SEWBlock, error) {
	if fusion < FusionADD || fusion > FusionIAND {
		return nil, fmt.Errorf("%w: SEW block needs ADD, AND or IAND fusion, got %s", ErrConfiguration, fusion)
	}
	conv, err := newPair(inChan, midChan, src)
	if err != nil {
		return nil, err
	}
	return &SEWBlock{Conv: conv, Fusion: fusion}, nil
}

func (b *SEWBlock) Forward(s State) (State, error) {
	out, err := runPair(b.Conv, s)
	if err != nil {
		return State{}, err
	}
	fused, err := b.Fusion.Apply(out.X, s.X)
	if err != nil {
		return State{}, err
	}
	return State{X: fused, Log: out.Log}, nil
}

func (b *SEWBlock) Params(prefix string) []Param { return pairParams(b.Conv, prefix) }

func (b *SEWBlock) Reset() {
	b.Conv[0].Reset()
	b.Conv[1].Reset()
}

func (b *SEWBlock) Tag() string { return pairTag("SEWBlock<"+b.Fusion.String()+">", b.Conv) }

// BasicBlock is a spiking unit and a conv+BN stage whose output is added to the
// block input before a final neuron. It logs the first unit's spikes and the
// final neuron's spikes.
type BasicBlock struct {
	First  *SpikingUnit
	Second *ConvBN
	SN     *ParametricLIF
}

func NewBasicBlock(inChan, midChan int, src rand.Source) (*BasicBlock, error) {
	first, err := NewSpikingUnit(inChan, midChan, 3, src)
	if err != nil {
		return nil, err
	}
	second, err := NewConvBN(midChan, inChan, 3)
	if err != nil {
		return nil, err
	}
	second.Conv.Init(src)
	return &BasicBlock{First: first, Second: second, SN: NewParametricLIF(2.0, true)}, nil
}

func (b *BasicBlock) Forward(s State) (State, error) {
	mid, err := b.First.Forward(s)
	if err != nil {
		return State{}, err
	}
	out, err := b.Second.ForwardSeq(mid.X)
	if err != nil {
		return State{}, err
	}
	sum, err := tensor.Add(out, s.X)
	if err != nil {
		return State{}, err
	}
	spikes, err := b.SN.ForwardSeq(sum)
	if err != nil {
		return State{}, err
	}
	return State{X: spikes, Log: append(mid.Log, spikes)}, nil
}

func (b *BasicBlock) Params(prefix string) []Param {
	params := b.First.Params(join(prefix, "conv.0"))
	params = append(params, b.Second.Params(join(prefix, "conv.1"))...)
	return append(params, b.SN.Params(join(prefix, "sn"))...)
}

func (b *BasicBlock) Reset() {
	b.First.Reset()
	b.SN.Reset()
}

func (b *BasicBlock) Tag() string {
	return "BasicBlock[" + b.First.Tag() + "," + b.Second.Conv.Tag() + ",BN," + b.SN.Tag() + "]"
}
