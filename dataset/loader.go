package dataset

import (
	"fmt"
	"sort"

	"sewresnet/tensor"

	"golang.org/x/exp/rand"
)

// Batch is a stack of samples with frames [N, T, 2, H, W].
type Batch struct {
	Frames  *tensor.Tensor
	Labels  []int
	Indices []int // positions in the source set
}

// Loader serves a Set in fixed-size batches.
type Loader struct {
	set       *Set
	batchSize int
	dropLast  bool
	rng       *rand.Rand // nil keeps the set order
	shape     []int
}

// NewLoader returns a loader over set. A nil rng disables shuffling.
func NewLoader(set *Set, batchSize int, dropLast bool, rng *rand.Rand) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	l := &Loader{set: set, batchSize: batchSize, dropLast: dropLast, rng: rng}
	if set.Len() > 0 {
		shape, err := set.FrameShape()
		if err != nil {
			return nil, err
		}
		l.shape = shape
	}
	return l, nil
}

// Len returns the number of batches in one epoch.
func (l *Loader) Len() int {
	n := l.set.Len() / l.batchSize
	if !l.dropLast && l.set.Len()%l.batchSize != 0 {
		n++
	}
	return n
}

// Each visits one epoch of batches in order, stopping at the first error.
func (l *Loader) Each(fn func(i int, b Batch) error) error {
	order := make([]int, l.set.Len())
	for i := range order {
		order[i] = i
	}
	if l.rng != nil {
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	for i := 0; i < l.Len(); i++ {
		end := (i + 1) * l.batchSize
		if end > len(order) {
			end = len(order)
		}
		if err := fn(i, l.stack(order[i*l.batchSize:end])); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) stack(idx []int) Batch {
	inner := tensor.Numel(l.shape)
	b := Batch{
		Frames:  tensor.New(append([]int{len(idx)}, l.shape...)...),
		Labels:  make([]int, len(idx)),
		Indices: append([]int(nil), idx...),
	}
	for i, j := range idx {
		smp := l.set.Samples[j]
		copy(b.Frames.Data[i*inner:(i+1)*inner], smp.Frames.Data)
		b.Labels[i] = smp.Label
	}
	return b
}

// SubsampleTime keeps tSub randomly chosen time steps of a [N, T, ...] batch,
// in their original order.
func SubsampleTime(x *tensor.Tensor, tSub int, rng *rand.Rand) (*tensor.Tensor, error) {
	if len(x.Shape) < 2 {
		return nil, fmt.Errorf("SubsampleTime: %w: expected [N, T, ...], got %v", tensor.ErrShapeMismatch, x.Shape)
	}
	n, steps := x.Shape[0], x.Shape[1]
	if tSub <= 0 || tSub > steps {
		return nil, fmt.Errorf("SubsampleTime: cannot keep %d of %d time steps", tSub, steps)
	}
	keep := rng.Perm(steps)[:tSub]
	sort.Ints(keep)

	inner := tensor.Numel(x.Shape[2:])
	shape := append([]int{n, tSub}, x.Shape[2:]...)
	out := tensor.New(shape...)
	for b := 0; b < n; b++ {
		for i, t := range keep {
			src := (b*steps + t) * inner
			dst := (b*tSub + i) * inner
			copy(out.Data[dst:dst+inner], x.Data[src:src+inner])
		}
	}
	return out, nil
}
