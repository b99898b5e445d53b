// Package dataset loads event-frame datasets, splits them per class, caches
// the splits and serves shuffled batches.
package dataset

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"sewresnet/tensor"
)

// Sample is one integrated event sequence with shape [T, 2, H, W].
type Sample struct {
	Frames *tensor.Tensor
	Label  int
}

// Set is an ordered collection of samples.
type Set struct {
	Classes []string
	Samples []Sample
}

func (s *Set) Len() int { return len(s.Samples) }

// Subset returns the samples at the given indices, sharing frame data.
func (s *Set) Subset(idx []int) *Set {
	out := &Set{Classes: s.Classes, Samples: make([]Sample, len(idx))}
	for i, j := range idx {
		out.Samples[i] = s.Samples[j]
	}
	return out
}

// FrameShape returns the [T, 2, H, W] shape shared by every sample.
func (s *Set) FrameShape() ([]int, error) {
	if len(s.Samples) == 0 {
		return nil, fmt.Errorf("empty dataset")
	}
	shape := s.Samples[0].Frames.Shape
	for i, smp := range s.Samples {
		if len(smp.Frames.Shape) != 4 || !tensor.SameShape(smp.Frames, s.Samples[0].Frames) {
			return nil, fmt.Errorf("sample %d: %w: %v vs %v", i, tensor.ErrShapeMismatch, smp.Frames.Shape, shape)
		}
	}
	return append([]int(nil), shape...), nil
}

// WriteSample stores one frame tensor at path.
func WriteSample(path string, frames *tensor.Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(frames); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// ReadSample loads a frame tensor written by WriteSample.
func ReadSample(path string) (*tensor.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var frames tensor.Tensor
	if err := gob.NewDecoder(f).Decode(&frames); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if tensor.Numel(frames.Shape) != len(frames.Data) {
		return nil, fmt.Errorf("%s: %w: %d values for shape %v", path, tensor.ErrShapeMismatch, len(frames.Data), frames.Shape)
	}
	return &frames, nil
}

// LoadDir reads a frame dataset laid out as root/<class>/<sample>.gob. Class
// labels follow the sorted order of the class directory names.
func LoadDir(root string) (*Set, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading dataset root: %w", err)
	}
	set := &Set{}
	for _, e := range entries {
		if e.IsDir() {
			set.Classes = append(set.Classes, e.Name())
		}
	}
	sort.Strings(set.Classes)
	if len(set.Classes) == 0 {
		return nil, fmt.Errorf("no class directories under %s", root)
	}

	for label, class := range set.Classes {
		files, err := filepath.Glob(filepath.Join(root, class, "*.gob"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, path := range files {
			frames, err := ReadSample(path)
			if err != nil {
				return nil, err
			}
			set.Samples = append(set.Samples, Sample{Frames: frames, Label: label})
		}
	}
	if _, err := set.FrameShape(); err != nil {
		return nil, fmt.Errorf("%s: %w", root, err)
	}
	return set, nil
}
