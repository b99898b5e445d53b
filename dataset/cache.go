package dataset

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const cacheVersion = 1

// cacheHeader precedes the samples of a cache stream.
type cacheHeader struct {
	Version int
	Classes []string
	Count   int
}

// Encoder writes a Set as a gob stream: one header, then one Sample per message.
type Encoder struct {
	enc *gob.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: gob.NewEncoder(w)}
}

func (e *Encoder) Encode(set *Set) error {
	hdr := cacheHeader{Version: cacheVersion, Classes: set.Classes, Count: len(set.Samples)}
	if err := e.enc.Encode(&hdr); err != nil {
		return err
	}
	for i := range set.Samples {
		if err := e.enc.Encode(&set.Samples[i]); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return nil
}

// Decoder reads a Set written by Encoder.
type Decoder struct {
	dec *gob.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: gob.NewDecoder(r)}
}

func (d *Decoder) Decode() (*Set, error) {
	var hdr cacheHeader
	if err := d.dec.Decode(&hdr); err != nil {
		return nil, err
	}
	if hdr.Version != cacheVersion {
		return nil, fmt.Errorf("unsupported cache version %d", hdr.Version)
	}
	set := &Set{Classes: hdr.Classes, Samples: make([]Sample, hdr.Count)}
	for i := range set.Samples {
		if err := d.dec.Decode(&set.Samples[i]); err != nil {
			return nil, fmt.Errorf("sample %d of %d: %w", i, hdr.Count, err)
		}
	}
	return set, nil
}

// CachePaths returns the train and test cache files for sequences of T frames.
func CachePaths(dir string, T int) (train, test string) {
	return filepath.Join(dir, fmt.Sprintf("train_set_%d.gob", T)),
		filepath.Join(dir, fmt.Sprintf("test_set_%d.gob", T))
}

// SaveCache writes both splits into dir, creating it if needed.
func SaveCache(dir string, T int, train, test *Set) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	trainPath, testPath := CachePaths(dir, T)
	if err := writeSet(trainPath, train); err != nil {
		return err
	}
	return writeSet(testPath, test)
}

// LoadCache reads both splits from dir. ok is false when either file is absent.
func LoadCache(dir string, T int) (train, test *Set, ok bool, err error) {
	trainPath, testPath := CachePaths(dir, T)
	for _, p := range []string{trainPath, testPath} {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			return nil, nil, false, nil
		}
	}
	if train, err = readSet(trainPath); err != nil {
		return nil, nil, false, err
	}
	if test, err = readSet(testPath); err != nil {
		return nil, nil, false, err
	}
	return train, test, true, nil
}

func writeSet(path string, set *Set) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := NewEncoder(f).Encode(set); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func readSet(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	set, err := NewDecoder(f).Decode()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return set, nil
}
