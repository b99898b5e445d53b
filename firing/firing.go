// Package firing records how many neurons fire at every time step of every
// spiking layer, and aggregates those records into firing rates.
package firing

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"sewresnet/tensor"

	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"
)

// Column names shared by record and summary tables.
const (
	LayerCol    = "Layer"
	CapacityCol = "Capacity"
	RateCol     = "Rate"
)

// StepCol names the column holding time step t.
func StepCol(t int) string { return "T" + strconv.Itoa(t) }

func schema(steps int, last string) etable.Schema {
	sch := etable.Schema{{Name: LayerCol, Type: etensor.INT64, CellShape: nil, DimNames: nil}}
	for t := 0; t < steps; t++ {
		sch = append(sch, etable.Column{Name: StepCol(t), Type: etensor.FLOAT64})
	}
	return append(sch, etable.Column{Name: last, Type: etensor.FLOAT64})
}

// Record tabulates a spike log: one row per spike tensor [T, N, C, H, W] with
// the spike count of each time step and the neuron count N*C*H*W of one step.
func Record(log []*tensor.Tensor) (*etable.Table, error) {
	if len(log) == 0 {
		return nil, fmt.Errorf("empty spike log")
	}
	steps := log[0].Shape[0]
	dt := &etable.Table{}
	dt.SetFromSchema(schema(steps, CapacityCol), len(log))
	for row, spikes := range log {
		if len(spikes.Shape) != 5 || spikes.Shape[0] != steps {
			return nil, fmt.Errorf("layer %d: %w: expected [%d, N, C, H, W], got %v", row, tensor.ErrShapeMismatch, steps, spikes.Shape)
		}
		capacity := tensor.Numel(spikes.Shape[1:])
		dt.SetCellFloat(LayerCol, row, float64(row))
		for t := 0; t < steps; t++ {
			dt.SetCellFloat(StepCol(t), row, spikes.Slice(t).Sum())
		}
		dt.SetCellFloat(CapacityCol, row, float64(capacity))
	}
	return dt, nil
}

// Steps returns the number of time-step columns of a record or summary table.
func Steps(dt *etable.Table) int {
	n := 0
	for dt.ColByName(StepCol(n)) != nil {
		n++
	}
	return n
}

// WriteTable stores dt as comma-separated values with typed headers.
func WriteTable(path string, dt *etable.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dt.WriteCSV(f, etable.Comma, etable.Headers); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ReadTable loads a table written by WriteTable.
func ReadTable(path string) (*etable.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dt := &etable.Table{}
	if err := dt.ReadCSV(f, etable.Comma); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return dt, nil
}

// Writer stores one record per evaluated batch as <dir>/<idx>.csv with idx
// counting from zero.
type Writer struct {
	dir  string
	next int
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{dir: dir}, nil
}

// Write records log and returns the file it was written to.
func (w *Writer) Write(log []*tensor.Tensor) (string, error) {
	dt, err := Record(log)
	if err != nil {
		return "", err
	}
	path := RecordPath(w.dir, w.next)
	if err := WriteTable(path, dt); err != nil {
		return "", err
	}
	w.next++
	return path, nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int { return w.next }

// RecordPath is the file of record idx in dir.
func RecordPath(dir string, idx int) string {
	return filepath.Join(dir, strconv.Itoa(idx)+".csv")
}
