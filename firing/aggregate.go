package firing

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/emer/etable/etable"
	"gonum.org/v1/gonum/floats"
)

// CountRecords returns how many consecutive records 0.csv, 1.csv, ... exist in dir.
func CountRecords(dir string) (int, error) {
	n := 0
	for {
		_, err := os.Stat(RecordPath(dir, n))
		if errors.Is(err, fs.ErrNotExist) {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n++
	}
}

// Aggregate sums records 0..n-1 of dir per layer and time step. Each step
// column of the result is the summed spike count over the summed capacity,
// and Rate is the layer's firing rate over all steps.
func Aggregate(dir string, n int) (*etable.Table, error) {
	if n <= 0 {
		return nil, fmt.Errorf("no records to aggregate in %s", dir)
	}
	var (
		fires    [][]float64 // [layer][step]
		capacity []float64   // [layer]
		steps    int
	)
	for idx := 0; idx < n; idx++ {
		path := RecordPath(dir, idx)
		dt, err := ReadTable(path)
		if err != nil {
			return nil, err
		}
		if idx == 0 {
			steps = Steps(dt)
			if steps == 0 || dt.Rows == 0 {
				return nil, fmt.Errorf("%s: no layers or time steps", path)
			}
			fires = make([][]float64, dt.Rows)
			for l := range fires {
				fires[l] = make([]float64, steps)
			}
			capacity = make([]float64, dt.Rows)
		}
		if dt.Rows != len(fires) || Steps(dt) != steps {
			return nil, fmt.Errorf("%s: %d layers x %d steps, expected %d x %d", path, dt.Rows, Steps(dt), len(fires), steps)
		}
		for l := range fires {
			for t := 0; t < steps; t++ {
				fires[l][t] += dt.CellFloat(StepCol(t), l)
			}
			capacity[l] += dt.CellFloat(CapacityCol, l)
		}
	}

	out := &etable.Table{}
	out.SetFromSchema(schema(steps, RateCol), len(fires))
	for l, row := range fires {
		out.SetCellFloat(LayerCol, l, float64(l))
		if capacity[l] == 0 {
			continue
		}
		for t, v := range row {
			out.SetCellFloat(StepCol(t), l, v/capacity[l])
		}
		out.SetCellFloat(RateCol, l, floats.Sum(row)/(float64(steps)*capacity[l]))
	}
	return out, nil
}
