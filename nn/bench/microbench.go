// Package bench times the forward pass of a spiking network unit by unit.
package bench

import (
	"fmt"
	"io"
	"time"

	"sewresnet/nn"
	"sewresnet/tensor"
	"sewresnet/utils"
)

// Point is the mean forward time of one unit.
type Point struct {
	Net   string
	Index int
	Unit  string
	Fwd   time.Duration

	// Spikes is how many log entries the unit appended.
	Spikes int
}

// TimeUnits runs numRuns forward passes of input [N, T, 2, H, W] through
// net's units, timing each unit separately. The classifier is reported as a
// final point. The network is reset after every run.
func TimeUnits(b BuiltNet, input *tensor.Tensor, numRuns int) ([]Point, error) {
	if numRuns <= 0 {
		return nil, fmt.Errorf("numRuns must be positive, got %d", numRuns)
	}
	units := b.Net.Conv.Layers
	points := make([]Point, len(units)+1)
	for i, u := range units {
		points[i] = Point{Net: b.Name, Index: i, Unit: u.Tag()}
	}
	points[len(units)] = Point{Net: b.Name, Index: len(units), Unit: b.Net.Out.Tag()}

	for run := 0; run < numRuns; run++ {
		seq, err := tensor.SwapLeading(input)
		if err != nil {
			return nil, err
		}
		st := nn.State{X: seq, Log: []*tensor.Tensor{}}
		for i, u := range units {
			before := len(st.Log)
			start := time.Now()
			st, err = u.Forward(st)
			points[i].Fwd += time.Since(start)
			if err != nil {
				b.Net.Reset()
				return nil, fmt.Errorf("%s unit %d: %w", b.Name, i, err)
			}
			points[i].Spikes = len(st.Log) - before
		}
		start := time.Now()
		feat, err := tensor.MeanLeading(st.X)
		if err == nil {
			_, err = b.Net.Out.ForwardPlain(feat)
		}
		points[len(units)].Fwd += time.Since(start)
		b.Net.Reset()
		if err != nil {
			return nil, fmt.Errorf("%s classifier: %w", b.Name, err)
		}
	}
	for i := range points {
		points[i].Fwd /= time.Duration(numRuns)
	}
	return points, nil
}

// Total sums the forward time of points.
func Total(points []Point) time.Duration {
	var sum time.Duration
	for _, p := range points {
		sum += p.Fwd
	}
	return sum
}

// PrintTable writes one line per unit with its share of the total time.
func PrintTable(w io.Writer, points []Point) {
	total := Total(points)
	fmt.Fprintf(w, "%-5s | %-60s | %-12s | %-6s | %s\n", "Index", "Unit", "Fwd (us)", "Share", "Spikes")
	for _, p := range points {
		share := 0.0
		if total > 0 {
			share = float64(p.Fwd) / float64(total) * 100
		}
		fmt.Fprintf(w, "%-5d | %-60.60s | %12.1f | %5.1f%% | %d\n", p.Index, p.Unit, utils.DurationUS(p.Fwd), share, p.Spikes)
	}
	fmt.Fprintf(w, "Total forward: %v\n", total)
}
