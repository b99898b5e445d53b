// firingsummary: aggregate per-batch firing records into per-layer firing rates
package main

import (
	"flag"
	"fmt"
	"os"

	"sewresnet/firing"
)

var (
	firingDir = flag.String("firing_dir", "./firing", "dir holding 0.csv, 1.csv, ...")
	count     = flag.Int("n", 0, "number of records to aggregate (0 uses every consecutive record)")
	outFile   = flag.String("out", "./all.csv", "output CSV")
)

func main() {
	flag.Parse()

	n := *count
	if n == 0 {
		var err error
		if n, err = firing.CountRecords(*firingDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	dt, err := firing.Aggregate(*firingDir, n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := firing.WriteTable(*outFile, dt); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outFile, err)
		os.Exit(1)
	}

	fmt.Printf("Aggregated %d records from %s into %s\n", n, *firingDir, *outFile)
	steps := firing.Steps(dt)
	for row := 0; row < dt.Rows; row++ {
		fmt.Printf("layer %2d: rate %.4f  per step:", row, dt.CellFloat(firing.RateCol, row))
		for t := 0; t < steps; t++ {
			fmt.Printf(" %.3f", dt.CellFloat(firing.StepCol(t), row))
		}
		fmt.Println()
	}
}
