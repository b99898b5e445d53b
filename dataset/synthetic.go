package dataset

import (
	"fmt"
	"strconv"

	"sewresnet/tensor"

	"golang.org/x/exp/rand"
)

// Synthetic generates perClass event sequences for each of numClasses classes.
// Class c fires mostly inside horizontal band c of the frame, on polarity c%2,
// with background noise elsewhere.
func Synthetic(numClasses, perClass, T, height, width int, rng *rand.Rand) (*Set, error) {
	if numClasses <= 0 || perClass < 0 || T <= 0 || height < numClasses || width <= 0 {
		return nil, fmt.Errorf("synthetic dataset: invalid size %d classes x %d samples, %dx%dx%d frames",
			numClasses, perClass, T, height, width)
	}
	const (
		signal = 0.6
		noise  = 0.02
	)
	band := height / numClasses
	set := &Set{}
	for c := 0; c < numClasses; c++ {
		set.Classes = append(set.Classes, strconv.Itoa(c))
	}
	for c := 0; c < numClasses; c++ {
		for i := 0; i < perClass; i++ {
			frames := tensor.New(T, 2, height, width)
			for t := 0; t < T; t++ {
				for p := 0; p < 2; p++ {
					for y := 0; y < height; y++ {
						rate := noise
						if p == c%2 && y >= c*band && y < (c+1)*band {
							rate = signal
						}
						for x := 0; x < width; x++ {
							if rng.Float64() < rate {
								frames.Set(1, t, p, y, x)
							}
						}
					}
				}
			}
			set.Samples = append(set.Samples, Sample{Frames: frames, Label: c})
		}
	}
	return set, nil
}
