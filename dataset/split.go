package dataset

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
)

// SplitByClass puts the leading ceil(n*ratio) samples of every class into the
// train set and the rest into the test set. With a non-nil rng each class is
// shuffled first.
func SplitByClass(set *Set, numClasses int, ratio float64, rng *rand.Rand) (train, test *Set, err error) {
	if ratio < 0 || ratio > 1 {
		return nil, nil, fmt.Errorf("train ratio %g outside [0, 1]", ratio)
	}
	byClass := make([][]int, numClasses)
	for i, smp := range set.Samples {
		if smp.Label < 0 || smp.Label >= numClasses {
			return nil, nil, fmt.Errorf("sample %d: label %d outside [0, %d)", i, smp.Label, numClasses)
		}
		byClass[smp.Label] = append(byClass[smp.Label], i)
	}

	var trainIdx, testIdx []int
	for _, idx := range byClass {
		if rng != nil {
			rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
		pos := int(math.Ceil(float64(len(idx)) * ratio))
		trainIdx = append(trainIdx, idx[:pos]...)
		testIdx = append(testIdx, idx[pos:]...)
	}
	return set.Subset(trainIdx), set.Subset(testIdx), nil
}
