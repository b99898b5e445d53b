package nn

import (
	"fmt"

	"sewresnet/tensor"

	"gonum.org/v1/gonum/floats"
)

// CrossEntropy returns the mean negative log-likelihood of labels under the
// softmax of logits.
func CrossEntropy(logits *tensor.Tensor, labels []int) (float64, error) {
	if len(logits.Shape) != 2 || len(labels) != logits.Shape[0] {
		return 0, fmt.Errorf("CrossEntropy: %w: %d labels for logits %v", tensor.ErrShapeMismatch, len(labels), logits.Shape)
	}
	if len(labels) == 0 {
		return 0, nil
	}
	classes := logits.Shape[1]
	loss := 0.0
	for i, y := range labels {
		if y < 0 || y >= classes {
			return 0, fmt.Errorf("CrossEntropy: label %d out of range [0, %d)", y, classes)
		}
		row := logits.Data[i*classes : (i+1)*classes]
		loss += floats.LogSumExp(row) - row[y]
	}
	return loss / float64(len(labels)), nil
}

// Correct counts the rows whose arg-max matches the label.
func Correct(logits *tensor.Tensor, labels []int) int {
	classes := logits.Shape[len(logits.Shape)-1]
	n := 0
	for i, y := range labels {
		if floats.MaxIdx(logits.Data[i*classes:(i+1)*classes]) == y {
			n++
		}
	}
	return n
}
