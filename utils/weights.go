package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"sewresnet/nn"
	"sewresnet/optim"
	"sewresnet/tensor"
)

// CheckpointVersion is written into every checkpoint.
const CheckpointVersion = "1"

// WeightData represents serializable data for one parameter
type WeightData struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Checkpoint is everything needed to resume a run. Network parameters are
// keyed by their structural path.
type Checkpoint struct {
	Version     string                 `json:"version"`
	Net         map[string]*WeightData `json:"net"`
	Optimizer   optim.State            `json:"optimizer"`
	LRScheduler optim.SchedulerState   `json:"lr_scheduler"`
	Epoch       int                    `json:"epoch"`
	MaxTestAcc  float64                `json:"max_test_acc"`
}

// NewCheckpoint captures the current state of a run.
func NewCheckpoint(net *nn.Network, opt optim.Optimizer, sched optim.Scheduler, epoch int, maxTestAcc float64) *Checkpoint {
	ck := &Checkpoint{
		Version:     CheckpointVersion,
		Net:         make(map[string]*WeightData),
		Optimizer:   opt.State(),
		LRScheduler: sched.State(),
		Epoch:       epoch,
		MaxTestAcc:  maxTestAcc,
	}
	for path, t := range net.StateDict() {
		ck.Net[path] = TensorToWeightData(t)
	}
	return ck
}

// Restore loads the checkpoint into net, opt and sched. Nothing is modified
// unless all three parts match.
func (ck *Checkpoint) Restore(net *nn.Network, opt optim.Optimizer, sched optim.Scheduler) error {
	if have := opt.State().Name; ck.Optimizer.Name != have {
		return fmt.Errorf("%w: checkpoint optimizer %q, run uses %q", nn.ErrConfiguration, ck.Optimizer.Name, have)
	}
	if have := sched.State().Name; ck.LRScheduler.Name != have {
		return fmt.Errorf("%w: checkpoint lr scheduler %q, run uses %q", nn.ErrConfiguration, ck.LRScheduler.Name, have)
	}
	dict := make(map[string]*tensor.Tensor, len(ck.Net))
	for path, wd := range ck.Net {
		t, err := WeightDataToTensor(wd)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		dict[path] = t
	}
	if err := net.LoadStateDict(dict); err != nil {
		return err
	}
	if err := opt.LoadState(ck.Optimizer); err != nil {
		return err
	}
	return sched.LoadState(ck.LRScheduler)
}

// SaveCheckpoint saves a checkpoint to a JSON file
func SaveCheckpoint(filepath string, ck *Checkpoint) error {
	data, err := json.Marshal(ck)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadCheckpoint loads a checkpoint from a JSON file
func LoadCheckpoint(filepath string) (*Checkpoint, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var ck Checkpoint
	if err := json.Unmarshal(data, &ck); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if ck.Version != CheckpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %q", ck.Version)
	}
	return &ck, nil
}

// TensorToWeightData converts a tensor to serializable weight data
func TensorToWeightData(t *tensor.Tensor) *WeightData {
	return &WeightData{
		Shape: append([]int{}, t.Shape...),
		Data:  append([]float64{}, t.Data...), // copy
	}
}

// WeightDataToTensor converts weight data back to a tensor
func WeightDataToTensor(wd *WeightData) (*tensor.Tensor, error) {
	if wd == nil {
		return nil, fmt.Errorf("missing weight data")
	}
	return tensor.NewWithData(wd.Data, wd.Shape...)
}
