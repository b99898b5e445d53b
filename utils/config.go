package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"sewresnet/nn"
)

// Config holds evaluation configuration
type Config struct {
	Model   string
	Dataset string
	Cnf     string // fusion of SEW blocks
	// LayersFile, when set, replaces the model preset with a JSON layer list.
	LayersFile string

	T         int
	TTrain    int // 0 keeps every time step
	BatchSize int
	Seed      uint64

	DataDir      string
	DatasetCache string
	SplitRatio   float64
	RandomSplit  bool
	Synthetic    int // samples per class to generate instead of reading DataDir
	InputSize    int

	OutDir    string
	FiringDir string
	Resume    string
	Save      bool

	Opt         string
	LR          float64
	Momentum    float64
	LRScheduler string
	StepSize    int
	Gamma       float64
	TMax        int
	AMP         bool
}

// ValidateConfig validates evaluation configuration
func ValidateConfig(config *Config) error {
	if config.T <= 0 {
		return fmt.Errorf("T must be positive")
	}

	if config.TTrain < 0 || config.TTrain > config.T {
		return fmt.Errorf("T_train must be between 1 and T (%d), or 0 to disable", config.T)
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	if config.SplitRatio <= 0 || config.SplitRatio > 1 {
		return fmt.Errorf("split ratio must be in (0, 1]")
	}

	if config.DataDir == "" && config.Synthetic <= 0 {
		return fmt.Errorf("either a data directory or a synthetic sample count is required")
	}

	if config.Opt != "SGD" && config.Opt != "Adam" {
		return fmt.Errorf("optimizer must be 'SGD' or 'Adam'")
	}

	if config.LR <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}

	switch config.LRScheduler {
	case "StepLR":
		if config.StepSize <= 0 {
			return fmt.Errorf("step size must be positive")
		}
	case "CosALR":
		if config.TMax <= 0 {
			return fmt.Errorf("T_max must be positive")
		}
	default:
		return fmt.Errorf("lr scheduler must be 'StepLR' or 'CosALR'")
	}

	if config.InputSize <= 0 {
		return fmt.Errorf("input size must be positive")
	}

	return nil
}

// OutDirName is the run directory name derived from the configuration.
func OutDirName(config *Config) string {
	tTrain := "None"
	if config.TTrain > 0 {
		tTrain = strconv.Itoa(config.TTrain)
	}
	name := fmt.Sprintf("%s_%s_T_%d_T_train_%s_%s_lr_%s_",
		config.Model, config.Cnf, config.T, tTrain, config.Opt, formatFloat(config.LR))
	switch config.LRScheduler {
	case "CosALR":
		name += fmt.Sprintf("CosALR_%d", config.TMax)
	case "StepLR":
		name += fmt.Sprintf("StepLR_%d_%s", config.StepSize, formatFloat(config.Gamma))
	}
	if config.AMP {
		name += "_amp"
	}
	return name
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// WriteArgs records the configuration as args.txt in dir.
func WriteArgs(dir string, config *Config) error {
	return os.WriteFile(filepath.Join(dir, "args.txt"), []byte(fmt.Sprintf("%+v\n", *config)), 0644)
}

// LoadLayerSpecs reads a JSON list of network stages.
func LoadLayerSpecs(path string) ([]nn.LayerSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer file: %w", err)
	}
	var specs []nn.LayerSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse layer file: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: layer file %s lists no stages", nn.ErrConfiguration, path)
	}
	return specs, nil
}
