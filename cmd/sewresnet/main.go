// sewresnet: evaluate a spiking residual network on an event-frame dataset and
// export per-batch firing statistics
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"sewresnet/dataset"
	"sewresnet/firing"
	"sewresnet/nn"
	"sewresnet/nn/bench"
	"sewresnet/nn/layers"
	"sewresnet/optim"
	"sewresnet/tensor"
	"sewresnet/utils"

	"golang.org/x/exp/rand"
)

var (
	timeSteps   = flag.Int("T", 16, "simulating time-steps")
	batchSize   = flag.Int("b", 16, "batch size")
	dataDir     = flag.String("data_dir", "", "root dir of the frame dataset (<class>/<sample>.gob)")
	outDir      = flag.String("out_dir", "./logs", "root dir for saving logs and checkpoint")
	resume      = flag.String("resume", "", "resume from the checkpoint path")
	opt         = flag.String("opt", "SGD", "use which optimizer. SGD or Adam")
	lr          = flag.Float64("lr", 0.1, "learning rate")
	momentum    = flag.Float64("momentum", 0.9, "momentum for SGD")
	lrScheduler = flag.String("lr_scheduler", "CosALR", "use which schedule. StepLR or CosALR")
	stepSize    = flag.Int("step_size", 32, "step_size for StepLR")
	gamma       = flag.Float64("gamma", 0.1, "gamma for StepLR")
	tMax        = flag.Int("T_max", 32, "T_max for CosineAnnealingLR")
	model       = flag.String("model", "SEWResNet", "model name: "+fmt.Sprint(nn.Models()))
	layersFile  = flag.String("layers", "", "JSON layer list used instead of the model preset")
	cnf         = flag.String("cnf", "ADD", "SEW fusion: ADD, AND or IAND")
	tTrain      = flag.Int("T_train", 0, "random time-step subset size for the train-set pass (0 keeps all)")
	dtsCache    = flag.String("dts_cache", "./dts_cache", "dir for cached train/test splits (empty disables)")
	datasetName = flag.String("dataset", "cifar10dvs", "cifar10dvs or dvsgesture")
	splitRatio  = flag.Float64("split_ratio", 0.9, "fraction of every class used for training")
	randomSplit = flag.Bool("random_split", false, "shuffle every class before splitting")
	seed        = flag.Uint64("seed", nn.DefaultSeed, "random seed for initialization, splitting and shuffling")
	inputSize   = flag.Int("input_size", nn.DefaultInputSize, "frame height and width")
	synthetic   = flag.Int("synthetic", 0, "generate this many samples per class instead of reading data_dir")
	firingDir   = flag.String("firing_dir", "./firing", "dir for per-batch firing CSV files (empty disables)")
	trainEval   = flag.Bool("train_eval", false, "also evaluate the train split (shuffled, drop last, T_train)")
	save        = flag.Bool("save", true, "write checkpoints after evaluation")
	amp         = flag.Bool("amp", false, "record automatic mixed precision in the run name")
	verbose     = flag.Bool("verbose", false, "print per-batch progress")
	timing      = flag.Bool("timing", true, "print timing statistics at the end of the run")
	profile     = flag.Int("profile", 0, "time every unit over this many runs of the first test batch")
)

func main() {
	flag.Parse()
	utils.Verbose = *timing

	cfg := &utils.Config{
		Model: *model, Dataset: *datasetName, Cnf: *cnf, LayersFile: *layersFile,
		T: *timeSteps, TTrain: *tTrain, BatchSize: *batchSize, Seed: *seed,
		DataDir: *dataDir, DatasetCache: *dtsCache, SplitRatio: *splitRatio, RandomSplit: *randomSplit,
		Synthetic: *synthetic, InputSize: *inputSize,
		OutDir: *outDir, FiringDir: *firingDir, Resume: *resume, Save: *save,
		Opt: *opt, LR: *lr, Momentum: *momentum,
		LRScheduler: *lrScheduler, StepSize: *stepSize, Gamma: *gamma, TMax: *tMax, AMP: *amp,
	}
	if err := utils.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║              SEW ResNet Evaluation                           ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("%+v\n", *cfg)

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *utils.Config) error {
	var stats utils.TimingStats
	start := time.Now()
	rng := rand.New(rand.NewSource(cfg.Seed))

	numClasses, err := nn.NumClasses(cfg.Dataset)
	if err != nil {
		return err
	}

	t0 := time.Now()
	trainSet, testSet, err := loadSplits(cfg, numClasses, rng)
	if err != nil {
		return err
	}
	stats.DataLoadingTime = time.Since(t0)
	fmt.Printf("Train samples: %d, test samples: %d\n", trainSet.Len(), testSet.Len())

	t0 = time.Now()
	net, err := buildNetwork(cfg, numClasses)
	if err != nil {
		return err
	}
	optimizer, err := optim.NewOptimizer(cfg.Opt, cfg.LR, cfg.Momentum)
	if err != nil {
		return err
	}
	scheduler, err := optim.NewScheduler(cfg.LRScheduler, optimizer, cfg.StepSize, cfg.Gamma, cfg.TMax)
	if err != nil {
		return err
	}
	stats.ModelInitTime = time.Since(t0)

	fmt.Println(net.Summary())

	startEpoch := 0
	maxTestAcc := -1.0
	if cfg.Resume != "" {
		ck, err := utils.LoadCheckpoint(cfg.Resume)
		if err != nil {
			return err
		}
		if err := ck.Restore(net, optimizer, scheduler); err != nil {
			return fmt.Errorf("restoring %s: %w", cfg.Resume, err)
		}
		startEpoch = ck.Epoch + 1
		maxTestAcc = ck.MaxTestAcc
		fmt.Printf("Resumed from %s: start_epoch=%d, max_test_acc=%.4f\n", cfg.Resume, startEpoch, maxTestAcc)
	}

	runDir := filepath.Join(cfg.OutDir, utils.OutDirName(cfg))
	if _, err := os.Stat(runDir); err == nil {
		if cfg.Resume == "" {
			return fmt.Errorf("%s already exists; pass -resume to continue it", runDir)
		}
		fmt.Println(runDir)
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(runDir, 0o755); err != nil {
			return err
		}
		fmt.Printf("Mkdir %s.\n", runDir)
	} else {
		return err
	}
	ptDir := runDir + "_pt"
	if err := os.MkdirAll(ptDir, 0o755); err != nil {
		return err
	}
	if err := utils.WriteArgs(runDir, cfg); err != nil {
		return err
	}

	var writer *firing.Writer
	if cfg.FiringDir != "" {
		if writer, err = firing.NewWriter(cfg.FiringDir); err != nil {
			return err
		}
	}

	if *trainEval {
		loader, err := dataset.NewLoader(trainSet, cfg.BatchSize, true, rng)
		if err != nil {
			return err
		}
		res, err := evaluate(net, loader, nil, cfg.TTrain, rng, &stats)
		if err != nil {
			return fmt.Errorf("train pass: %w", err)
		}
		fmt.Printf("train_loss %.4f train_acc %.4f\n", res.loss, res.acc)
	}

	loader, err := dataset.NewLoader(testSet, cfg.BatchSize, false, nil)
	if err != nil {
		return err
	}
	if *profile > 0 {
		if err := profileUnits(cfg.Model, net, loader, *profile); err != nil {
			return err
		}
	}
	res, err := evaluate(net, loader, writer, 0, rng, &stats)
	if err != nil {
		return fmt.Errorf("test pass: %w", err)
	}
	fmt.Printf("test_loss %.4f\n", res.loss)
	fmt.Println("test_acc", res.acc)
	if writer != nil {
		fmt.Printf("Wrote %d firing records to %s\n", writer.Count(), cfg.FiringDir)
	}

	if cfg.Save {
		t0 = time.Now()
		improved := res.acc > maxTestAcc
		if improved {
			maxTestAcc = res.acc
		}
		ck := utils.NewCheckpoint(net, optimizer, scheduler, startEpoch-1, maxTestAcc)
		if improved {
			if err := utils.SaveCheckpoint(filepath.Join(ptDir, "checkpoint_max.json"), ck); err != nil {
				return err
			}
		}
		if err := utils.SaveCheckpoint(filepath.Join(ptDir, "checkpoint_latest.json"), ck); err != nil {
			return err
		}
		stats.CheckpointTime = time.Since(t0)
	}

	stats.TotalTime = time.Since(start)
	utils.PrintTimingStats(&stats, res.batches)
	return nil
}

func loadSplits(cfg *utils.Config, numClasses int, rng *rand.Rand) (*dataset.Set, *dataset.Set, error) {
	if cfg.DatasetCache != "" {
		train, test, ok, err := dataset.LoadCache(cfg.DatasetCache, cfg.T)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			fmt.Printf("Loaded cached splits from %s\n", cfg.DatasetCache)
			return train, test, nil
		}
	}

	var origin *dataset.Set
	var err error
	if cfg.Synthetic > 0 {
		origin, err = dataset.Synthetic(numClasses, cfg.Synthetic, cfg.T, cfg.InputSize, cfg.InputSize, rng)
	} else {
		origin, err = dataset.LoadDir(cfg.DataDir)
	}
	if err != nil {
		return nil, nil, err
	}
	shape, err := origin.FrameShape()
	if err != nil {
		return nil, nil, err
	}
	if shape[0] != cfg.T {
		return nil, nil, fmt.Errorf("%w: dataset has %d frames per sample, T is %d", tensor.ErrShapeMismatch, shape[0], cfg.T)
	}

	var splitRng *rand.Rand
	if cfg.RandomSplit {
		splitRng = rng
	}
	train, test, err := dataset.SplitByClass(origin, numClasses, cfg.SplitRatio, splitRng)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatasetCache != "" {
		if err := dataset.SaveCache(cfg.DatasetCache, cfg.T, train, test); err != nil {
			return nil, nil, err
		}
	}
	return train, test, nil
}

func buildNetwork(cfg *utils.Config, numClasses int) (*nn.Network, error) {
	var fusion layers.Fusion
	if cfg.Cnf != "" {
		f, err := layers.ParseFusion(cfg.Cnf)
		if err != nil {
			return nil, err
		}
		fusion = f
	}
	opts := []nn.Option{
		nn.WithRandSource(rand.NewSource(cfg.Seed)),
		nn.WithInputSize(cfg.InputSize, cfg.InputSize),
	}
	if cfg.LayersFile == "" {
		return nn.NewPreset(cfg.Model, cfg.Dataset, fusion, opts...)
	}
	specs, err := utils.LoadLayerSpecs(cfg.LayersFile)
	if err != nil {
		return nil, err
	}
	return nn.NewResNetN(specs, numClasses, fusion, opts...)
}

var errStop = errors.New("stop")

func profileUnits(name string, net *nn.Network, loader *dataset.Loader, runs int) error {
	var points []bench.Point
	err := loader.Each(func(_ int, b dataset.Batch) error {
		var err error
		if points, err = bench.TimeUnits(bench.BuiltNet{Name: name, Net: net}, b.Frames, runs); err != nil {
			return err
		}
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return fmt.Errorf("profiling: %w", err)
	}
	fmt.Fprintf(utils.Output, "\nPer-unit forward time of %s (%d runs):\n", name, runs)
	bench.PrintTable(utils.Output, points)
	return nil
}

type result struct {
	loss, acc float64
	batches   int
}

// evaluate runs one pass over loader without gradients, resetting the network
// after every batch. A positive tSub keeps a random subset of time steps.
func evaluate(net *nn.Network, loader *dataset.Loader, writer *firing.Writer, tSub int, rng *rand.Rand, stats *utils.TimingStats) (result, error) {
	var res result
	var lossSum float64
	var correct, samples int
	err := loader.Each(func(i int, b dataset.Batch) error {
		frames := b.Frames
		if tSub > 0 {
			var err error
			if frames, err = dataset.SubsampleTime(frames, tSub, rng); err != nil {
				return err
			}
		}

		t0 := time.Now()
		logits, log, err := net.Forward(frames)
		net.Reset()
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		stats.ForwardPassTime += time.Since(t0)

		if writer != nil {
			t0 = time.Now()
			if _, err := writer.Write(log); err != nil {
				return err
			}
			stats.FiringExportTime += time.Since(t0)
		}

		t0 = time.Now()
		loss, err := nn.CrossEntropy(logits, b.Labels)
		if err != nil {
			return err
		}
		n := len(b.Labels)
		lossSum += loss * float64(n)
		correct += nn.Correct(logits, b.Labels)
		samples += n
		stats.LossComputationTime += time.Since(t0)

		res.batches++
		if *verbose {
			fmt.Printf("batch %d/%d loss %.4f acc %.4f\n", i+1, loader.Len(), loss, float64(correct)/float64(samples))
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	if samples > 0 {
		res.loss = lossSum / float64(samples)
		res.acc = float64(correct) / float64(samples)
	}
	return res, nil
}
