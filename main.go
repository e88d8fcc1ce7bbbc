package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	torch "github.com/wangkuiyi/gotorch"
	"gonum.org/v1/plot/plotter"

	"fashionnet/data"
	"fashionnet/ml"
	"fashionnet/util"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s train|predict [flags]\n", os.Args[0])
		os.Exit(1)
	}
	switch os.Args[1] {
	case "train":
		runTrain(os.Args[2:])
	case "predict":
		runPredict(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q: want train or predict\n", os.Args[1])
		os.Exit(1)
	}
}

func runTrain(args []string) {
	trainCmd := flag.NewFlagSet("train", flag.ExitOnError)
	dataDir := trainCmd.String("data", "./data/fashion", "directory for the dataset archives")
	save := trainCmd.String("save", "./fashion_model.gob", "the model file")
	lr := trainCmd.Float64("lr", 1e-3, "learning rate")
	epochs := trainCmd.Int("epochs", 5, "number of epochs")
	batchSize := trainCmd.Int("batch-size", 64, "minibatch size")
	workers := trainCmd.Int("workers", 0, "batch loader workers (0 = synchronous)")
	seed := trainCmd.Int64("seed", 1, "random seed")
	devices := trainCmd.String("devices", "", "comma-separated accelerator ids, e.g. 0,1")
	logEvery := trainCmd.Int("log-every", 100, "training steps between running-loss lines")
	plotDir := trainCmd.String("plots", "plots", "output directory for training curves")
	run := trainCmd.String("run", "train", "run name used for log file names")
	trainCmd.Parse(args)

	util.InitLogger(*run)
	if err := util.InitPlotLogger(*run); err != nil {
		util.Logger.Fatal(err)
	}

	cfg := ml.DefaultConfig()
	cfg.DataDir = *dataDir
	cfg.LearningRate = *lr
	cfg.MaxEpochs = *epochs
	cfg.BatchSize = *batchSize
	cfg.NumWorkers = *workers
	cfg.Seed = *seed
	cfg.LogEvery = *logEvery
	ids, err := parseDevices(*devices)
	if err != nil {
		util.Logger.Fatal(err)
	}
	cfg.Devices = ids
	if err := cfg.Validate(); err != nil {
		util.Logger.Fatal(err)
	}

	defer torch.FinishGC()

	source := data.NewSource(cfg.DataDir)
	pipe := data.NewPipeline(source, data.PipelineOptions{
		BatchSize:  cfg.BatchSize,
		NumWorkers: cfg.NumWorkers,
		Seed:       cfg.Seed,
		TrainSize:  cfg.TrainSize,
		ValSize:    cfg.ValSize,
	})
	if err := pipe.Setup(); err != nil {
		util.Logger.Fatal(err)
	}

	model := ml.NewFashionMLP(cfg)
	defer model.Close()

	trainer := ml.NewTrainer(cfg, model)
	if err := trainer.Fit(pipe.Train(), pipe.Val()); err != nil {
		util.Logger.Fatal(err)
	}
	if _, err := trainer.Test(pipe.Test()); err != nil {
		util.Logger.Fatal(err)
	}

	if err := ml.SaveCheckpoint(model, *save); err != nil {
		util.Logger.Fatal(err)
	}
	util.Logger.Println("Saved model to", *save)

	if err := savePlots(*plotDir, trainer.History()); err != nil {
		util.Logger.Println("plotting failed:", err)
	}

	// One sample prediction against its true label, as a smoke check.
	testDS, err := source.Load("test")
	if err != nil {
		util.Logger.Fatal(err)
	}
	sample := testDS.Sample(0)
	predicted, err := ml.Predict(model, sample.Image)
	if err != nil {
		util.Logger.Fatal(err)
	}
	actual, err := ml.ClassName(int(sample.Label))
	if err != nil {
		util.Logger.Fatal(err)
	}
	util.Logger.Printf("Predicted: %q, Actual: %q", predicted, actual)
}

func runPredict(args []string) {
	predictCmd := flag.NewFlagSet("predict", flag.ExitOnError)
	load := predictCmd.String("load", "./fashion_model.gob", "the model file")
	predictCmd.Parse(args)

	if predictCmd.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "predict needs at least one image path or glob")
		os.Exit(1)
	}

	model := ml.NewFashionMLP(ml.DefaultConfig())
	if err := ml.LoadCheckpoint(model, *load); err != nil {
		util.Logger.Fatal(err)
	}
	if err := ml.PredictFiles(model, predictCmd.Args()); err != nil {
		util.Logger.Fatal(err)
	}
}

func parseDevices(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad device id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func savePlots(dir string, history []ml.EpochStats) error {
	if len(history) == 0 {
		return nil
	}
	trainLoss := make(plotter.XYs, len(history))
	valLoss := make(plotter.XYs, len(history))
	valAcc := make(plotter.XYs, len(history))
	for i, h := range history {
		x := float64(h.Epoch)
		trainLoss[i] = plotter.XY{X: x, Y: h.TrainLoss}
		valLoss[i] = plotter.XY{X: x, Y: h.ValLoss}
		valAcc[i] = plotter.XY{X: x, Y: h.ValAcc}
	}
	if err := util.SaveCurves(dir+"/loss.png", "Loss per epoch", "loss", []util.Curve{
		{Name: "train", Points: trainLoss},
		{Name: "val", Points: valLoss},
	}); err != nil {
		return err
	}
	return util.SaveCurves(dir+"/accuracy.png", "Validation accuracy", "accuracy", []util.Curve{
		{Name: "val", Points: valAcc},
	})
}
