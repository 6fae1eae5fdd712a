package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"advforge/internal/attack"
	"advforge/internal/config"
	"advforge/internal/dataset"
	"advforge/internal/model"
	"advforge/internal/optim"
	"advforge/internal/telemetry"
	"advforge/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "configs/default.yaml", "Path to YAML config")
	trainRoot := flag.String("train-root", "", "Override training shard root")
	testRoot := flag.String("test-root", "", "Override test shard root")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	fraction := flag.Float64("fraction", 0, "Adversarial fraction per batch")
	attackName := flag.String("attack", "", "Attack (fgsm, pgd, identity)")
	epsilon := flag.Float64("epsilon", 0, "Attack strength")
	seed := flag.Int64("seed", 0, "PRNG seed")
	device := flag.String("device", "", "Tensor device")
	runDir := flag.String("run-dir", "", "Directory for run logs")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		TrainRoot: *trainRoot,
		TestRoot:  *testRoot,
		Epochs:    *epochs,
		BatchSize: *batchSize,
		Fraction:  *fraction,
		Attack:    *attackName,
		Epsilon:   *epsilon,
		Seed:      *seed,
		Device:    *device,
		RunDir:    *runDir,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := dataset.LoadOptions{
		BatchSize: cfg.BatchSize,
		Workers:   cfg.NumWorkers,
		Grid:      cfg.Grid,
	}
	trainset, err := dataset.Load(ctx, cfg.TrainRoot, opts)
	if err != nil {
		log.Fatalf("loading training shards: %v", err)
	}
	testset, err := dataset.Load(ctx, cfg.TestRoot, opts)
	if err != nil {
		log.Fatalf("loading test shards: %v", err)
	}
	log.Printf("train_batches=%d test_batches=%d batch_size=%d", trainset.Len(), testset.Len(), cfg.BatchSize)

	jsonl, err := telemetry.NewJSONL(cfg.RunDir)
	if err != nil {
		log.Fatalf("opening run log: %v", err)
	}
	defer jsonl.Close()
	log.Printf("run_id=%s run_dir=%s", jsonl.RunID(), cfg.RunDir)

	var writer telemetry.Writer = jsonl
	if cfg.MetricsAddr != "" {
		prom := telemetry.NewProm()
		writer = telemetry.NewMulti(jsonl, prom)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(prom.Registry(), promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	mdl := model.NewLinear(cfg.Classes, cfg.Grid*cfg.Grid, cfg.Seed)

	var optimizer optim.Optimizer
	switch cfg.Optimizer {
	case "adamw":
		optimizer = optim.NewAdamW(cfg.LearningRate, cfg.WeightDecay)
	default:
		optimizer = optim.NewSGD(cfg.LearningRate, cfg.Momentum)
	}
	var scheduler optim.Scheduler = optim.Constant{}
	if cfg.LRGamma < 1 {
		scheduler = optim.NewStepDecay(optimizer, cfg.LRGamma, cfg.LRInterval)
	}

	var atk attack.Attack
	switch cfg.Attack {
	case "pgd":
		atk = attack.NewPGD(cfg.Epsilon, cfg.PGDSteps)
	case "identity":
		atk = attack.NewIdentity()
	default:
		atk = attack.NewFGSM(cfg.Epsilon)
	}
	objective := attack.NewUntargeted()

	adv, err := trainer.NewAdversarial(mdl, trainset, testset, optimizer, scheduler,
		atk, objective, cfg.Fraction, writer, model.Device(cfg.Device))
	if err != nil {
		log.Fatalf("building trainer: %v", err)
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			log.Printf("stopping after epoch %d: %v", epoch-1, err)
			break
		}
		if err := adv.Step(ctx, epoch); err != nil {
			log.Fatalf("epoch %d failed: %v", epoch, err)
		}
	}
}
