package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/example/smokescreen/internal/config"
	"github.com/example/smokescreen/internal/logging"
	"github.com/example/smokescreen/obscuration"
	"github.com/example/smokescreen/simulation"
)

func main() {
	scenarioPath := flag.String("scenario", "", "YAML or JSON scenario file; the built-in demo is used when empty")
	at := flag.Float64("t", 5.1, "instant to evaluate, seconds")
	sweepEnd := flag.Float64("sweep", 0, "also sweep [0, sweep] seconds when positive")
	step := flag.Float64("step", 0.1, "sweep step, seconds")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger, err := logging.New(config.Log{Level: *level, Encoding: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error building logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	scenario, err := loadScenario(*scenarioPath)
	if err != nil {
		logger.Fatal("loading scenario", zap.String("path", *scenarioPath), zap.Error(err))
	}
	if err := scenario.Validate(); err != nil {
		logger.Fatal("invalid scenario", zap.Error(err))
	}

	missileVelocity, _ := scenario.Missile.Velocity()
	droneVelocity, _ := scenario.Drone.Velocity()
	fmt.Printf("Missile velocity: %+v\n", missileVelocity)
	fmt.Printf("Drone velocity:   %+v\n", droneVelocity)

	snap, err := scenario.Evaluate(*at)
	if err != nil {
		logger.Fatal("evaluating scenario", zap.Float64("t", *at), zap.Error(err))
	}
	fmt.Printf("t = %.3f s\n", snap.Time)
	fmt.Printf("Missile position: %+v\n", snap.Missile)
	fmt.Printf("Drone position:   %+v\n", snap.Drone)
	if snap.Smoke != nil {
		fmt.Printf("Smoke position:   %+v\n", *snap.Smoke)
	} else {
		fmt.Println("Smoke position:   not released")
	}
	fmt.Printf("Line of sight to %+v obscured: %t\n", snap.Target, snap.Obscured)

	if *sweepEnd <= 0 {
		return
	}

	timeline, err := obscuration.NewTimeline(obscuration.SweepConfig{Start: 0, End: *sweepEnd, Step: *step})
	if err != nil {
		logger.Fatal("building sweep", zap.Error(err))
	}
	if err := timeline.Evaluate(context.Background(), scenario.Obscured); err != nil {
		logger.Fatal("sweeping scenario", zap.Error(err))
	}
	summary := timeline.Summarize()
	fmt.Printf("Obscured %d/%d samples (%.1f%%, ~%.2f s)\n",
		summary.ObscuredSamples, summary.TotalSamples, summary.ObscuredPercent, summary.ObscuredSeconds)
	for _, interval := range summary.Intervals {
		fmt.Printf("  %.3f s .. %.3f s\n", interval.Start, interval.End)
	}
}

func loadScenario(path string) (*simulation.Scenario, error) {
	if path == "" {
		demo := simulation.DemoScenario()
		return &demo, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return simulation.LoadYAML(f)
	default:
		return simulation.LoadJSON(f)
	}
}
