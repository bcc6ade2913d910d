// cmd/barrelshooter/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MansenC/BarrelShooter/pkg/config"
	"github.com/MansenC/BarrelShooter/pkg/entity"
	"github.com/MansenC/BarrelShooter/pkg/game"
	"github.com/MansenC/BarrelShooter/pkg/logging"
	"github.com/MansenC/BarrelShooter/pkg/render"
)

const (
	frameInterval = time.Second / 30
	viewWidth     = 64
	viewHeight    = 32
)

func main() {
	logger := logging.NewLogger()
	ctx := logging.WithCorrelationID(context.Background(), logging.GenerateCorrelationID())

	configPath := flag.String("config", "config.json", "Path to configuration file (.json, .yaml, .yml or .toml)")
	createDefault := flag.Bool("default", false, "Create default configuration file")
	duration := flag.Duration("duration", 30*time.Second, "How long to run; 0 runs until interrupted")
	fireEvery := flag.Duration("fire-every", 1500*time.Millisecond, "Interval between automatic shots at the nearest barrel")
	view := flag.Bool("view", false, "Draw a top-down view of the sea in the terminal")
	flag.Parse()

	// Create default configuration file if requested
	if *createDefault {
		if err := config.SaveConfig(config.DefaultConfig(), *configPath); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err,
				"config_path", *configPath,
			)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file",
			"config_path", *configPath,
		)
		return
	}

	cfg, err := loadConfig(ctx, logger, *configPath)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err,
			"config_path", *configPath,
		)
		os.Exit(1)
	}

	session, err := game.NewSession(cfg, logger)
	if err != nil {
		logger.Error(ctx, "Failed to create game session", err)
		os.Exit(1)
	}

	if *view {
		// Frame the spawn ring with some margin around it.
		span := 2.5 * cfg.Game.SpawnRadius
		r := render.NewTerminalRenderer(os.Stdout, viewWidth, viewHeight, span/viewHeight)
		r.SetCenter(cfg.Game.CannonPosition.X(), cfg.Game.CannonPosition.Z())
		r.SetANSI(true)
		session.SetRenderer(r)
	} else {
		session.SetRenderer(render.NewNullRenderer(logger))
	}

	// Handle graceful shutdown
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, *duration)
		defer cancel()
	}

	if err := session.Start(runCtx); err != nil {
		logger.Error(ctx, "Failed to start session", err)
		os.Exit(1)
	}

	run(runCtx, logger, session, *fireEvery)

	if err := session.Stop(); err != nil {
		logger.Error(ctx, "Failed to stop session", err)
	}

	stats := session.Scheduler.Stats()
	logger.Info(ctx, "Game over",
		"score", session.GetScore(),
		"shots", session.Cannon.Shots(),
		"barrels_left", session.RemainingBarrels(),
		"ticks", stats.Ticks,
		"overruns", stats.Overruns,
		"panics", stats.Panics,
		"sim_time", stats.SimTime,
	)
}

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist, then applies environment overrides.
func loadConfig(ctx context.Context, logger *logging.Logger, path string) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Configuration file not found, using default configuration",
			"config_path", path,
		)
		cfg = config.DefaultConfig()
	} else {
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnvironmentOverrides(cfg); err != nil {
		return nil, logging.WrapError(err, "apply environment overrides")
	}
	return cfg, cfg.Validate()
}

// run drives the game side at a fixed frame rate and fires at the nearest
// barrel on every fireEvery interval until ctx ends or the barrels run out.
func run(ctx context.Context, logger *logging.Logger, session *game.Session, fireEvery time.Duration) {
	frames := time.NewTicker(frameInterval)
	defer frames.Stop()

	lastFrame := time.Now()
	nextShot := lastFrame.Add(fireEvery)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Shutting down", "reason", context.Cause(ctx).Error())
			return
		case now := <-frames.C:
			session.Update(now.Sub(lastFrame).Seconds())
			lastFrame = now

			if session.RemainingBarrels() == 0 {
				logger.Info(ctx, "All barrels cleared")
				return
			}
			if fireEvery > 0 && !now.Before(nextShot) {
				fireAtNearest(ctx, logger, session)
				nextShot = now.Add(fireEvery)
			}
		}
	}
}

func fireAtNearest(ctx context.Context, logger *logging.Logger, session *game.Session) {
	target, ok := session.NearestBarrel()
	if !ok {
		return
	}
	if !session.AimAt(target.GetPose().Position) {
		logger.Debug(ctx, "Target out of range", "barrel", uint64(target.GetID()))
	}
	if _, err := session.Fire(); err != nil && !errors.Is(err, entity.ErrReloading) {
		logger.Warn(ctx, "Failed to fire", "error", err.Error())
	}
}
