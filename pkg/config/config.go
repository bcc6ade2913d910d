// pkg/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/MansenC/BarrelShooter/pkg/engine"
	"github.com/MansenC/BarrelShooter/pkg/entity"
	"github.com/MansenC/BarrelShooter/pkg/ocean"
	"github.com/MansenC/BarrelShooter/pkg/physics"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrUnsupportedFormat is returned for config files with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Config contains the complete BarrelShooter configuration
type Config struct {
	Physics PhysicsConfig `json:"physics" yaml:"physics" toml:"physics"`
	Water   WaterConfig   `json:"water" yaml:"water" toml:"water"`
	Game    GameConfig    `json:"game" yaml:"game" toml:"game"`
}

// PhysicsConfig contains simulation settings
type PhysicsConfig struct {
	TickRate         float64 `json:"tickRate" yaml:"tickRate" toml:"tickRate"`
	Gravity          float64 `json:"gravity" yaml:"gravity" toml:"gravity"`
	MaxIterations    int     `json:"maxIterations" yaml:"maxIterations" toml:"maxIterations"`
	CollisionEpsilon float64 `json:"collisionEpsilon" yaml:"collisionEpsilon" toml:"collisionEpsilon"`
}

// WaveConfig describes one directional wave
type WaveConfig struct {
	Amplitude  float64    `json:"amplitude" yaml:"amplitude" toml:"amplitude"`
	Wavelength float64    `json:"wavelength" yaml:"wavelength" toml:"wavelength"`
	Speed      float64    `json:"speed" yaml:"speed" toml:"speed"`
	Direction  mgl64.Vec2 `json:"direction" yaml:"direction" toml:"direction"`
	Phase      float64    `json:"phase" yaml:"phase" toml:"phase"`
}

// WaterConfig contains the ocean surface and buoyancy settings
type WaterConfig struct {
	Density       float64      `json:"density" yaml:"density" toml:"density"`
	Level         float64      `json:"level" yaml:"level" toml:"level"`
	VoxelSize     float64      `json:"voxelSize" yaml:"voxelSize" toml:"voxelSize"`
	Waves         []WaveConfig `json:"waves" yaml:"waves" toml:"waves"`
	FlowStrength  float64      `json:"flowStrength" yaml:"flowStrength" toml:"flowStrength"`
	FlowDirection mgl64.Vec3   `json:"flowDirection" yaml:"flowDirection" toml:"flowDirection"`
	FlowSlope     float64      `json:"flowSlope" yaml:"flowSlope" toml:"flowSlope"`
}

// GameConfig contains gameplay settings
type GameConfig struct {
	Barrels          int        `json:"barrels" yaml:"barrels" toml:"barrels"`
	SpawnRadius      float64    `json:"spawnRadius" yaml:"spawnRadius" toml:"spawnRadius"`
	CannonPosition   mgl64.Vec3 `json:"cannonPosition" yaml:"cannonPosition" toml:"cannonPosition"`
	MuzzleSpeed      float64    `json:"muzzleSpeed" yaml:"muzzleSpeed" toml:"muzzleSpeed"`
	CooldownMillis   int        `json:"cooldownMillis" yaml:"cooldownMillis" toml:"cooldownMillis"`
	CannonballRadius float64    `json:"cannonballRadius" yaml:"cannonballRadius" toml:"cannonballRadius"`
	CannonballMass   float64    `json:"cannonballMass" yaml:"cannonballMass" toml:"cannonballMass"`
	BarrelRadius     float64    `json:"barrelRadius" yaml:"barrelRadius" toml:"barrelRadius"`
	BarrelHeight     float64    `json:"barrelHeight" yaml:"barrelHeight" toml:"barrelHeight"`
	BarrelMass       float64    `json:"barrelMass" yaml:"barrelMass" toml:"barrelMass"`
	BarrelPoints     int        `json:"barrelPoints" yaml:"barrelPoints" toml:"barrelPoints"`
	WorldBounds      float64    `json:"worldBounds" yaml:"worldBounds" toml:"worldBounds"`
	Seed             uint64     `json:"seed" yaml:"seed" toml:"seed"`
}

// LoadConfig loads a configuration from a file. The format is chosen by the
// file extension: .json, .yaml, .yml or .toml.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so partial files only override what they name.
	config := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".toml":
		err = toml.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves a configuration to a file in the format named by its extension
func SaveConfig(config *Config, path string) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".toml":
		data, err = toml.Marshal(config)
	default:
		return fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfigFromEnv returns the defaults with environment overrides applied
func LoadConfigFromEnv() (*Config, error) {
	config := DefaultConfig()
	if err := ApplyEnvironmentOverrides(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a default game configuration
func DefaultConfig() *Config {
	sim := engine.DefaultOptions()
	barrel := entity.DefaultBarrelConfig()
	cannon := entity.DefaultCannonConfig()

	return &Config{
		Physics: PhysicsConfig{
			TickRate:         sim.TickRate,
			Gravity:          physics.DefaultGravity,
			MaxIterations:    sim.MaxIterations,
			CollisionEpsilon: sim.CollisionEpsilon,
		},
		Water: WaterConfig{
			Density:   physics.DefaultWaterDensity,
			Level:     0,
			VoxelSize: barrel.VoxelSize,
			Waves: []WaveConfig{
				{Amplitude: 0.25, Wavelength: 12, Speed: 2, Direction: mgl64.Vec2{1, 0}},
				{Amplitude: 0.1, Wavelength: 5, Speed: 1.2, Direction: mgl64.Vec2{0.6, 0.8}, Phase: 1},
			},
			FlowStrength:  5,
			FlowDirection: mgl64.Vec3{1, 0, 0},
			FlowSlope:     2,
		},
		Game: GameConfig{
			Barrels:          6,
			SpawnRadius:      15,
			CannonPosition:   cannon.Position,
			MuzzleSpeed:      cannon.MuzzleSpeed,
			CooldownMillis:   int(cannon.Cooldown / time.Millisecond),
			CannonballRadius: cannon.BallRadius,
			CannonballMass:   cannon.BallMass,
			BarrelRadius:     barrel.Radius,
			BarrelHeight:     barrel.Height,
			BarrelMass:       barrel.Mass,
			BarrelPoints:     barrel.Points,
			WorldBounds:      60,
			Seed:             1,
		},
	}
}

// Validate checks that every setting can build a working simulation
func (c *Config) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"physics.tickRate", c.Physics.TickRate},
		{"physics.gravity", c.Physics.Gravity},
		{"physics.collisionEpsilon", c.Physics.CollisionEpsilon},
		{"water.density", c.Water.Density},
		{"water.voxelSize", c.Water.VoxelSize},
		{"game.spawnRadius", c.Game.SpawnRadius},
		{"game.muzzleSpeed", c.Game.MuzzleSpeed},
		{"game.cannonballRadius", c.Game.CannonballRadius},
		{"game.cannonballMass", c.Game.CannonballMass},
		{"game.barrelRadius", c.Game.BarrelRadius},
		{"game.barrelHeight", c.Game.BarrelHeight},
		{"game.barrelMass", c.Game.BarrelMass},
		{"game.worldBounds", c.Game.WorldBounds},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 1) {
			return fmt.Errorf("%s must be positive, got %v: %w", p.name, p.value, ErrInvalidConfig)
		}
	}

	if c.Physics.MaxIterations <= 0 {
		return fmt.Errorf("physics.maxIterations must be positive, got %d: %w", c.Physics.MaxIterations, ErrInvalidConfig)
	}
	if c.Game.Barrels < 0 {
		return fmt.Errorf("game.barrels must not be negative, got %d: %w", c.Game.Barrels, ErrInvalidConfig)
	}
	if c.Game.CooldownMillis < 0 {
		return fmt.Errorf("game.cooldownMillis must not be negative, got %d: %w", c.Game.CooldownMillis, ErrInvalidConfig)
	}
	if c.Game.SpawnRadius >= c.Game.WorldBounds {
		return fmt.Errorf("game.spawnRadius %v must lie inside game.worldBounds %v: %w",
			c.Game.SpawnRadius, c.Game.WorldBounds, ErrInvalidConfig)
	}
	if c.Water.FlowStrength != 0 && math.Hypot(c.Water.FlowDirection.X(), c.Water.FlowDirection.Z()) == 0 {
		return fmt.Errorf("water.flowDirection needs a horizontal component: %w", ErrInvalidConfig)
	}
	for i, w := range c.Water.Waves {
		if !(w.Wavelength > 0) || w.Amplitude < 0 || w.Direction.Len() == 0 {
			return fmt.Errorf("water.waves[%d] is malformed: %w", i, ErrInvalidConfig)
		}
	}

	return nil
}

// SchedulerOptions converts the physics settings into scheduler options
func (c *Config) SchedulerOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.TickRate = c.Physics.TickRate
	opts.Gravity = physics.Down.Mul(c.Physics.Gravity)
	opts.MaxIterations = c.Physics.MaxIterations
	opts.CollisionEpsilon = c.Physics.CollisionEpsilon
	return opts
}

// BarrelConfig converts the barrel settings into entity settings
func (c *Config) BarrelConfig() entity.BarrelConfig {
	return entity.BarrelConfig{
		Radius:       c.Game.BarrelRadius,
		Height:       c.Game.BarrelHeight,
		Mass:         c.Game.BarrelMass,
		VoxelSize:    c.Water.VoxelSize,
		WaterDensity: c.Water.Density,
		Gravity:      c.Physics.Gravity,
		Points:       c.Game.BarrelPoints,
	}
}

// CannonConfig converts the cannon settings into entity settings
func (c *Config) CannonConfig() entity.CannonConfig {
	cannon := entity.DefaultCannonConfig()
	cannon.Position = c.Game.CannonPosition
	cannon.MuzzleSpeed = c.Game.MuzzleSpeed
	cannon.Cooldown = time.Duration(c.Game.CooldownMillis) * time.Millisecond
	cannon.BallRadius = c.Game.CannonballRadius
	cannon.BallMass = c.Game.CannonballMass
	cannon.Gravity = c.Physics.Gravity
	return cannon
}

// WaterField builds the ocean surface and, when a flow strength is set, the
// flow pressure acting on floating bodies. flow is nil without a flow.
func (c *Config) WaterField() (*ocean.WaveField, *ocean.FlowPressure, error) {
	waves := make([]ocean.Wave, 0, len(c.Water.Waves))
	for _, w := range c.Water.Waves {
		waves = append(waves, ocean.Wave{
			Amplitude:  w.Amplitude,
			Wavelength: w.Wavelength,
			Speed:      w.Speed,
			Direction:  w.Direction,
			Phase:      w.Phase,
		})
	}

	field, err := ocean.NewWaveField(c.Water.Level, waves...)
	if err != nil {
		return nil, nil, fmt.Errorf("water surface: %w", err)
	}
	if c.Water.FlowStrength == 0 {
		return field, nil, nil
	}

	flow, err := ocean.NewFlowPressure(field, c.Water.FlowDirection, c.Water.FlowStrength, c.Water.FlowSlope)
	if err != nil {
		return nil, nil, fmt.Errorf("water flow: %w", err)
	}
	return field, flow, nil
}
