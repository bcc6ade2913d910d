// pkg/config/env.go
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables read by ApplyEnvironmentOverrides
const (
	EnvTickRate   = "BARREL_TICK_RATE"
	EnvGravity    = "BARREL_GRAVITY"
	EnvWaterLevel = "BARREL_WATER_LEVEL"
	EnvBarrels    = "BARREL_BARRELS"
	EnvSeed       = "BARREL_SEED"
)

// ApplyEnvironmentOverrides replaces settings named by BARREL_* variables.
// Unset or empty variables leave the setting untouched.
func ApplyEnvironmentOverrides(config *Config) error {
	if err := overrideFloat(EnvTickRate, &config.Physics.TickRate); err != nil {
		return err
	}
	if err := overrideFloat(EnvGravity, &config.Physics.Gravity); err != nil {
		return err
	}
	if err := overrideFloat(EnvWaterLevel, &config.Water.Level); err != nil {
		return err
	}
	if err := overrideInt(EnvBarrels, &config.Game.Barrels); err != nil {
		return err
	}
	if value := os.Getenv(EnvSeed); value != "" {
		seed, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSeed, value, err)
		}
		config.Game.Seed = seed
	}
	return nil
}

func overrideFloat(key string, target *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*target = parsed
	return nil
}

func overrideInt(key string, target *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*target = parsed
	return nil
}
