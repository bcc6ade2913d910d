// pkg/render/renderer.go
package render

import (
	"context"

	"github.com/MansenC/BarrelShooter/pkg/entity"
	"github.com/MansenC/BarrelShooter/pkg/logging"
)

// NullRenderer logs draw calls at debug level and draws nothing.
type NullRenderer struct {
	logger *logging.Logger
}

// NewNullRenderer creates a new NullRenderer with structured logging.
func NewNullRenderer(logger *logging.Logger) *NullRenderer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &NullRenderer{logger: logger}
}

// Clear implements entity.Renderer.
func (d *NullRenderer) Clear() {}

// Present implements entity.Renderer.
func (d *NullRenderer) Present() {}

// RenderBarrel implements entity.Renderer.
func (d *NullRenderer) RenderBarrel(barrel *entity.Barrel) {
	if barrel == nil {
		return
	}
	d.logger.Debug(context.Background(), "RenderBarrel called",
		"barrel_id", uint64(barrel.GetID()),
		"position", barrel.GetPose().Position,
	)
}

// RenderCannonball implements entity.Renderer.
func (d *NullRenderer) RenderCannonball(ball *entity.Cannonball) {
	if ball == nil {
		return
	}
	d.logger.Debug(context.Background(), "RenderCannonball called",
		"cannonball_id", uint64(ball.GetID()),
		"position", ball.GetPose().Position,
	)
}

// RenderCannon implements entity.Renderer.
func (d *NullRenderer) RenderCannon(cannon *entity.Cannon) {
	if cannon == nil {
		return
	}
	d.logger.Debug(context.Background(), "RenderCannon called",
		"yaw", cannon.Yaw,
		"pitch", cannon.Pitch,
	)
}
