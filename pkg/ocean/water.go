// pkg/ocean/water.go
package ocean

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidWave is returned for waves that cannot be evaluated.
var ErrInvalidWave = errors.New("invalid wave")

// FlatWater is a still surface at a constant height.
type FlatWater struct {
	Level float64
}

// Height implements physics.HeightField.
func (w FlatWater) Height(x, z, t float64) float64 {
	return w.Level
}

// Wave is a single directional sine travelling across the surface.
type Wave struct {
	Amplitude  float64
	Wavelength float64
	Speed      float64
	Direction  mgl64.Vec2 // horizontal travel direction on the XZ plane
	Phase      float64
}

func (w Wave) number() float64 {
	return 2 * math.Pi / w.Wavelength
}

func (w Wave) argument(x, z, t float64) float64 {
	k := w.number()
	along := w.Direction.X()*x + w.Direction.Y()*z
	return k*(along-w.Speed*t) + w.Phase
}

// WaveField is a deterministic sum of directional waves around a rest level.
// Crests rise toward -Y, so a positive wave displacement lowers the height value.
type WaveField struct {
	Level float64
	waves []Wave
}

// NewWaveField validates and normalizes the given waves.
func NewWaveField(level float64, waves ...Wave) (*WaveField, error) {
	field := &WaveField{Level: level, waves: make([]Wave, 0, len(waves))}
	for i, w := range waves {
		if !(w.Wavelength > 0) {
			return nil, fmt.Errorf("wave %d wavelength %v: %w", i, w.Wavelength, ErrInvalidWave)
		}
		if w.Direction.Len() == 0 {
			return nil, fmt.Errorf("wave %d has no direction: %w", i, ErrInvalidWave)
		}
		w.Direction = w.Direction.Normalize()
		field.waves = append(field.waves, w)
	}
	return field, nil
}

// Waves returns the normalized wave components.
func (f *WaveField) Waves() []Wave { return f.waves }

// Height implements physics.HeightField.
func (f *WaveField) Height(x, z, t float64) float64 {
	displacement := 0.0
	for _, w := range f.waves {
		displacement += w.Amplitude * math.Sin(w.argument(x, z, t))
	}
	return f.Level - displacement
}

// Gradient returns the partial derivatives of Height along X and Z.
func (f *WaveField) Gradient(x, z, t float64) mgl64.Vec2 {
	var grad mgl64.Vec2
	for _, w := range f.waves {
		slope := -w.Amplitude * w.number() * math.Cos(w.argument(x, z, t))
		grad = grad.Add(w.Direction.Mul(slope))
	}
	return grad
}

// FlowPressure pushes floating bodies along a fixed horizontal direction.
// Its magnitude grows where the surface climbs toward the body along that
// direction, scaled by Slope.
type FlowPressure struct {
	Field     *WaveField
	Direction mgl64.Vec3
	Strength  float64
	Slope     float64
}

// NewFlowPressure builds a flow field over waves. The direction is projected
// onto the XZ plane.
func NewFlowPressure(field *WaveField, direction mgl64.Vec3, strength, slope float64) (*FlowPressure, error) {
	if field == nil {
		return nil, errors.New("flow pressure requires a wave field")
	}
	planar := mgl64.Vec3{direction.X(), 0, direction.Z()}
	if planar.Len() == 0 {
		return nil, fmt.Errorf("flow direction %v has no horizontal part: %w", direction, ErrInvalidWave)
	}
	return &FlowPressure{
		Field:     field,
		Direction: planar.Normalize(),
		Strength:  strength,
		Slope:     slope,
	}, nil
}

// Flow implements physics.FlowField.
func (p *FlowPressure) Flow(x, z, t float64) mgl64.Vec3 {
	grad := p.Field.Gradient(x, z, t)
	// Height decreases where the surface rises, so a negative derivative
	// along the direction means a face leaning onto the body.
	rise := -(grad.X()*p.Direction.X() + grad.Y()*p.Direction.Z())
	scale := math.Max(0, 1+p.Slope*rise)
	return p.Direction.Mul(p.Strength * scale)
}
