// pkg/physics/errors.go
package physics

import "errors"

var (
	// ErrInvalidMass is returned when a body is given a non-positive mass.
	ErrInvalidMass = errors.New("mass must be positive")
	// ErrInvalidShape is returned for shapes with non-positive dimensions.
	ErrInvalidShape = errors.New("shape dimensions must be positive")
	// ErrEmptyVoxelGrid is returned when voxelization yields no valid cell.
	ErrEmptyVoxelGrid = errors.New("voxel grid has no valid cells")
)
