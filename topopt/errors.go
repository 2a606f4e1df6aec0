package topopt

import "errors"

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("topopt: invalid configuration")

	// ErrDimensionMismatch indicates a force vector whose length differs from
	// the DOF count of the mesh.
	ErrDimensionMismatch = errors.New("topopt: dimension mismatch")

	// ErrDofOutOfRange indicates a fixed DOF outside [0, TotalDofs).
	ErrDofOutOfRange = errors.New("topopt: DOF index out of range")
)
