package catalog

import "errors"

var (
	// ErrUnknownModel indicates a model name absent from the registry.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownSolver indicates a solver name absent from the registry.
	ErrUnknownSolver = errors.New("unknown solver")

	// ErrUnknownClass indicates an unrecognised problem class name.
	ErrUnknownClass = errors.New("unknown problem class")

	// ErrInvalidName indicates a name that cannot be used as a job
	// directory component.
	ErrInvalidName = errors.New("invalid name")

	// ErrDuplicate indicates a name registered twice.
	ErrDuplicate = errors.New("already registered")

	// ErrReference indicates a model violating the single-reference invariant.
	ErrReference = errors.New("invalid reference value")
)
