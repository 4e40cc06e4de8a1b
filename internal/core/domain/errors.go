package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidScale marks a scale factor outside the accepted set reaching
	// the orchestrator. It is a caller bug, never recovered by fallback.
	ErrInvalidScale = errors.New("scale factor must be one of 2, 4 or 8")
	// ErrProcessingFailed is the single generic failure surfaced when no
	// engine of any kind could produce an output.
	ErrProcessingFailed = errors.New("image processing failed")
)

// EngineError wraps a failure local to one engine. The orchestrator absorbs
// these by advancing its fallback chain; any other error propagates.
type EngineError struct {
	Engine string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Engine, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError marks err as recoverable by the fallback chain.
func NewEngineError(engine string, err error) error {
	return &EngineError{Engine: engine, Err: err}
}

// IsEngineError reports whether err is recoverable by advancing the chain.
func IsEngineError(err error) bool {
	var engineErr *EngineError
	return errors.As(err, &engineErr)
}
