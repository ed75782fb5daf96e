package runtime

import "errors"

var (
	ErrRuntimeUnavailable = errors.New("generation runtime unavailable")
	ErrCommandTimeout     = errors.New("runtime command timed out")
	ErrCommandFailed      = errors.New("runtime command failed")
	ErrModelPull          = errors.New("model pull failed")
	ErrModelLoad          = errors.New("model load failed")
	ErrGenerationFailed   = errors.New("generation failed")
)
