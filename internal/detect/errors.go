package detect

import "errors"

var (
	// ErrWeightsUnavailable indicates the weights file could not be
	// fetched or is absent after a fetch attempt.
	ErrWeightsUnavailable = errors.New("model weights unavailable")

	// ErrModelLoad indicates the runtime or session failed to initialize.
	ErrModelLoad = errors.New("model load failed")
)
