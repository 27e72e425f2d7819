package interfaces

import (
	"context"
	"errors"
)

// ErrInferenceUnavailable is returned when the bound classifier cannot run at all
var ErrInferenceUnavailable = errors.New("inference unavailable")

// Classifier labels one payload
type Classifier interface {
	// Classify returns a non-empty single-line label for payload.
	// name is the job identifier and may be used to name scratch files.
	Classify(ctx context.Context, name string, payload []byte) (string, error)
}
