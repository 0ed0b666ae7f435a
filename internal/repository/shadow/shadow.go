package shadow

import (
	"context"
	"errors"

	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// Store reads device shadows and merges deltas into their desired section.
type Store interface {
	Get(ctx context.Context, deviceID string) (*gas.ShadowDocument, error)
	MergeDesired(ctx context.Context, deviceID string, delta gas.Delta) error
}

// ErrNotFound is returned when the device has no shadow.
var ErrNotFound = errors.New("shadow not found")
