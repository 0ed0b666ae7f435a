package eventlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// Store appends event records, overwriting any record with the same key.
type Store interface {
	Append(ctx context.Context, record *gas.EventRecord) error
}

// Reader fetches a single event record by key.
type Reader interface {
	Get(ctx context.Context, deviceID string, timestamp int64) (*gas.EventRecord, error)
}

// Repository is a Store that can also read records back.
type Repository interface {
	Store
	Reader
}

// ErrNotFound is returned when no record exists at the requested key.
var ErrNotFound = errors.New("event record not found")

// notFound wraps ErrNotFound with the record key.
func notFound(deviceID string, timestamp int64) error {
	return fmt.Errorf("%w: %s", ErrNotFound, gas.RecordKey(deviceID, timestamp))
}
