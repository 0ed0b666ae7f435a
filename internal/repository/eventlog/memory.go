package eventlog

import (
	"context"
	"sync"

	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// MemoryRepository keeps records in process.
type MemoryRepository struct {
	// records holds one record per key.
	records map[string]*gas.EventRecord
	// mu protects records.
	mu sync.RWMutex
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*gas.EventRecord),
	}
}

// Append stores a copy of the record.
func (r *MemoryRepository) Append(ctx context.Context, record *gas.EventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.Key()] = record.Clone()

	return nil
}

// Get returns a copy of the record at (deviceID, timestamp).
func (r *MemoryRepository) Get(ctx context.Context, deviceID string, timestamp int64) (*gas.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[gas.RecordKey(deviceID, timestamp)]
	if !ok {
		return nil, notFound(deviceID, timestamp)
	}

	return record.Clone(), nil
}

// Len returns the number of stored records.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}
