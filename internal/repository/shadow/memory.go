package shadow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// MemoryStore keeps shadow documents in process.
type MemoryStore struct {
	// documents holds one shadow per device id.
	documents map[string]*gas.ShadowDocument
	// now stamps document changes.
	now func() time.Time
	// mu protects documents.
	mu sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*gas.ShadowDocument),
		now:       time.Now,
	}
}

// Get returns a copy of the device shadow.
func (s *MemoryStore) Get(ctx context.Context, deviceID string) (*gas.ShadowDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	document, ok := s.documents[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, deviceID)
	}

	return document.Clone(), nil
}

// MergeDesired merges delta into the desired section, creating the shadow if needed.
func (s *MemoryStore) MergeDesired(ctx context.Context, deviceID string, delta gas.Delta) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	document := s.document(deviceID)
	for actuator, state := range delta {
		document.Desired[actuator] = state
	}

	s.touch(document)

	return nil
}

// MergeReported merges attributes into the reported section, as the device would.
// A nil value removes the attribute, following shadow service semantics.
func (s *MemoryStore) MergeReported(ctx context.Context, deviceID string, reported map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	document := s.document(deviceID)
	for key, value := range reported {
		if value == nil {
			delete(document.Reported, key)
			continue
		}

		document.Reported[key] = value
	}

	s.touch(document)

	return nil
}

// document returns the shadow of deviceID, creating it. Callers hold mu.
func (s *MemoryStore) document(deviceID string) *gas.ShadowDocument {
	document, ok := s.documents[deviceID]
	if !ok {
		document = &gas.ShadowDocument{
			Desired:  map[string]any{},
			Reported: map[string]any{},
		}
		s.documents[deviceID] = document
	}

	return document
}

// touch bumps version and timestamp. Callers hold mu.
func (s *MemoryStore) touch(document *gas.ShadowDocument) {
	document.Version++
	document.Timestamp = s.now().Unix()
}
