package spike

import (
	"context"
	"sync"
	"time"
)

// BuildingLoadState previous tick aggregate for one building
type BuildingLoadState struct {
	BuildingID     int64     `json:"building_id"`
	PreviousLoadKW float64   `json:"previous_load_kw"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StateStore persists building load state; Get returns nil, nil when nothing is stored
type StateStore interface {
	Get(ctx context.Context, buildingID int64) (*BuildingLoadState, error)
	Save(ctx context.Context, state BuildingLoadState) error
}

// MemoryStore process-lifetime StateStore
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]BuildingLoadState
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]BuildingLoadState)}
}

func (m *MemoryStore) Get(_ context.Context, buildingID int64) (*BuildingLoadState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[buildingID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, state BuildingLoadState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.BuildingID] = state
	return nil
}
