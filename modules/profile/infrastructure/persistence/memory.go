package persistence

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/ports"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
)

// RecordMemoryRepository stores documents as JSON so loads see the same shapes
// a database round trip produces.
type RecordMemoryRepository struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

var _ ports.RecordRepository = (*RecordMemoryRepository)(nil)

func NewRecordMemoryRepository() *RecordMemoryRepository {
	return &RecordMemoryRepository{docs: map[string][]byte{}}
}

func (r *RecordMemoryRepository) LoadRecord(_ context.Context, profileID string) (types.Document, error) {
	r.mu.RLock()
	raw, ok := r.docs[profileID]
	r.mu.RUnlock()
	if !ok {
		return nil, ports.ErrRecordNotFound
	}
	doc := types.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *RecordMemoryRepository) SaveRecord(_ context.Context, profileID string, doc types.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.docs[profileID] = raw
	r.mu.Unlock()
	return nil
}

type PolicyMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]map[string]bool
}

var _ ports.PolicyRepository = (*PolicyMemoryRepository)(nil)

func NewPolicyMemoryRepository() *PolicyMemoryRepository {
	return &PolicyMemoryRepository{flags: map[string]map[string]bool{}}
}

func (r *PolicyMemoryRepository) LoadPolicy(_ context.Context, profileID string) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.flags[profileID]))
	for k, v := range r.flags[profileID] {
		out[k] = v
	}
	return out, nil
}

func (r *PolicyMemoryRepository) SavePolicy(_ context.Context, profileID string, flags map[string]bool) error {
	copied := make(map[string]bool, len(flags))
	for k, v := range flags {
		copied[k] = v
	}
	r.mu.Lock()
	r.flags[profileID] = copied
	r.mu.Unlock()
	return nil
}

func (r *PolicyMemoryRepository) SavePolicyKey(_ context.Context, profileID string, key string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	flags, ok := r.flags[profileID]
	if !ok {
		flags = map[string]bool{}
		r.flags[profileID] = flags
	}
	flags[key] = enabled
	return nil
}
