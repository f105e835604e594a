package avatar

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/ports"
	"github.com/jacksonlee411/community-portal/pkg/uuidv7"
)

// MemoryStore keeps blobs in process. References look like
// memory://avatars/<profile>/<uuid>.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

type Blob struct {
	ContentType string
	Data        []byte
}

var _ ports.AvatarStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string]Blob{}}
}

func (s *MemoryStore) PutAvatar(_ context.Context, profileID string, contentType string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	id, err := uuidv7.NewString()
	if err != nil {
		return "", err
	}
	ref := "memory://avatars/" + profileID + "/" + id
	s.mu.Lock()
	s.blobs[ref] = Blob{ContentType: contentType, Data: buf.Bytes()}
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryStore) Get(ref string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[ref]
	return b, ok
}
