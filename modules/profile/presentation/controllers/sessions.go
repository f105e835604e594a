package controllers

import (
	"context"
	"sync"

	"github.com/jacksonlee411/community-portal/modules/profile/services"
)

// SessionOpener starts a viewing session for a profile.
type SessionOpener interface {
	OpenSession(ctx context.Context, profileID string) (*services.EditSession, error)
}

// SessionRegistry holds at most one edit session per profile and runs every
// operation on it under that profile's lock. A session that ends in Viewing
// is dropped, so the next edit starts from the stored record. Slots exist only
// while a session is open or a caller holds the lock.
type SessionRegistry struct {
	opener SessionOpener

	mu    sync.Mutex
	slots map[string]*sessionSlot
}

type sessionSlot struct {
	mu      sync.Mutex
	refs    int
	session *services.EditSession
}

func NewSessionRegistry(opener SessionOpener) *SessionRegistry {
	return &SessionRegistry{opener: opener, slots: map[string]*sessionSlot{}}
}

func (r *SessionRegistry) acquire(profileID string) *sessionSlot {
	r.mu.Lock()
	s, ok := r.slots[profileID]
	if !ok {
		s = &sessionSlot{}
		r.slots[profileID] = s
	}
	s.refs++
	r.mu.Unlock()

	s.mu.Lock()
	return s
}

func (r *SessionRegistry) release(profileID string, s *sessionSlot) {
	r.mu.Lock()
	s.refs--
	if s.refs == 0 && s.session == nil {
		delete(r.slots, profileID)
	}
	r.mu.Unlock()
	s.mu.Unlock()
}

// Do runs fn with the profile's session, opening one when none is active.
func (r *SessionRegistry) Do(ctx context.Context, profileID string, fn func(*services.EditSession) error) error {
	slot := r.acquire(profileID)
	defer r.release(profileID, slot)

	if slot.session == nil {
		sess, err := r.opener.OpenSession(ctx, profileID)
		if err != nil {
			return err
		}
		slot.session = sess
	}
	err := fn(slot.session)
	if slot.session.State() == services.StateViewing {
		slot.session = nil
	}
	return err
}

// Exclusive runs fn under the profile's lock without touching its session.
// Writes outside the edit protocol, such as privacy toggles, go through here.
func (r *SessionRegistry) Exclusive(profileID string, fn func() error) error {
	slot := r.acquire(profileID)
	defer r.release(profileID, slot)
	return fn()
}

// Active reports whether profileID has a session in Editing.
func (r *SessionRegistry) Active(profileID string) bool {
	slot := r.acquire(profileID)
	defer r.release(profileID, slot)
	return slot.session != nil
}

func (r *SessionRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}
