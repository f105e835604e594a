package services

import (
	"context"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
	"github.com/jacksonlee411/community-portal/pkg/uuidv7"
)

type SessionState string

const (
	StateViewing SessionState = "viewing"
	StateEditing SessionState = "editing"
)

// RecordSaver persists a committed record. ProfileService implements it.
type RecordSaver interface {
	SaveRecord(ctx context.Context, profileID string, record types.Record) error
}

// EditSession owns the committed record of one profile and, while editing, a
// draft copy. The committed record only changes through a successful Commit.
// It is not safe for concurrent use; callers keep one writer per profile.
type EditSession struct {
	id        string
	profileID string
	records   RecordStore
	saver     RecordSaver

	state     SessionState
	committed types.Record
	draft     types.Record
}

func NewEditSession(profileID string, records RecordStore, committed types.Record, saver RecordSaver) *EditSession {
	id, err := uuidv7.NewString()
	if err != nil {
		id = profileID
	}
	return &EditSession{
		id:        id,
		profileID: profileID,
		records:   records,
		saver:     saver,
		state:     StateViewing,
		committed: committed,
	}
}

func (s *EditSession) ID() string        { return s.id }
func (s *EditSession) ProfileID() string { return s.profileID }

func (s *EditSession) State() SessionState {
	return s.state
}

func (s *EditSession) Committed() types.Record {
	return s.committed
}

// Draft returns the working copy; ok is false outside editing.
func (s *EditSession) Draft() (types.Record, bool) {
	if s.state != StateEditing {
		return types.Record{}, false
	}
	return s.draft, true
}

// Dirty reports whether the draft differs from the committed record.
func (s *EditSession) Dirty() bool {
	return s.state == StateEditing && !s.draft.Equal(s.committed)
}

// StartEdit snapshots the committed record into a fresh draft. While already
// editing it does nothing and reports false, so pending changes survive.
func (s *EditSession) StartEdit() bool {
	if s.state == StateEditing {
		return false
	}
	s.draft = s.committed
	s.state = StateEditing
	return true
}

// UpdateDraft applies one field change. A rejected value leaves the draft as
// it was.
func (s *EditSession) UpdateDraft(key string, v types.Value) error {
	if s.state != StateEditing {
		return types.ErrNotEditing
	}
	next, err := s.records.Set(s.draft, key, v)
	if err != nil {
		return err
	}
	s.draft = next
	return nil
}

// Commit saves the draft and, once the save succeeds, makes it the committed
// record. A failed save keeps the session editing with the draft intact.
func (s *EditSession) Commit(ctx context.Context) error {
	if s.state != StateEditing {
		return types.ErrNotEditing
	}
	if s.saver != nil {
		if err := s.saver.SaveRecord(ctx, s.profileID, s.draft); err != nil {
			return err
		}
	}
	s.committed = s.draft
	s.draft = types.Record{}
	s.state = StateViewing
	return nil
}

// Discard drops the draft. Discarding while viewing is a no-op.
func (s *EditSession) Discard() {
	s.draft = types.Record{}
	s.state = StateViewing
}
