package ports

import (
	"context"
	"errors"
	"io"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
)

var ErrRecordNotFound = errors.New("profile_record_not_found")

// RecordRepository persists committed records in their Document form.
type RecordRepository interface {
	LoadRecord(ctx context.Context, profileID string) (types.Document, error)
	SaveRecord(ctx context.Context, profileID string, doc types.Document) error
}

// PolicyRepository persists visibility policies. A profile without a stored
// policy loads as an empty map.
type PolicyRepository interface {
	LoadPolicy(ctx context.Context, profileID string) (map[string]bool, error)
	SavePolicy(ctx context.Context, profileID string, flags map[string]bool) error
	// SavePolicyKey writes one flag and leaves every other stored flag as is.
	SavePolicyKey(ctx context.Context, profileID string, key string, enabled bool) error
}

// AvatarStore keeps avatar blobs. The content is opaque; only the returned
// reference is recorded on the profile.
type AvatarStore interface {
	PutAvatar(ctx context.Context, profileID string, contentType string, body io.Reader) (string, error)
}

type MemberCard struct {
	ProfileID  string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Profession string `json:"profession"`
}

type MemberIndex interface {
	UpsertMember(ctx context.Context, card MemberCard) error
	RemoveMember(ctx context.Context, profileID string) error
	SearchMembers(ctx context.Context, query string, limit int) ([]MemberCard, error)
	Healthy() bool
}
