package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/fieldmeta"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/ports"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
	"go.uber.org/zap"
)

var ErrAvatarsDisabled = errors.New("profile_avatars_disabled")

type ProfileServiceOptions struct {
	Registry *fieldmeta.Registry
	Records  ports.RecordRepository
	Policies ports.PolicyRepository
	// Avatars and Index are optional.
	Avatars ports.AvatarStore
	Index   ports.MemberIndex
	Logger  *zap.Logger
}

// ProfileService connects the record and policy stores to their repositories.
type ProfileService struct {
	registry   *fieldmeta.Registry
	records    RecordStore
	policies   PolicyStore
	recordRepo ports.RecordRepository
	policyRepo ports.PolicyRepository
	avatars    ports.AvatarStore
	index      ports.MemberIndex
	logger     *zap.Logger
}

func NewProfileService(opts ProfileServiceOptions) *ProfileService {
	registry := opts.Registry
	if registry == nil {
		registry = fieldmeta.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		registry:   registry,
		records:    NewRecordStore(registry),
		policies:   NewPolicyStore(registry),
		recordRepo: opts.Records,
		policyRepo: opts.Policies,
		avatars:    opts.Avatars,
		index:      opts.Index,
		logger:     logger,
	}
}

func (s *ProfileService) Registry() *fieldmeta.Registry { return s.registry }
func (s *ProfileService) Records() RecordStore           { return s.records }
func (s *ProfileService) Policies() PolicyStore          { return s.policies }

// LoadRecord returns types.ErrNotFound when nothing is stored for profileID.
func (s *ProfileService) LoadRecord(ctx context.Context, profileID string) (types.Record, error) {
	doc, err := s.recordRepo.LoadRecord(ctx, profileID)
	if err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) {
			return types.Record{}, types.ErrNotFound
		}
		s.logger.Error("load record failed", zap.String("profile_id", profileID), zap.Error(err))
		return types.Record{}, &types.StorageError{Op: "load_record", Err: err}
	}
	return s.records.Load(doc)
}

// OpenRecord is LoadRecord with the not-found fallback applied. found reports
// whether a stored record existed.
func (s *ProfileService) OpenRecord(ctx context.Context, profileID string) (record types.Record, found bool, err error) {
	record, err = s.LoadRecord(ctx, profileID)
	if errors.Is(err, types.ErrNotFound) {
		return s.records.Defaults(), false, nil
	}
	if err != nil {
		return types.Record{}, false, err
	}
	return record, true, nil
}

func (s *ProfileService) SaveRecord(ctx context.Context, profileID string, record types.Record) error {
	doc := s.records.ToPersistable(record)
	if _, err := s.records.Load(doc); err != nil {
		return err
	}
	if err := s.recordRepo.SaveRecord(ctx, profileID, doc); err != nil {
		s.logger.Error("save record failed", zap.String("profile_id", profileID), zap.Error(err))
		return &types.StorageError{Op: "save_record", Err: err}
	}
	if s.index != nil {
		policy, err := s.LoadPolicy(ctx, profileID)
		if err != nil {
			s.logger.Warn("skip member index update", zap.String("profile_id", profileID), zap.Error(err))
			return nil
		}
		s.reindex(ctx, profileID, record, policy)
	}
	return nil
}

// LoadPolicy never reports not-found; a missing policy is all-private.
func (s *ProfileService) LoadPolicy(ctx context.Context, profileID string) (types.Policy, error) {
	flags, err := s.policyRepo.LoadPolicy(ctx, profileID)
	if err != nil {
		s.logger.Error("load policy failed", zap.String("profile_id", profileID), zap.Error(err))
		return types.Policy{}, &types.StorageError{Op: "load_policy", Err: err}
	}
	return s.policies.Load(flags), nil
}

func (s *ProfileService) SavePolicy(ctx context.Context, profileID string, policy types.Policy) error {
	if err := s.policyRepo.SavePolicy(ctx, profileID, s.policies.ToPersistable(policy)); err != nil {
		s.logger.Error("save policy failed", zap.String("profile_id", profileID), zap.Error(err))
		return &types.StorageError{Op: "save_policy", Err: err}
	}
	return nil
}

// TogglePolicy flips one key and persists only that key at once; policy
// changes are not drafted.
func (s *ProfileService) TogglePolicy(ctx context.Context, profileID string, key string) (types.Policy, error) {
	current, err := s.LoadPolicy(ctx, profileID)
	if err != nil {
		return types.Policy{}, err
	}
	next, err := s.policies.Toggle(current, key)
	if err != nil {
		return current, err
	}
	enabled, _ := s.policies.Get(next, key)
	if err := s.policyRepo.SavePolicyKey(ctx, profileID, key, enabled); err != nil {
		s.logger.Error("save policy key failed", zap.String("profile_id", profileID), zap.String("key", key), zap.Error(err))
		return current, &types.StorageError{Op: "save_policy", Err: err}
	}
	if s.index != nil {
		record, found, err := s.OpenRecord(ctx, profileID)
		switch {
		case err != nil:
			s.logger.Warn("skip member index update", zap.String("profile_id", profileID), zap.Error(err))
		case found:
			s.reindex(ctx, profileID, record, next)
		}
	}
	return next, nil
}

// OpenSession starts a viewing session over the stored record, or over the
// defaults when none exists yet.
func (s *ProfileService) OpenSession(ctx context.Context, profileID string) (*EditSession, error) {
	record, _, err := s.OpenRecord(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return NewEditSession(profileID, s.records, record, s), nil
}

// UploadAvatar stores the blob and writes its reference into the session
// draft. The session must be editing.
func (s *ProfileService) UploadAvatar(ctx context.Context, session *EditSession, contentType string, body io.Reader) (string, error) {
	if session.State() != StateEditing {
		return "", types.ErrNotEditing
	}
	if s.avatars == nil {
		return "", ErrAvatarsDisabled
	}
	ref, err := s.avatars.PutAvatar(ctx, session.ProfileID(), contentType, body)
	if err != nil {
		s.logger.Error("avatar upload failed", zap.String("profile_id", session.ProfileID()), zap.Error(err))
		return "", &types.StorageError{Op: "put_avatar", Err: err}
	}
	if err := session.UpdateDraft(avatarField, types.Text(ref)); err != nil {
		return "", err
	}
	return ref, nil
}

// SearchMembers reports available=false when no index is configured or the
// index is unhealthy.
func (s *ProfileService) SearchMembers(ctx context.Context, query string, limit int) (cards []ports.MemberCard, available bool, err error) {
	if s.index == nil || !s.index.Healthy() {
		return []ports.MemberCard{}, false, nil
	}
	cards, err = s.index.SearchMembers(ctx, strings.TrimSpace(query), limit)
	if err != nil {
		s.logger.Warn("member search failed", zap.String("query", query), zap.Error(err))
		return []ports.MemberCard{}, false, nil
	}
	return cards, true, nil
}

const avatarField = "avatarRef"

func (s *ProfileService) reindex(ctx context.Context, profileID string, record types.Record, policy types.Policy) {
	if !policy.Enabled(fieldmeta.ProfileVisibleKey) {
		if err := s.index.RemoveMember(ctx, profileID); err != nil {
			s.logger.Warn("member index remove failed", zap.String("profile_id", profileID), zap.Error(err))
		}
		return
	}
	card := MemberCardFor(s.registry, profileID, record, policy)
	if err := s.index.UpsertMember(ctx, card); err != nil {
		s.logger.Warn("member index upsert failed", zap.String("profile_id", profileID), zap.Error(err))
	}
}

// MemberCardFor projects record as an anonymous viewer sees it.
func MemberCardFor(registry *fieldmeta.Registry, profileID string, record types.Record, policy types.Policy) ports.MemberCard {
	text := func(key string) string {
		if !registry.Exposed(key, policy) {
			return ""
		}
		v, _ := record.Value(key)
		return strings.TrimSpace(v.Display())
	}
	var location []string
	for _, key := range []string{"city", "country"} {
		if part := text(key); part != "" {
			location = append(location, part)
		}
	}
	return ports.MemberCard{
		ProfileID:  profileID,
		Name:       text("fullName"),
		Location:   strings.Join(location, ", "),
		Profession: text("occupation"),
	}
}
