// Package search keeps the member directory in Meilisearch.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/ports"
	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	membersIndex = "community_members"
	defaultLimit = 20
	maxLimit     = 100
)

var ErrIndexUnavailable = errors.New("member index unavailable")

// MemberMeiliIndex implements ports.MemberIndex. Documents hold only what an
// anonymous viewer may see.
type MemberMeiliIndex struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
	closed  atomic.Bool
}

var _ ports.MemberIndex = (*MemberMeiliIndex)(nil)

// NewMemberMeiliIndex connects and configures the index. An unreachable server
// is not an error; the index reports unhealthy until a later probe succeeds.
func NewMemberMeiliIndex(url, apiKey string, logger *zap.Logger) *MemberMeiliIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MemberMeiliIndex{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger.Named("search"),
		done:   make(chan struct{}),
	}
	if _, err := m.client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
	} else {
		m.healthy.Store(true)
		m.configure()
	}
	go m.healthLoop(10 * time.Second)
	return m
}

func (m *MemberMeiliIndex) configure() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: membersIndex, PrimaryKey: "id"}); err != nil {
		m.logger.Debug("create index (may already exist)", zap.String("index", membersIndex), zap.Error(err))
	}
	searchable := []string{"name", "location", "profession"}
	if _, err := m.client.Index(membersIndex).UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attributes", zap.String("index", membersIndex), zap.Error(err))
	}
}

func (m *MemberMeiliIndex) healthLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			was := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !was {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configure()
			}
		}
	}
}

// Close stops the health monitor. It is safe to call more than once.
func (m *MemberMeiliIndex) Close() {
	if m.closed.CompareAndSwap(false, true) {
		close(m.done)
	}
}

func (m *MemberMeiliIndex) Healthy() bool {
	return m.healthy.Load()
}

func (m *MemberMeiliIndex) UpsertMember(_ context.Context, card ports.MemberCard) error {
	if !m.healthy.Load() {
		return ErrIndexUnavailable
	}
	_, err := m.client.Index(membersIndex).AddDocuments([]ports.MemberCard{card}, nil)
	return err
}

func (m *MemberMeiliIndex) RemoveMember(_ context.Context, profileID string) error {
	if !m.healthy.Load() {
		return ErrIndexUnavailable
	}
	_, err := m.client.Index(membersIndex).DeleteDocument(profileID, nil)
	return err
}

func (m *MemberMeiliIndex) SearchMembers(_ context.Context, query string, limit int) ([]ports.MemberCard, error) {
	if !m.healthy.Load() {
		return nil, ErrIndexUnavailable
	}
	resp, err := m.client.Index(membersIndex).Search(query, &meili.SearchRequest{Limit: int64(clampLimit(limit))})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}
	out := make([]ports.MemberCard, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if card, ok := hitToCard(hit); ok {
			out = append(out, card)
		}
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

func hitToCard(hit meili.Hit) (ports.MemberCard, bool) {
	card := ports.MemberCard{
		ProfileID:  decodeString(hit, "id"),
		Name:       decodeString(hit, "name"),
		Location:   decodeString(hit, "location"),
		Profession: decodeString(hit, "profession"),
	}
	return card, strings.TrimSpace(card.ProfileID) != ""
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
