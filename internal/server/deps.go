package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/community-portal/internal/config"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/ports"
	"github.com/jacksonlee411/community-portal/modules/profile/infrastructure/avatar"
	"github.com/jacksonlee411/community-portal/modules/profile/infrastructure/persistence"
	"github.com/jacksonlee411/community-portal/modules/profile/infrastructure/search"
	"github.com/jacksonlee411/community-portal/modules/profile/services"
	"go.uber.org/zap"
)

// Dependencies are the profile service's collaborators as selected by
// configuration. Close releases whatever was opened.
type Dependencies struct {
	Records  ports.RecordRepository
	Policies ports.PolicyRepository
	Avatars  ports.AvatarStore
	Index    ports.MemberIndex

	closers []func()
}

// OpenDependencies connects the configured backends. Empty URLs select the
// in-memory implementations; an empty MEILI_URL disables member search.
func OpenDependencies(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dependencies{}

	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("server: open postgres: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		d.Records = persistence.NewRecordPGRepository(pool)
	default:
		d.Records = persistence.NewRecordMemoryRepository()
	}

	if cfg.RedisURL != "" {
		repo, err := persistence.NewPolicyRedisRepository(cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("server: open redis: %w", err)
		}
		d.closers = append(d.closers, func() { _ = repo.Close() })
		d.Policies = repo
	} else {
		d.Policies = persistence.NewPolicyMemoryRepository()
	}

	if cfg.CloudinaryURL != "" {
		store, err := avatar.NewCloudinaryStore(cfg.CloudinaryURL, cfg.AvatarFolder)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Avatars = store
	} else {
		d.Avatars = avatar.NewMemoryStore()
	}

	if cfg.MeiliURL != "" {
		idx := search.NewMemberMeiliIndex(cfg.MeiliURL, cfg.MeiliAPIKey, logger)
		d.closers = append(d.closers, idx.Close)
		d.Index = idx
	}

	logger.Info("profile dependencies ready",
		zap.String("storage", cfg.StorageBackend),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Bool("cloudinary", cfg.CloudinaryURL != ""),
		zap.Bool("search", d.Index != nil),
	)
	return d, nil
}

func (d *Dependencies) Service(logger *zap.Logger) (*services.ProfileService, error) {
	if d == nil || d.Records == nil || d.Policies == nil {
		return nil, errors.New("server: dependencies not opened")
	}
	return services.NewProfileService(services.ProfileServiceOptions{
		Records:  d.Records,
		Policies: d.Policies,
		Avatars:  d.Avatars,
		Index:    d.Index,
		Logger:   logger,
	}), nil
}

func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
