package persistence

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/ports"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL for the profile tables. It is idempotent.
func Schema() string { return schemaSQL }

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type RecordPGRepository struct {
	pool pgBeginner
}

func NewRecordPGRepository(pool pgBeginner) *RecordPGRepository {
	return &RecordPGRepository{pool: pool}
}

var _ ports.RecordRepository = (*RecordPGRepository)(nil)

func (r *RecordPGRepository) LoadRecord(ctx context.Context, profileID string) (types.Document, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, errors.New("profile_id is required")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var raw []byte
	if err := tx.QueryRow(ctx, `
	SELECT document
	FROM profile.records
	WHERE profile_id = $1
	`, profileID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrRecordNotFound
		}
		return nil, err
	}

	doc := types.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode profile document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// SaveRecord replaces the stored document. Concurrent writers are last-write-wins.
func (r *RecordPGRepository) SaveRecord(ctx context.Context, profileID string, doc types.Document) error {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return errors.New("profile_id is required")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode profile document: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
	INSERT INTO profile.records (profile_id, document)
	VALUES ($1, $2::jsonb)
	ON CONFLICT (profile_id) DO UPDATE
	SET document = EXCLUDED.document,
	    version = profile.records.version + 1,
	    updated_at = now()
	`, profileID, raw); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
