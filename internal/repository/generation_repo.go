package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mithix/backend/internal/models"
)

type GenerationRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationRepo(pool *pgxpool.Pool) *GenerationRepo {
	return &GenerationRepo{pool: pool}
}

const generationColumns = `id, account_id, prompt, negative_prompt, model, style_preset,
	image_data, content_type, width, height, steps, cfg_scale, seed, settings, created_at`

func (r *GenerationRepo) CreateRecord(ctx context.Context, d *models.GenerationDraft) (*models.GenerationRecord, error) {
	var settings []byte
	if d.Settings != nil {
		var err error
		if settings, err = json.Marshal(d.Settings); err != nil {
			return nil, fmt.Errorf("marshal settings: %w", err)
		}
	}
	id := uuid.NewString()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO generated_images (id, account_id, prompt, negative_prompt, model, style_preset,
			image_data, content_type, width, height, steps, cfg_scale, seed, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+generationColumns,
		id, d.AccountID, d.Prompt, d.NegativePrompt, string(d.Model), d.StylePreset,
		d.ImageData, d.ContentType, d.Width, d.Height, d.Steps, d.CfgScale, d.Seed, settings)
	return scanRecord(row)
}

func (r *GenerationRepo) GetRecord(ctx context.Context, id string) (*models.GenerationRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+generationColumns+` FROM generated_images WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *GenerationRepo) ListRecordsByAccount(ctx context.Context, accountID string) ([]*models.GenerationRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+generationColumns+`
		FROM generated_images WHERE account_id = $1 ORDER BY created_at DESC, seq DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.GenerationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func scanRecord(row pgx.Row) (*models.GenerationRecord, error) {
	var (
		rec      models.GenerationRecord
		model    string
		settings []byte
	)
	err := row.Scan(&rec.ID, &rec.AccountID, &rec.Prompt, &rec.NegativePrompt, &model, &rec.StylePreset,
		&rec.ImageData, &rec.ContentType, &rec.Width, &rec.Height, &rec.Steps, &rec.CfgScale, &rec.Seed,
		&settings, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Model = models.ModelID(model)
	if len(settings) > 0 {
		rec.Settings = &models.GenerationSettings{}
		if err := json.Unmarshal(settings, rec.Settings); err != nil {
			return nil, fmt.Errorf("decode settings for %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}
