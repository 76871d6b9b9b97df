package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"brandkit/internal/domain"
	"brandkit/internal/infra"
	"brandkit/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a generation repository backed by PostgreSQL.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Create inserts gen and fills in its ID and CreatedAt.
func (r *GenerationRepositoryPG) Create(ctx context.Context, gen *domain.Generation) error {
	results := gen.Results
	if results == nil {
		results = domain.GenerationResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	styles := gen.Styles
	if styles == nil {
		styles = []string{}
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertGeneration,
		gen.OwnerID,
		gen.Prompt,
		gen.ModelID,
		string(gen.Mode),
		styles,
		gen.PredictionID,
		raw,
	)
	return row.Scan(&gen.ID, &gen.CreatedAt)
}

// GetByID returns the generation owned by ownerID.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, ownerID, id string) (*domain.Generation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByID, id, ownerID)
	gen, err := scanGeneration(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return gen, nil
}

// ListRecent returns up to limit generations, newest first.
func (r *GenerationRepositoryPG) ListRecent(ctx context.Context, ownerID string, limit int) ([]domain.Generation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListRecentGenerations, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *gen)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(s scanner) (*domain.Generation, error) {
	var (
		gen  domain.Generation
		mode string
		raw  []byte
	)
	if err := s.Scan(&gen.ID, &gen.OwnerID, &gen.Prompt, &gen.ModelID, &mode, &gen.Styles, &gen.PredictionID, &raw, &gen.CreatedAt); err != nil {
		return nil, err
	}
	gen.Mode = domain.Mode(mode)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &gen.Results); err != nil {
			return nil, fmt.Errorf("decode results for generation %s: %w", gen.ID, err)
		}
	}
	return &gen, nil
}
