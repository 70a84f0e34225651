package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adlaunch/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	setup, err := json.Marshal(c.Setup)
	if err != nil {
		return fmt.Errorf("marshal campaign setup: %w", err)
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (owner_user_id, name, setup)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, c.OwnerUserID, c.Name, setup,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_user_id, name, setup, created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id)
	c, err := scanCampaign(row)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *CampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET name = $1, updated_at = now()
		WHERE id = $2
	`, c.Name, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSetup replaces the whole setup document.
func (r *CampaignRepo) UpdateSetup(ctx context.Context, id uuid.UUID, setup models.CampaignSetupState) error {
	b, err := json.Marshal(setup)
	if err != nil {
		return fmt.Errorf("marshal campaign setup: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE campaigns SET setup = $1, updated_at = now() WHERE id = $2`, b, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	return err
}

type CampaignFilter struct {
	OwnerUserID *uuid.UUID
	Search      *string
	Limit       int
	Offset      int
}

func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	query := `
		SELECT id, owner_user_id, name, setup, created_at, updated_at
		FROM campaigns
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.OwnerUserID != nil {
		where = append(where, fmt.Sprintf("owner_user_id = $%d", argIdx))
		args = append(args, *f.OwnerUserID)
		argIdx++
	}
	if f.Search != nil && *f.Search != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", argIdx))
		args = append(args, "%"+*f.Search+"%")
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var (
		c     models.Campaign
		setup []byte
	)
	if err := row.Scan(&c.ID, &c.OwnerUserID, &c.Name, &setup, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if len(setup) > 0 {
		if err := json.Unmarshal(setup, &c.Setup); err != nil {
			return nil, fmt.Errorf("decode setup of campaign %s: %w", c.ID, err)
		}
	}
	return &c, nil
}
