package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/adlaunch/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdRepo struct {
	pool *pgxpool.Pool
}

func NewAdRepo(pool *pgxpool.Pool) *AdRepo {
	return &AdRepo{pool: pool}
}

const adColumns = `id, campaign_id, name, status, review_status, selected_copy_index, selected_creative_index,
	platform_ad_id, publish_attempt, last_error, published_at, created_at, updated_at`

func scanAd(row pgx.Row) (*models.Ad, error) {
	var a models.Ad
	err := row.Scan(&a.ID, &a.CampaignID, &a.Name, &a.Status, &a.ReviewStatus, &a.SelectedCopyIndex, &a.SelectedCreativeIndex,
		&a.PlatformAdID, &a.PublishAttempt, &a.LastError, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AdRepo) Create(ctx context.Context, a *models.Ad) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO ads (campaign_id, name, status, review_status, selected_copy_index, selected_creative_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, a.CampaignID, a.Name, a.Status, a.ReviewStatus, a.SelectedCopyIndex, a.SelectedCreativeIndex,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AdRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	a, err := scanAd(r.pool.QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (r *AdRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Ad, error) {
	return r.list(ctx, `SELECT `+adColumns+` FROM ads WHERE campaign_id = $1 ORDER BY created_at DESC`, campaignID)
}

// CompareAndSetStatus writes the new status only if the row still has the expected one.
// It reports false when another writer got there first.
func (r *AdRepo) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE ads SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimForPublish moves the ad from the expected status to pending_review and opens a
// new publish attempt. The platform id and review result of earlier attempts are cleared
// in the same write. It reports false when the ad is no longer in the expected status.
func (r *AdRepo) ClaimForPublish(ctx context.Context, id uuid.UUID, from string) (int, bool, error) {
	var attempt int
	err := r.pool.QueryRow(ctx, `
		UPDATE ads SET status = $1, platform_ad_id = NULL, review_status = $2, last_error = NULL,
		       publish_attempt = publish_attempt + 1, updated_at = now()
		WHERE id = $3 AND status = $4
		RETURNING publish_attempt
	`, models.AdStatusPendingReview, models.ReviewNotSubmitted, id, from).Scan(&attempt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return attempt, true, nil
}

// MarkPublished records the platform id of an ad that is still pending review.
// It reports false when the ad left pending_review in the meantime.
func (r *AdRepo) MarkPublished(ctx context.Context, id uuid.UUID, platformAdID, reviewStatus string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE ads SET platform_ad_id = $1, review_status = $2, last_error = NULL,
		       published_at = COALESCE(published_at, now()), updated_at = now()
		WHERE id = $3 AND status = $4
	`, platformAdID, reviewStatus, id, models.AdStatusPendingReview)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AdRepo) SetLastError(ctx context.Context, id uuid.UUID, msg *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE ads SET last_error = $1, updated_at = now() WHERE id = $2`, msg, id)
	return err
}

func (r *AdRepo) UpdateReviewStatus(ctx context.Context, id uuid.UUID, reviewStatus string) error {
	_, err := r.pool.Exec(ctx, `UPDATE ads SET review_status = $1, updated_at = now() WHERE id = $2`, reviewStatus, id)
	return err
}

func (r *AdRepo) UpdateSelection(ctx context.Context, id uuid.UUID, copyIndex, creativeIndex *int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE ads SET selected_copy_index = $1, selected_creative_index = $2, updated_at = now()
		WHERE id = $3
	`, copyIndex, creativeIndex, id)
	return err
}

func (r *AdRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ads WHERE id = $1`, id)
	return err
}

// HasLiveAds reports ads that are live or waiting for review.
func (r *AdRepo) HasLiveAds(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM ads WHERE campaign_id = $1 AND status = ANY($2))
	`, campaignID, []string{models.AdStatusActive, models.AdStatusLearning, models.AdStatusPendingReview}).Scan(&exists)
	return exists, err
}

// ListUnconfirmedPublishes returns ads claimed for publishing that never recorded a platform id.
func (r *AdRepo) ListUnconfirmedPublishes(ctx context.Context, olderThan time.Duration, limit int) ([]models.Ad, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `
		SELECT `+adColumns+` FROM ads
		WHERE status = $1 AND platform_ad_id IS NULL AND updated_at < $2
		ORDER BY updated_at ASC LIMIT $3
	`, models.AdStatusPendingReview, time.Now().Add(-olderThan), limit)
}

func (r *AdRepo) ListInReview(ctx context.Context, limit int) ([]models.Ad, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `
		SELECT `+adColumns+` FROM ads
		WHERE status = $1 AND platform_ad_id IS NOT NULL
		ORDER BY updated_at ASC LIMIT $2
	`, models.AdStatusPendingReview, limit)
}

func (r *AdRepo) list(ctx context.Context, query string, args ...any) ([]models.Ad, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ads := []models.Ad{}
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		ads = append(ads, *a)
	}
	return ads, rows.Err()
}
