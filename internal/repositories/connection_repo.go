package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adlaunch/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConnectionRepo struct {
	pool *pgxpool.Pool
}

func NewConnectionRepo(pool *pgxpool.Pool) *ConnectionRepo {
	return &ConnectionRepo{pool: pool}
}

const connectionColumns = `campaign_id, access_token, token_expires_at, business_id, business_name,
	ad_account_id, ad_account_name, ad_account_currency, page_id, instagram_id,
	payment_connected, admin_connected, admin_business_role, admin_ad_account_role,
	status, last_verified_at, created_at, updated_at`

func scanConnection(row pgx.Row) (*models.AdvertiserConnection, error) {
	var c models.AdvertiserConnection
	err := row.Scan(&c.CampaignID, &c.AccessToken, &c.TokenExpiresAt, &c.BusinessID, &c.BusinessName,
		&c.AdAccountID, &c.AdAccountName, &c.AdAccountCurrency, &c.PageID, &c.InstagramID,
		&c.PaymentConnected, &c.AdminConnected, &c.AdminBusinessRole, &c.AdminAdAccountRole,
		&c.Status, &c.LastVerifiedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConnectionRepo) GetByCampaign(ctx context.Context, campaignID uuid.UUID) (*models.AdvertiserConnection, error) {
	c, err := scanConnection(r.pool.QueryRow(ctx, `
		SELECT `+connectionColumns+` FROM advertiser_connections WHERE campaign_id = $1
	`, campaignID))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// Upsert writes every column; the campaign id is the key.
func (r *ConnectionRepo) Upsert(ctx context.Context, c *models.AdvertiserConnection) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO advertiser_connections (campaign_id, access_token, token_expires_at, business_id, business_name,
			ad_account_id, ad_account_name, ad_account_currency, page_id, instagram_id,
			payment_connected, admin_connected, admin_business_role, admin_ad_account_role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (campaign_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			token_expires_at = EXCLUDED.token_expires_at,
			business_id = EXCLUDED.business_id,
			business_name = EXCLUDED.business_name,
			ad_account_id = EXCLUDED.ad_account_id,
			ad_account_name = EXCLUDED.ad_account_name,
			ad_account_currency = EXCLUDED.ad_account_currency,
			page_id = EXCLUDED.page_id,
			instagram_id = EXCLUDED.instagram_id,
			payment_connected = EXCLUDED.payment_connected,
			admin_connected = EXCLUDED.admin_connected,
			admin_business_role = EXCLUDED.admin_business_role,
			admin_ad_account_role = EXCLUDED.admin_ad_account_role,
			status = EXCLUDED.status,
			updated_at = now()
		RETURNING created_at, updated_at
	`, c.CampaignID, c.AccessToken, c.TokenExpiresAt, c.BusinessID, c.BusinessName,
		c.AdAccountID, c.AdAccountName, c.AdAccountCurrency, c.PageID, c.InstagramID,
		c.PaymentConnected, c.AdminConnected, c.AdminBusinessRole, c.AdminAdAccountRole, c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *ConnectionRepo) UpdateFunding(ctx context.Context, campaignID uuid.UUID, paymentConnected bool, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE advertiser_connections
		SET payment_connected = $1, status = $2, last_verified_at = now(), updated_at = now()
		WHERE campaign_id = $3
	`, paymentConnected, status, campaignID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConnectionRepo) UpdateAdminAccess(ctx context.Context, campaignID uuid.UUID, access models.AdminAccess) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE advertiser_connections
		SET admin_connected = $1, admin_business_role = $2, admin_ad_account_role = $3,
		    last_verified_at = now(), updated_at = now()
		WHERE campaign_id = $4
	`, access.AdminConnected, access.BusinessRole, access.AdAccountRole, campaignID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConnectionRepo) SaveAdminSnapshot(ctx context.Context, s *models.AdminSnapshot) error {
	accessBytes, err := json.Marshal(s.Access)
	if err != nil {
		return fmt.Errorf("marshal admin access: %w", err)
	}
	var raw []byte
	if len(s.RawAdAccount) > 0 {
		raw = s.RawAdAccount
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO admin_snapshots (campaign_id, admin_connected, access, business_members_edge, raw_ad_account, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, s.CampaignID, s.Access.AdminConnected, accessBytes, s.BusinessMembersEdge, raw, s.CheckedAt,
	).Scan(&s.ID)
}

// ListWithSelectedAssets returns connections that hold a token and an ad account.
func (r *ConnectionRepo) ListWithSelectedAssets(ctx context.Context, limit int) ([]models.AdvertiserConnection, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+connectionColumns+` FROM advertiser_connections
		WHERE access_token <> '' AND ad_account_id IS NOT NULL
		ORDER BY last_verified_at ASC NULLS FIRST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conns := []models.AdvertiserConnection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}
