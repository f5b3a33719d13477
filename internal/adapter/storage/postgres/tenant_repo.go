package postgres

import (
	"context"
	"errors"
	"fmt"

	"acoruss-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TenantRepo implements ports.TenantRepository.
type TenantRepo struct {
	pool Pool
}

// NewTenantRepo creates a new TenantRepo.
func NewTenantRepo(pool Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

// Create inserts a new tenant into the database.
func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	query := `INSERT INTO tenants (id, slug, api_key, api_secret_enc, is_active, allowed_currencies, allowed_ips, webhook_url, default_callback_url, contact_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.Slug, t.APIKey, t.APISecretEnc, t.IsActive,
		t.AllowedCurrencies, t.AllowedIPs, t.WebhookURL, t.DefaultCallbackURL,
		t.ContactEmail, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// GetByID fetches a tenant by its UUID.
func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `SELECT id, slug, api_key, api_secret_enc, is_active, allowed_currencies, allowed_ips, webhook_url, default_callback_url, contact_email, created_at, updated_at
		FROM tenants WHERE id = $1`

	t := &domain.Tenant{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Slug, &t.APIKey, &t.APISecretEnc, &t.IsActive,
		&t.AllowedCurrencies, &t.AllowedIPs, &t.WebhookURL, &t.DefaultCallbackURL,
		&t.ContactEmail, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant by id: %w", err)
	}
	return t, nil
}

// GetByAPIKey fetches a tenant by its API key.
func (r *TenantRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Tenant, error) {
	query := `SELECT id, slug, api_key, api_secret_enc, is_active, allowed_currencies, allowed_ips, webhook_url, default_callback_url, contact_email, created_at, updated_at
		FROM tenants WHERE api_key = $1`

	t := &domain.Tenant{}
	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&t.ID, &t.Slug, &t.APIKey, &t.APISecretEnc, &t.IsActive,
		&t.AllowedCurrencies, &t.AllowedIPs, &t.WebhookURL, &t.DefaultCallbackURL,
		&t.ContactEmail, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant by api_key: %w", err)
	}
	return t, nil
}

// RegenerateCredentials rotates a tenant's API key and encrypted secret.
func (r *TenantRepo) RegenerateCredentials(ctx context.Context, id uuid.UUID, apiKey, apiSecretEnc string) error {
	query := `UPDATE tenants SET api_key=$1, api_secret_enc=$2, updated_at=NOW() WHERE id=$3`
	tag, err := r.pool.Exec(ctx, query, apiKey, apiSecretEnc, id)
	if err != nil {
		return fmt.Errorf("regenerate tenant credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("regenerate tenant credentials: tenant %s not found", id)
	}
	return nil
}
