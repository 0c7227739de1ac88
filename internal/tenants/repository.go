package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrTenantNotFound = errors.New("tenant not found")

// Settings is the per-association configuration blob stored as jsonb.
// Missing keys fall back to defaults, so old rows keep working when new
// settings are introduced.
type Settings struct {
	CommissionRate         float64 `json:"commissionRate"`
	AutoDeclineHours       int     `json:"autoDeclineHours"`
	DisputePeriodDays      int     `json:"disputePeriodDays"`
	AllowBroadcastLeads    *bool   `json:"allowBroadcastLeads,omitempty"`
	MaxBroadcastRecipients int     `json:"maxBroadcastRecipients"`
}

// DefaultSettings are applied to new associations and fill gaps in stored
// settings blobs.
func DefaultSettings() Settings {
	allow := true
	return Settings{
		CommissionRate:         10,
		AutoDeclineHours:       2,
		DisputePeriodDays:      7,
		AllowBroadcastLeads:    &allow,
		MaxBroadcastRecipients: 5,
	}
}

// Tenant is one trade association on the platform.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	LogoURL   *string
	Settings  Settings
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DB is the subset of pgxpool.Pool this module uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return r.get(ctx, `SELECT id, name, slug, logo_url, settings, created_at, updated_at FROM tenants WHERE id = $1`, id)
}

func (r *Repository) GetBySlug(ctx context.Context, slug string) (Tenant, error) {
	return r.get(ctx, `SELECT id, name, slug, logo_url, settings, created_at, updated_at FROM tenants WHERE slug = $1`, slug)
}

func (r *Repository) get(ctx context.Context, query string, arg any) (Tenant, error) {
	var tenant Tenant
	var raw []byte
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.LogoURL, &raw,
		&tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, ErrTenantNotFound
	}
	if err != nil {
		return Tenant{}, err
	}

	tenant.Settings = DefaultSettings()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &tenant.Settings); err != nil {
			return Tenant{}, err
		}
	}
	if tenant.Settings.AllowBroadcastLeads == nil {
		allow := true
		tenant.Settings.AllowBroadcastLeads = &allow
	}
	return tenant, nil
}

func (r *Repository) UpdateSettings(ctx context.Context, id uuid.UUID, settings Settings) (Tenant, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return Tenant{}, err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE tenants SET settings = $1, updated_at = NOW() WHERE id = $2
	`, raw, id)
	if err != nil {
		return Tenant{}, err
	}
	if tag.RowsAffected() == 0 {
		return Tenant{}, ErrTenantNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) UpdateBranding(ctx context.Context, id uuid.UUID, name string, logoURL *string) (Tenant, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tenants SET name = $1, logo_url = $2, updated_at = NOW() WHERE id = $3
	`, name, logoURL, id)
	if err != nil {
		return Tenant{}, err
	}
	if tag.RowsAffected() == 0 {
		return Tenant{}, ErrTenantNotFound
	}
	return r.GetByID(ctx, id)
}
