package members

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Invitation is a pending roster entry waiting for the member to sign up.
type Invitation struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenantId"`
	Email        string     `json:"email"`
	BusinessName string     `json:"businessName"`
	ContactName  string     `json:"contactName"`
	Phone        *string    `json:"phone,omitempty"`
	TradeSlug    *string    `json:"tradeSlug,omitempty"`
	Token        string     `json:"-"`
	Status       string     `json:"status"`
	InvitedBy    uuid.UUID  `json:"invitedBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	AcceptedAt   *time.Time `json:"acceptedAt,omitempty"`
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

type CreateInvitationParams struct {
	TenantID     uuid.UUID
	Email        string
	BusinessName string
	ContactName  string
	Phone        *string
	TradeSlug    *string
	Token        string
	InvitedBy    uuid.UUID
	ExpiresAt    time.Time
}

// CreateInvitation inserts one roster entry. An email already invited for
// the tenant is skipped; the bool reports whether a row was written.
func (r *Repository) CreateInvitation(ctx context.Context, params CreateInvitationParams) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO member_invitations (tenant_id, email, business_name, contact_name, phone, trade_slug, token, status, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'invited', $8, $9)
		ON CONFLICT (tenant_id, email) DO NOTHING
	`, params.TenantID, params.Email, params.BusinessName, params.ContactName,
		params.Phone, params.TradeSlug, params.Token, params.InvitedBy, params.ExpiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListInvitations(ctx context.Context, tenantID uuid.UUID) ([]Invitation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, tenant_id, email, business_name, contact_name, phone, trade_slug, token, status, invited_by, created_at, expires_at, accepted_at
		FROM member_invitations
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invitations := make([]Invitation, 0)
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.Email, &inv.BusinessName, &inv.ContactName,
			&inv.Phone, &inv.TradeSlug, &inv.Token, &inv.Status, &inv.InvitedBy,
			&inv.CreatedAt, &inv.ExpiresAt, &inv.AcceptedAt); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}
