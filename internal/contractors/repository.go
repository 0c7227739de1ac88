package contractors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrContractorNotFound = errors.New("contractor not found")

// Contractor is one member business in an association's referral network.
// The counters are denormalized activity tallies; the leads tables stay the
// source of truth.
type Contractor struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	BusinessName         string
	ContactName          string
	Email                string
	Phone                *string
	TradeID              *uuid.UUID
	ServiceArea          *string
	LicenseNumber        *string
	Status               string
	LeadsSentCount       int
	LeadsReceivedCount   int
	JobsWonCount         int
	TotalRevenue         float64
	TotalCommissionOwed  float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

const contractorColumns = `id, tenant_id, business_name, contact_name, email, phone, trade_id,
	service_area, license_number, status,
	leads_sent_count, leads_received_count, jobs_won_count, total_revenue, total_commission_owed,
	created_at, updated_at`

func scanContractor(row pgx.Row) (Contractor, error) {
	var c Contractor
	err := row.Scan(
		&c.ID, &c.TenantID, &c.BusinessName, &c.ContactName, &c.Email, &c.Phone, &c.TradeID,
		&c.ServiceArea, &c.LicenseNumber, &c.Status,
		&c.LeadsSentCount, &c.LeadsReceivedCount, &c.JobsWonCount, &c.TotalRevenue, &c.TotalCommissionOwed,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
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

func (r *Repository) GetByID(ctx context.Context, id, tenantID uuid.UUID) (Contractor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+contractorColumns+` FROM contractors WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)

	c, err := scanContractor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contractor{}, ErrContractorNotFound
	}
	return c, err
}

type SearchParams struct {
	TenantID  uuid.UUID
	TradeID   *uuid.UUID
	Query     string // matches business name or service area
	ExcludeID *uuid.UUID
	Offset    int
	Limit     int
}

// Search lists active contractors in the tenant's network, most active
// referrers first.
func (r *Repository) Search(ctx context.Context, params SearchParams) ([]Contractor, int, error) {
	where := "tenant_id = $1 AND status = 'active'"
	args := []any{params.TenantID}

	if params.TradeID != nil {
		args = append(args, *params.TradeID)
		where += fmt.Sprintf(" AND trade_id = $%d", len(args))
	}
	if params.Query != "" {
		args = append(args, "%"+params.Query+"%")
		where += fmt.Sprintf(" AND (business_name ILIKE $%d OR service_area ILIKE $%d)", len(args), len(args))
	}
	if params.ExcludeID != nil {
		args = append(args, *params.ExcludeID)
		where += fmt.Sprintf(" AND id != $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM contractors WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM contractors
		WHERE %s
		ORDER BY leads_sent_count DESC, business_name ASC
		LIMIT $%d OFFSET $%d
	`, contractorColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Contractor, 0)
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

type UpdateProfileParams struct {
	BusinessName  string
	ContactName   string
	Phone         *string
	TradeID       *uuid.UUID
	ServiceArea   *string
	LicenseNumber *string
}

func (r *Repository) UpdateProfile(ctx context.Context, id, tenantID uuid.UUID, params UpdateProfileParams) (Contractor, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE contractors SET
			business_name = $1, contact_name = $2, phone = $3, trade_id = $4,
			service_area = $5, license_number = $6, updated_at = NOW()
		WHERE id = $7 AND tenant_id = $8
		RETURNING `+contractorColumns,
		params.BusinessName, params.ContactName, params.Phone, params.TradeID,
		params.ServiceArea, params.LicenseNumber, id, tenantID,
	)

	c, err := scanContractor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contractor{}, ErrContractorNotFound
	}
	return c, err
}

// CountActive returns how many of the given ids are active members of the
// tenant's network.
func (r *Repository) CountActive(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM contractors
		WHERE tenant_id = $1 AND status = 'active' AND id = ANY($2)
	`, tenantID, ids).Scan(&count)
	return count, err
}

func (r *Repository) IncrementLeadsSent(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.increment(ctx, tenantID, id, "leads_sent_count = leads_sent_count + 1")
}

func (r *Repository) IncrementLeadsReceived(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.increment(ctx, tenantID, id, "leads_received_count = leads_received_count + 1")
}

func (r *Repository) IncrementJobsWon(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.increment(ctx, tenantID, id, "jobs_won_count = jobs_won_count + 1")
}

func (r *Repository) increment(ctx context.Context, tenantID, id uuid.UUID, set string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE contractors SET "+set+", updated_at = NOW() WHERE id = $1 AND tenant_id = $2",
		id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContractorNotFound
	}
	return nil
}

// RecordJobTotals adds the job revenue to the winner and the commission owed
// to the referrer.
func (r *Repository) RecordJobTotals(ctx context.Context, tenantID, referrerID, winnerID uuid.UUID, jobValue, commission float64) error {
	if _, err := r.db.Exec(ctx, `
		UPDATE contractors SET total_revenue = total_revenue + $1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3
	`, jobValue, winnerID, tenantID); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		UPDATE contractors SET total_commission_owed = total_commission_owed + $1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3
	`, commission, referrerID, tenantID)
	return err
}
