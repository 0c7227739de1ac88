package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lead does not exist in the tenant's scope.
	ErrNotFound = errors.New("lead not found")
	// ErrStatusChanged is returned when a conditional status write found the
	// lead in a different status than expected (lost an update race).
	ErrStatusChanged = errors.New("lead status changed concurrently")
	// ErrRegistrationNotFound is returned when a contractor has no
	// registration for a broadcast lead.
	ErrRegistrationNotFound = errors.New("broadcast registration not found")
	// ErrLeadClaimed is returned when a broadcast acceptance lost the race:
	// the lead is no longer pending.
	ErrLeadClaimed = errors.New("lead already claimed")
	// ErrLeadExpired is returned when a broadcast acceptance arrived after
	// the lead expired rather than after another contractor claimed it.
	ErrLeadExpired = errors.New("lead expired")
	// ErrAlreadyResponded is returned when a registration was already
	// accepted, declined, or expired.
	ErrAlreadyResponded = errors.New("registration already responded")
)

// DB is the subset of pgxpool.Pool the repository depends on. Tests substitute
// a pgxmock pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DB
}

func New(db DB) *Repository {
	return &Repository{db: db}
}

// Lead mirrors one row of the leads table.
type Lead struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	ReferrerID          uuid.UUID
	RecipientID         *uuid.UUID
	CustomerName        string
	CustomerPhone       string
	CustomerEmail       *string
	CustomerAddress     *string
	CustomerCity        *string
	CustomerState       *string
	CustomerZipCode     *string
	ServiceNeeded       string
	Urgency             string
	BudgetMin           *float64
	BudgetMax           *float64
	Notes               *string
	Status              string
	IsBroadcast         bool
	SharedAt            time.Time
	AcceptedAt          *time.Time
	ContactedAt         *time.Time
	QuotedAt            *time.Time
	CompletedAt         *time.Time
	ExpiresAt           *time.Time
	JobValue            *float64
	CommissionRate      float64
	CommissionAmount    *float64
	CommissionStatus    string
	CommissionLockedAt  *time.Time
	CommissionPaidAt    *time.Time
	ResponseTimeMinutes *int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const leadColumns = `id, tenant_id, referrer_id, recipient_id,
	customer_name, customer_phone, customer_email, customer_address, customer_city, customer_state, customer_zip_code,
	service_needed, urgency, budget_min, budget_max, notes,
	status, is_broadcast, shared_at, accepted_at, contacted_at, quoted_at, completed_at, expires_at,
	job_value, commission_rate, commission_amount, commission_status, commission_locked_at, commission_paid_at,
	response_time_minutes, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.TenantID, &lead.ReferrerID, &lead.RecipientID,
		&lead.CustomerName, &lead.CustomerPhone, &lead.CustomerEmail, &lead.CustomerAddress,
		&lead.CustomerCity, &lead.CustomerState, &lead.CustomerZipCode,
		&lead.ServiceNeeded, &lead.Urgency, &lead.BudgetMin, &lead.BudgetMax, &lead.Notes,
		&lead.Status, &lead.IsBroadcast, &lead.SharedAt, &lead.AcceptedAt, &lead.ContactedAt,
		&lead.QuotedAt, &lead.CompletedAt, &lead.ExpiresAt,
		&lead.JobValue, &lead.CommissionRate, &lead.CommissionAmount, &lead.CommissionStatus,
		&lead.CommissionLockedAt, &lead.CommissionPaidAt,
		&lead.ResponseTimeMinutes, &lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

type CreateLeadParams struct {
	TenantID        uuid.UUID
	ReferrerID      uuid.UUID
	RecipientID     *uuid.UUID
	RecipientIDs    []uuid.UUID // broadcast candidates; empty for direct leads
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   *string
	CustomerAddress *string
	CustomerCity    *string
	CustomerState   *string
	CustomerZipCode *string
	ServiceNeeded   string
	Urgency         string
	BudgetMin       *float64
	BudgetMax       *float64
	Notes           *string
	IsBroadcast     bool
	CommissionRate  float64
	SharedAt        time.Time
	ExpiresAt       time.Time
	ActorID         *uuid.UUID
}

// Create inserts the lead, its broadcast registrations, and the initial
// pending history entry in one transaction.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO leads (
			tenant_id, referrer_id, recipient_id,
			customer_name, customer_phone, customer_email, customer_address, customer_city, customer_state, customer_zip_code,
			service_needed, urgency, budget_min, budget_max, notes,
			status, is_broadcast, shared_at, expires_at, commission_rate, commission_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 'pending', $16, $17, $18, $19, 'pending')
		RETURNING `+leadColumns,
		params.TenantID, params.ReferrerID, params.RecipientID,
		params.CustomerName, params.CustomerPhone, params.CustomerEmail, params.CustomerAddress,
		params.CustomerCity, params.CustomerState, params.CustomerZipCode,
		params.ServiceNeeded, params.Urgency, params.BudgetMin, params.BudgetMax, params.Notes,
		params.IsBroadcast, params.SharedAt, params.ExpiresAt, params.CommissionRate,
	)

	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, err
	}

	for _, contractorID := range params.RecipientIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO lead_recipients (lead_id, contractor_id, status, notified_at)
			VALUES ($1, $2, 'pending', $3)
		`, lead.ID, contractorID, params.SharedAt); err != nil {
			return Lead{}, err
		}
	}

	if err := appendHistory(ctx, tx, historyParams{
		LeadID:    lead.ID,
		NewStatus: lead.Status,
		Note:      strPtr("Lead created"),
		ActorID:   params.ActorID,
		CreatedAt: params.SharedAt,
	}); err != nil {
		return Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, err
	}

	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id, tenantID uuid.UUID) (Lead, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

type ListParams struct {
	TenantID     uuid.UUID
	ContractorID *uuid.UUID
	Direction    string // "sent", "received", or "" for both
	Status       *string
	Offset       int
	Limit        int
}

// List returns leads ordered by shared_at descending with a total count.
// For a contractor, "received" includes broadcast leads the contractor is
// registered on.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, int, error) {
	where := "l.tenant_id = $1"
	args := []any{params.TenantID}

	if params.ContractorID != nil {
		args = append(args, *params.ContractorID)
		placeholder := fmt.Sprintf("$%d", len(args))
		switch params.Direction {
		case "sent":
			where += " AND l.referrer_id = " + placeholder
		case "received":
			where += ` AND (l.recipient_id = ` + placeholder + `
				OR EXISTS (SELECT 1 FROM lead_recipients lr WHERE lr.lead_id = l.id AND lr.contractor_id = ` + placeholder + `))`
		default:
			where += ` AND (l.referrer_id = ` + placeholder + ` OR l.recipient_id = ` + placeholder + `
				OR EXISTS (SELECT 1 FROM lead_recipients lr WHERE lr.lead_id = l.id AND lr.contractor_id = ` + placeholder + `))`
		}
	}

	if params.Status != nil {
		args = append(args, *params.Status)
		where += fmt.Sprintf(" AND l.status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM leads l WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM leads l
		WHERE %s
		ORDER BY l.shared_at DESC
		LIMIT $%d OFFSET $%d
	`, prefixColumns("l"), where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}

// prefixColumns qualifies the shared column list with a table alias.
func prefixColumns(alias string) string {
	out := ""
	for i, col := range leadColumnList() {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + col
	}
	return out
}

func leadColumnList() []string {
	return []string{
		"id", "tenant_id", "referrer_id", "recipient_id",
		"customer_name", "customer_phone", "customer_email", "customer_address", "customer_city", "customer_state", "customer_zip_code",
		"service_needed", "urgency", "budget_min", "budget_max", "notes",
		"status", "is_broadcast", "shared_at", "accepted_at", "contacted_at", "quoted_at", "completed_at", "expires_at",
		"job_value", "commission_rate", "commission_amount", "commission_status", "commission_locked_at", "commission_paid_at",
		"response_time_minutes", "created_at", "updated_at",
	}
}

func strPtr(s string) *string {
	return &s
}
