package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Registration mirrors one row of the lead_recipients table.
type Registration struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	ContractorID uuid.UUID
	Status       string
	NotifiedAt   time.Time
	ViewedAt     *time.Time
	RespondedAt  *time.Time
}

const registrationColumns = `id, lead_id, contractor_id, status, notified_at, viewed_at, responded_at`

func scanRegistration(row pgx.Row) (Registration, error) {
	var reg Registration
	err := row.Scan(&reg.ID, &reg.LeadID, &reg.ContractorID, &reg.Status,
		&reg.NotifiedAt, &reg.ViewedAt, &reg.RespondedAt)
	return reg, err
}

// ListRegistrations returns all broadcast registrations for a lead.
func (r *Repository) ListRegistrations(ctx context.Context, leadID uuid.UUID) ([]Registration, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+registrationColumns+`
		FROM lead_recipients
		WHERE lead_id = $1
		ORDER BY notified_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// MarkViewed stamps the first time a contractor opened a broadcast lead.
func (r *Repository) MarkViewed(ctx context.Context, leadID, contractorID uuid.UUID, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE lead_recipients SET viewed_at = $1
		WHERE lead_id = $2 AND contractor_id = $3 AND viewed_at IS NULL
	`, now, leadID, contractorID)
	return err
}

type AcceptBroadcastParams struct {
	LeadID       uuid.UUID
	TenantID     uuid.UUID
	ContractorID uuid.UUID
	Now          time.Time
}

// AcceptBroadcast resolves the first-acceptance race in one transaction. The
// lead row is locked, the winner's registration flips pending to accepted,
// every other open registration is declined, and the lead itself moves to
// accepted. Losers get ErrLeadClaimed; acceptances after the response
// deadline get ErrLeadExpired.
func (r *Repository) AcceptBroadcast(ctx context.Context, params AcceptBroadcastParams) (Lead, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	var leadStatus string
	var sharedAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT status, shared_at FROM leads
		WHERE id = $1 AND tenant_id = $2 AND is_broadcast = TRUE
		FOR UPDATE
	`, params.LeadID, params.TenantID).Scan(&leadStatus, &sharedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	if leadStatus == "expired" {
		return Lead{}, ErrLeadExpired
	}
	if leadStatus != "pending" {
		return Lead{}, ErrLeadClaimed
	}

	tag, err := tx.Exec(ctx, `
		UPDATE lead_recipients SET status = 'accepted', responded_at = $1
		WHERE lead_id = $2 AND contractor_id = $3 AND status = 'pending'
	`, params.Now, params.LeadID, params.ContractorID)
	if err != nil {
		return Lead{}, err
	}
	if tag.RowsAffected() == 0 {
		var regStatus string
		probeErr := tx.QueryRow(ctx, `
			SELECT status FROM lead_recipients WHERE lead_id = $1 AND contractor_id = $2
		`, params.LeadID, params.ContractorID).Scan(&regStatus)
		if errors.Is(probeErr, pgx.ErrNoRows) {
			return Lead{}, ErrRegistrationNotFound
		}
		if probeErr != nil {
			return Lead{}, probeErr
		}
		return Lead{}, ErrAlreadyResponded
	}

	if _, err := tx.Exec(ctx, `
		UPDATE lead_recipients SET status = 'declined', responded_at = $1
		WHERE lead_id = $2 AND status = 'pending'
	`, params.Now, params.LeadID); err != nil {
		return Lead{}, err
	}

	responseMinutes := int(params.Now.Sub(sharedAt) / time.Minute)
	if responseMinutes < 0 {
		responseMinutes = 0
	}

	row := tx.QueryRow(ctx, `
		UPDATE leads SET
			status = 'accepted',
			accepted_at = $1,
			response_time_minutes = $2,
			updated_at = $1
		WHERE id = $3 AND status = 'pending'
		RETURNING `+leadColumns,
		params.Now, responseMinutes, params.LeadID,
	)

	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, err
	}

	if err := appendHistory(ctx, tx, historyParams{
		LeadID:         lead.ID,
		PreviousStatus: strPtr("pending"),
		NewStatus:      "accepted",
		Note:           strPtr("Broadcast lead claimed"),
		ActorID:        &params.ContractorID,
		CreatedAt:      params.Now,
	}); err != nil {
		return Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, err
	}

	return lead, nil
}

// DeclineBroadcast closes a single contractor's registration without touching
// the lead. Other registrations stay open.
func (r *Repository) DeclineBroadcast(ctx context.Context, leadID, contractorID uuid.UUID, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE lead_recipients SET status = 'declined', responded_at = $1
		WHERE lead_id = $2 AND contractor_id = $3 AND status = 'pending'
	`, now, leadID, contractorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var regStatus string
		probeErr := r.db.QueryRow(ctx, `
			SELECT status FROM lead_recipients WHERE lead_id = $1 AND contractor_id = $2
		`, leadID, contractorID).Scan(&regStatus)
		if errors.Is(probeErr, pgx.ErrNoRows) {
			return ErrRegistrationNotFound
		}
		if probeErr != nil {
			return probeErr
		}
		return ErrAlreadyResponded
	}
	return nil
}
