package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"referral_network_backend/internal/leads/domain"
)

type TransitionParams struct {
	LeadID         uuid.UUID
	TenantID       uuid.UUID
	ExpectedStatus string
	NewStatus      string
	Effects        domain.Effects
	Note           *string
	ActorID        *uuid.UUID
	Now            time.Time
}

// TransitionStatus applies a validated status change. The UPDATE is
// conditional on the status still being the one the caller validated against,
// so two concurrent writers cannot both succeed.
func (r *Repository) TransitionStatus(ctx context.Context, params TransitionParams) (Lead, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE leads SET
			status = $1,
			accepted_at = COALESCE($2, accepted_at),
			contacted_at = COALESCE($3, contacted_at),
			quoted_at = COALESCE($4, quoted_at),
			completed_at = COALESCE($5, completed_at),
			response_time_minutes = COALESCE($6, response_time_minutes),
			updated_at = $7
		WHERE id = $8 AND tenant_id = $9 AND status = $10
		RETURNING `+leadColumns,
		params.NewStatus,
		params.Effects.AcceptedAt, params.Effects.ContactedAt, params.Effects.QuotedAt, params.Effects.CompletedAt,
		params.Effects.ResponseTimeMinutes,
		params.Now,
		params.LeadID, params.TenantID, params.ExpectedStatus,
	)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the lead does not exist or another writer changed it first.
		var current string
		probeErr := tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 AND tenant_id = $2`,
			params.LeadID, params.TenantID).Scan(&current)
		if errors.Is(probeErr, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		if probeErr != nil {
			return Lead{}, probeErr
		}
		return Lead{}, ErrStatusChanged
	}
	if err != nil {
		return Lead{}, err
	}

	if lead.IsBroadcast && params.NewStatus == "cancelled" {
		if _, err := tx.Exec(ctx, `
			UPDATE lead_recipients SET status = 'declined', responded_at = $1
			WHERE lead_id = $2 AND status = 'pending'
		`, params.Now, params.LeadID); err != nil {
			return Lead{}, err
		}
	}

	if err := appendHistory(ctx, tx, historyParams{
		LeadID:         lead.ID,
		PreviousStatus: strPtr(params.ExpectedStatus),
		NewStatus:      params.NewStatus,
		Note:           params.Note,
		ActorID:        params.ActorID,
		CreatedAt:      params.Now,
	}); err != nil {
		return Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, err
	}

	return lead, nil
}

type JobValueParams struct {
	LeadID           uuid.UUID
	TenantID         uuid.UUID
	JobValue         float64
	CommissionAmount float64
	ActorID          *uuid.UUID
	// LockedAt is the end of the tenant's dispute window, not the write time.
	LockedAt time.Time
	Now      time.Time
}

// SetJobValue records the final job value and the calculated commission with
// its dispute-window lock date. The write is conditional on the lead being won.
func (r *Repository) SetJobValue(ctx context.Context, params JobValueParams) (Lead, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE leads SET
			job_value = $1,
			commission_amount = $2,
			commission_status = 'calculated',
			commission_locked_at = $3,
			updated_at = $4
		WHERE id = $5 AND tenant_id = $6 AND status = 'won'
		RETURNING `+leadColumns,
		params.JobValue, params.CommissionAmount, params.LockedAt, params.Now, params.LeadID, params.TenantID,
	)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var current string
		probeErr := r.db.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 AND tenant_id = $2`,
			params.LeadID, params.TenantID).Scan(&current)
		if errors.Is(probeErr, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		if probeErr != nil {
			return Lead{}, probeErr
		}
		return Lead{}, ErrStatusChanged
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// SweepExpired moves every overdue pending lead to expired, expires its open
// broadcast registrations, and records history. Running it twice over the
// same window is a no-op the second time.
func (r *Repository) SweepExpired(ctx context.Context, now time.Time) ([]Lead, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE leads SET status = 'expired', updated_at = $1
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1
		RETURNING `+leadColumns, now)
	if err != nil {
		return nil, err
	}

	expired := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, lead)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if len(expired) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]uuid.UUID, len(expired))
	for i, lead := range expired {
		ids[i] = lead.ID
	}

	if _, err := tx.Exec(ctx, `
		UPDATE lead_recipients SET status = 'expired', responded_at = $1
		WHERE lead_id = ANY($2) AND status = 'pending'
	`, now, ids); err != nil {
		return nil, err
	}

	for _, lead := range expired {
		if err := appendHistory(ctx, tx, historyParams{
			LeadID:         lead.ID,
			PreviousStatus: strPtr("pending"),
			NewStatus:      "expired",
			Note:           strPtr("Expired after response deadline passed"),
			CreatedAt:      now,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return expired, nil
}

// ExpireLead expires a single overdue pending lead. It is safe to call for a
// lead that was already accepted or expired; nothing happens then.
func (r *Repository) ExpireLead(ctx context.Context, leadID uuid.UUID, now time.Time) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE leads SET status = 'expired', updated_at = $1
		WHERE id = $2 AND status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1
	`, now, leadID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE lead_recipients SET status = 'expired', responded_at = $1
		WHERE lead_id = $2 AND status = 'pending'
	`, now, leadID); err != nil {
		return false, err
	}

	if err := appendHistory(ctx, tx, historyParams{
		LeadID:         leadID,
		PreviousStatus: strPtr("pending"),
		NewStatus:      "expired",
		Note:           strPtr("Expired after response deadline passed"),
		CreatedAt:      now,
	}); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	return true, nil
}
