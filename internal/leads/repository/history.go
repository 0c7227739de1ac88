package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HistoryEntry mirrors one row of the lead_status_history table.
type HistoryEntry struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	PreviousStatus *string
	NewStatus      string
	Note           *string
	ChangedBy      *uuid.UUID
	CreatedAt      time.Time
}

type historyParams struct {
	LeadID         uuid.UUID
	PreviousStatus *string
	NewStatus      string
	Note           *string
	ActorID        *uuid.UUID
	CreatedAt      time.Time
}

func appendHistory(ctx context.Context, tx pgx.Tx, params historyParams) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO lead_status_history (lead_id, previous_status, new_status, note, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, params.LeadID, params.PreviousStatus, params.NewStatus, params.Note, params.ActorID, params.CreatedAt)
	return err
}

// ListHistory returns the audit trail for a lead, oldest first.
func (r *Repository) ListHistory(ctx context.Context, leadID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, previous_status, new_status, note, changed_by, created_at
		FROM lead_status_history
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var entry HistoryEntry
		if err := rows.Scan(&entry.ID, &entry.LeadID, &entry.PreviousStatus, &entry.NewStatus,
			&entry.Note, &entry.ChangedBy, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
