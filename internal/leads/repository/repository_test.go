package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

// anyArgs builds n pgxmock.AnyArg() placeholders; pgxmock v4 requires the
// expectation's argument count to match the query, even when the values are
// not being checked.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	return New(pool), pool
}

func leadRow(id, tenantID uuid.UUID, status string, sharedAt time.Time) *pgxmock.Rows {
	return leadRowKind(id, tenantID, status, sharedAt, false)
}

func broadcastLeadRow(id, tenantID uuid.UUID, status string, sharedAt time.Time) *pgxmock.Rows {
	return leadRowKind(id, tenantID, status, sharedAt, true)
}

func leadRowKind(id, tenantID uuid.UUID, status string, sharedAt time.Time, isBroadcast bool) *pgxmock.Rows {
	referrerID := uuid.New()
	return pgxmock.NewRows([]string{
		"id", "tenant_id", "referrer_id", "recipient_id",
		"customer_name", "customer_phone", "customer_email", "customer_address", "customer_city", "customer_state", "customer_zip_code",
		"service_needed", "urgency", "budget_min", "budget_max", "notes",
		"status", "is_broadcast", "shared_at", "accepted_at", "contacted_at", "quoted_at", "completed_at", "expires_at",
		"job_value", "commission_rate", "commission_amount", "commission_status", "commission_locked_at", "commission_paid_at",
		"response_time_minutes", "created_at", "updated_at",
	}).AddRow(
		id, tenantID, referrerID, nil,
		"Dana Reyes", "+12125550123", nil, nil, nil, nil, nil,
		"Water heater replacement", "today", nil, nil, nil,
		status, isBroadcast, sharedAt, nil, nil, nil, nil, nil,
		nil, 10.0, nil, "pending", nil, nil,
		nil, sharedAt, sharedAt,
	)
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	tenantID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM leads WHERE id").
		WithArgs(leadID, tenantID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), leadID, tenantID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTransitionStatusWritesHistory(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	tenantID := uuid.New()
	actorID := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE leads SET").
		WithArgs(anyArgs(10)...).
		WillReturnRows(leadRow(leadID, tenantID, "accepted", now))
	mock.ExpectExec("INSERT INTO lead_status_history").
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	lead, err := repo.TransitionStatus(context.Background(), TransitionParams{
		LeadID:         leadID,
		TenantID:       tenantID,
		ExpectedStatus: "pending",
		NewStatus:      "accepted",
		ActorID:        &actorID,
		Now:            now,
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if lead.Status != "accepted" {
		t.Errorf("status = %q, want accepted", lead.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTransitionStatusLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	tenantID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE leads SET").
		WithArgs(anyArgs(10)...).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM leads").
		WithArgs(leadID, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("cancelled"))
	mock.ExpectRollback()

	_, err := repo.TransitionStatus(context.Background(), TransitionParams{
		LeadID:         leadID,
		TenantID:       tenantID,
		ExpectedStatus: "pending",
		NewStatus:      "accepted",
		Now:            time.Now(),
	})
	if !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTransitionStatusCancelDeclinesOpenRegistrations(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	tenantID := uuid.New()
	actorID := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE leads SET").
		WithArgs(anyArgs(10)...).
		WillReturnRows(broadcastLeadRow(leadID, tenantID, "cancelled", now))
	mock.ExpectExec("UPDATE lead_recipients SET status = 'declined'").
		WithArgs(now, leadID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec("INSERT INTO lead_status_history").
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	lead, err := repo.TransitionStatus(context.Background(), TransitionParams{
		LeadID:         leadID,
		TenantID:       tenantID,
		ExpectedStatus: "pending",
		NewStatus:      "cancelled",
		ActorID:        &actorID,
		Now:            now,
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if lead.Status != "cancelled" {
		t.Errorf("status = %q, want cancelled", lead.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSetJobValueStampsDisputeLockDate(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lockedAt := now.Add(7 * 24 * time.Hour)

	mock.ExpectQuery("UPDATE leads SET").
		WithArgs(4500.0, 450.0, lockedAt, now, leadID, tenantID).
		WillReturnRows(leadRow(leadID, tenantID, "won", now))

	_, err := repo.SetJobValue(context.Background(), JobValueParams{
		LeadID:           leadID,
		TenantID:         tenantID,
		JobValue:         4500,
		CommissionAmount: 450,
		LockedAt:         lockedAt,
		Now:              now,
	})
	if err != nil {
		t.Fatalf("SetJobValue: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAcceptBroadcastLeadAlreadyClaimed(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	tenantID := uuid.New()
	contractorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status, shared_at FROM leads").
		WithArgs(leadID, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "shared_at"}).
			AddRow("accepted", time.Now()))
	mock.ExpectRollback()

	_, err := repo.AcceptBroadcast(context.Background(), AcceptBroadcastParams{
		LeadID:       leadID,
		TenantID:     tenantID,
		ContractorID: contractorID,
		Now:          time.Now(),
	})
	if !errors.Is(err, ErrLeadClaimed) {
		t.Fatalf("expected ErrLeadClaimed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAcceptBroadcastExpiredLead(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	tenantID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status, shared_at FROM leads").
		WithArgs(leadID, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "shared_at"}).
			AddRow("expired", time.Now().Add(-3*time.Hour)))
	mock.ExpectRollback()

	_, err := repo.AcceptBroadcast(context.Background(), AcceptBroadcastParams{
		LeadID:       leadID,
		TenantID:     tenantID,
		ContractorID: uuid.New(),
		Now:          time.Now(),
	})
	if !errors.Is(err, ErrLeadExpired) {
		t.Fatalf("expected ErrLeadExpired, got %v", err)
	}
	if errors.Is(err, ErrLeadClaimed) {
		t.Fatalf("expired lead must not read as claimed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAcceptBroadcastWinnerPath(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	tenantID := uuid.New()
	contractorID := uuid.New()
	sharedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := sharedAt.Add(25 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status, shared_at FROM leads").
		WithArgs(leadID, tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "shared_at"}).
			AddRow("pending", sharedAt))
	mock.ExpectExec("UPDATE lead_recipients SET status = 'accepted'").
		WithArgs(now, leadID, contractorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE lead_recipients SET status = 'declined'").
		WithArgs(now, leadID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectQuery("UPDATE leads SET").
		WithArgs(now, 25, leadID).
		WillReturnRows(leadRow(leadID, tenantID, "accepted", sharedAt))
	mock.ExpectExec("INSERT INTO lead_status_history").
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	lead, err := repo.AcceptBroadcast(context.Background(), AcceptBroadcastParams{
		LeadID:       leadID,
		TenantID:     tenantID,
		ContractorID: contractorID,
		Now:          now,
	})
	if err != nil {
		t.Fatalf("AcceptBroadcast: %v", err)
	}
	if lead.Status != "accepted" {
		t.Errorf("status = %q, want accepted", lead.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAcceptBroadcastNotInvited(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	tenantID := uuid.New()
	contractorID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status, shared_at FROM leads").
		WithArgs(anyArgs(2)...).
		WillReturnRows(pgxmock.NewRows([]string{"status", "shared_at"}).
			AddRow("pending", now.Add(-time.Hour)))
	mock.ExpectExec("UPDATE lead_recipients SET status = 'accepted'").
		WithArgs(anyArgs(3)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM lead_recipients").
		WithArgs(leadID, contractorID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.AcceptBroadcast(context.Background(), AcceptBroadcastParams{
		LeadID:       leadID,
		TenantID:     tenantID,
		ContractorID: contractorID,
		Now:          now,
	})
	if !errors.Is(err, ErrRegistrationNotFound) {
		t.Fatalf("expected ErrRegistrationNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeclineBroadcastAlreadyResponded(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	contractorID := uuid.New()
	now := time.Now()

	mock.ExpectExec("UPDATE lead_recipients SET status = 'declined'").
		WithArgs(now, leadID, contractorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM lead_recipients").
		WithArgs(leadID, contractorID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("declined"))

	err := repo.DeclineBroadcast(context.Background(), leadID, contractorID, now)
	if !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("expected ErrAlreadyResponded, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExpireLeadNoOpWhenNotDue(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE leads SET status = 'expired'").
		WithArgs(now, leadID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	expired, err := repo.ExpireLead(context.Background(), leadID, now)
	if err != nil {
		t.Fatalf("ExpireLead: %v", err)
	}
	if expired {
		t.Error("expected no-op for a lead that is not overdue")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExpireLeadClosesRegistrations(t *testing.T) {
	repo, mock := newMockRepo(t)
	leadID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE leads SET status = 'expired'").
		WithArgs(now, leadID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE lead_recipients SET status = 'expired'").
		WithArgs(now, leadID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec("INSERT INTO lead_status_history").
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	expired, err := repo.ExpireLead(context.Background(), leadID, now)
	if err != nil {
		t.Fatalf("ExpireLead: %v", err)
	}
	if !expired {
		t.Error("expected lead to be expired")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSweepExpiredNothingDue(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	// An empty result set means the sweep already ran for this window. No
	// registration updates or history writes may happen then.
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE leads SET status = 'expired'").
		WithArgs(now).
		WillReturnRows(emptyLeadRows())
	mock.ExpectCommit()

	expired, err := repo.SweepExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("expected no expired leads, got %d", len(expired))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func emptyLeadRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "tenant_id", "referrer_id", "recipient_id",
		"customer_name", "customer_phone", "customer_email", "customer_address", "customer_city", "customer_state", "customer_zip_code",
		"service_needed", "urgency", "budget_min", "budget_max", "notes",
		"status", "is_broadcast", "shared_at", "accepted_at", "contacted_at", "quoted_at", "completed_at", "expires_at",
		"job_value", "commission_rate", "commission_amount", "commission_status", "commission_locked_at", "commission_paid_at",
		"response_time_minutes", "created_at", "updated_at",
	})
}
