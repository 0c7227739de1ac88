package members

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"referral_network_backend/platform/apperr"
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

func newImportFixture(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	return NewService(NewRepository(pool)), pool
}

func TestImportRosterMixedRows(t *testing.T) {
	svc, pool := newImportFixture(t)

	roster := strings.Join([]string{
		"email,businessName,contactName,phone,trade",
		"dana@apexelectric.test,Apex Electric,Dana Reyes,212-555-0123,Electrical",
		"not-an-email,Bad Row Plumbing,Joe Smith,,Plumbing",
		"sam@metroplumb.test,Metro Plumbing,Sam Ortiz,,",
	}, "\n")

	// Two valid rows insert; the malformed email never reaches the database.
	pool.ExpectExec("INSERT INTO member_invitations").
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO member_invitations").
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	report, err := svc.ImportRoster(context.Background(), uuid.New(), uuid.New(), strings.NewReader(roster))
	if err != nil {
		t.Fatalf("ImportRoster: %v", err)
	}
	if report.Imported != 2 {
		t.Errorf("imported = %d, want 2", report.Imported)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v, want one", report.Errors)
	}
	if report.Errors[0].Line != 2 {
		t.Errorf("error line = %d, want 2", report.Errors[0].Line)
	}
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestImportRosterSkipsDuplicates(t *testing.T) {
	svc, pool := newImportFixture(t)

	roster := "email,businessName,contactName\n" +
		"dana@apexelectric.test,Apex Electric,Dana Reyes\n"

	// ON CONFLICT DO NOTHING reports zero rows for an email already invited.
	pool.ExpectExec("INSERT INTO member_invitations").
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	report, err := svc.ImportRoster(context.Background(), uuid.New(), uuid.New(), strings.NewReader(roster))
	if err != nil {
		t.Fatalf("ImportRoster: %v", err)
	}
	if report.Imported != 0 || report.Skipped != 1 {
		t.Errorf("imported=%d skipped=%d, want 0 and 1", report.Imported, report.Skipped)
	}
}

func TestImportRosterRejectsMissingColumns(t *testing.T) {
	svc, _ := newImportFixture(t)

	roster := "email,phone\nsomeone@example.test,212-555-0100\n"
	_, err := svc.ImportRoster(context.Background(), uuid.New(), uuid.New(), strings.NewReader(roster))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for missing columns, got %v", err)
	}
}

func TestImportRosterRejectsEmptyFile(t *testing.T) {
	svc, _ := newImportFixture(t)

	_, err := svc.ImportRoster(context.Background(), uuid.New(), uuid.New(), strings.NewReader(""))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty file, got %v", err)
	}
}
