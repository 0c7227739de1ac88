package members

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"referral_network_backend/platform/apperr"
	"referral_network_backend/platform/phone"
	"referral_network_backend/platform/validator"
)

const (
	invitationTTL = 30 * 24 * time.Hour
	maxImportRows = 1000
)

// ImportReport summarizes one roster import.
type ImportReport struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// ImportError points at a rejected CSV row. Line numbers are 1-based and
// include the header.
type ImportError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type Service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ImportRoster reads a CSV roster and creates an invitation per valid row.
// Expected header: email,businessName,contactName,phone,trade. Invalid rows
// are reported, not fatal; duplicates within the tenant are skipped.
func (s *Service) ImportRoster(ctx context.Context, tenantID, invitedBy uuid.UUID, r io.Reader) (ImportReport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ImportReport{}, apperr.Validation("roster file is empty or not valid CSV")
	}
	cols, err := mapHeader(header)
	if err != nil {
		return ImportReport{}, err
	}

	report := ImportReport{}
	expiresAt := s.now().Add(invitationTTL)
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.Errors = append(report.Errors, ImportError{Line: line, Reason: "malformed CSV row"})
			continue
		}
		if line-1 > maxImportRows {
			return ImportReport{}, apperr.LimitExceeded(fmt.Sprintf("roster imports are limited to %d rows", maxImportRows))
		}

		params, reason := s.rowToInvitation(tenantID, invitedBy, cols, record, expiresAt)
		if reason != "" {
			report.Errors = append(report.Errors, ImportError{Line: line, Reason: reason})
			continue
		}

		created, err := s.repo.CreateInvitation(ctx, params)
		if err != nil {
			return ImportReport{}, err
		}
		if created {
			report.Imported++
		} else {
			report.Skipped++
		}
	}

	return report, nil
}

// columnIndexes maps required and optional roster columns to positions.
type columnIndexes struct {
	email, businessName, contactName, phone, trade int
}

func mapHeader(header []string) (columnIndexes, error) {
	cols := columnIndexes{email: -1, businessName: -1, contactName: -1, phone: -1, trade: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "email":
			cols.email = i
		case "businessname", "business_name":
			cols.businessName = i
		case "contactname", "contact_name":
			cols.contactName = i
		case "phone":
			cols.phone = i
		case "trade":
			cols.trade = i
		}
	}
	if cols.email < 0 || cols.businessName < 0 || cols.contactName < 0 {
		return columnIndexes{}, apperr.Validation("roster header must include email, businessName, and contactName columns")
	}
	return cols, nil
}

func (s *Service) rowToInvitation(tenantID, invitedBy uuid.UUID, cols columnIndexes, record []string, expiresAt time.Time) (CreateInvitationParams, string) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	email := strings.ToLower(field(cols.email))
	if err := validator.Validate.Var(email, "required,email"); err != nil {
		return CreateInvitationParams{}, "invalid email address"
	}

	businessName := field(cols.businessName)
	if businessName == "" {
		return CreateInvitationParams{}, "missing business name"
	}
	contactName := field(cols.contactName)
	if contactName == "" {
		return CreateInvitationParams{}, "missing contact name"
	}

	params := CreateInvitationParams{
		TenantID:     tenantID,
		Email:        email,
		BusinessName: businessName,
		ContactName:  contactName,
		Token:        uuid.NewString(),
		InvitedBy:    invitedBy,
		ExpiresAt:    expiresAt,
	}
	if raw := field(cols.phone); raw != "" {
		normalized := phone.NormalizeE164(raw)
		params.Phone = &normalized
	}
	if trade := field(cols.trade); trade != "" {
		slug := strings.ToLower(strings.ReplaceAll(trade, " ", "-"))
		params.TradeSlug = &slug
	}
	return params, ""
}

func (s *Service) ListInvitations(ctx context.Context, tenantID uuid.UUID) ([]Invitation, error) {
	return s.repo.ListInvitations(ctx, tenantID)
}
