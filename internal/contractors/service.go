package contractors

import (
	"context"
	"errors"

	"github.com/google/uuid"

	leadservice "referral_network_backend/internal/leads/service"
	"referral_network_backend/platform/apperr"
	"referral_network_backend/platform/phone"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id, tenantID uuid.UUID) (Contractor, error) {
	c, err := s.repo.GetByID(ctx, id, tenantID)
	if errors.Is(err, ErrContractorNotFound) {
		return Contractor{}, apperr.NotFound("contractor not found")
	}
	return c, err
}

func (s *Service) Search(ctx context.Context, tenantID uuid.UUID, query SearchQuery) ([]Contractor, int, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	params := SearchParams{
		TenantID: tenantID,
		Query:    query.Q,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	}
	if query.TradeID != uuid.Nil {
		tradeID := query.TradeID
		params.TradeID = &tradeID
	}
	if query.ExcludeSelf != uuid.Nil {
		selfID := query.ExcludeSelf
		params.ExcludeID = &selfID
	}

	return s.repo.Search(ctx, params)
}

func (s *Service) UpdateProfile(ctx context.Context, id, tenantID uuid.UUID, req UpdateProfileRequest) (Contractor, error) {
	params := UpdateProfileParams{
		BusinessName: req.BusinessName,
		ContactName:  req.ContactName,
	}
	if req.Phone != "" {
		normalized := phone.NormalizeE164(req.Phone)
		params.Phone = &normalized
	}
	if req.TradeID != nil {
		params.TradeID = req.TradeID
	}
	if req.ServiceArea != "" {
		params.ServiceArea = &req.ServiceArea
	}
	if req.LicenseNumber != "" {
		params.LicenseNumber = &req.LicenseNumber
	}

	c, err := s.repo.UpdateProfile(ctx, id, tenantID, params)
	if errors.Is(err, ErrContractorNotFound) {
		return Contractor{}, apperr.NotFound("contractor not found")
	}
	return c, err
}

// Reciprocity summarizes give and take for one contractor. Associations use
// it to spot members who only consume leads.
type Reciprocity struct {
	LeadsSent     int     `json:"leadsSent"`
	LeadsReceived int     `json:"leadsReceived"`
	Ratio         float64 `json:"ratio"`
}

func (s *Service) Reciprocity(ctx context.Context, id, tenantID uuid.UUID) (Reciprocity, error) {
	c, err := s.Get(ctx, id, tenantID)
	if err != nil {
		return Reciprocity{}, err
	}

	rec := Reciprocity{
		LeadsSent:     c.LeadsSentCount,
		LeadsReceived: c.LeadsReceivedCount,
	}
	if c.LeadsReceivedCount > 0 {
		rec.Ratio = float64(c.LeadsSentCount) / float64(c.LeadsReceivedCount)
	} else if c.LeadsSentCount > 0 {
		rec.Ratio = float64(c.LeadsSentCount)
	}
	return rec, nil
}

// Directory adapts the contractor module to the shape the lead lifecycle
// consumes for recipient checks and counters.
type Directory struct {
	repo *Repository
}

func NewDirectory(repo *Repository) *Directory {
	return &Directory{repo: repo}
}

func (d *Directory) VerifyActive(ctx context.Context, tenantID uuid.UUID, contractorIDs []uuid.UUID) error {
	if len(contractorIDs) == 0 {
		return nil
	}
	count, err := d.repo.CountActive(ctx, tenantID, contractorIDs)
	if err != nil {
		return err
	}
	if count != len(contractorIDs) {
		return apperr.Validation("one or more recipients are not active members of this network")
	}
	return nil
}

func (d *Directory) RecordLeadSent(ctx context.Context, tenantID, contractorID uuid.UUID) error {
	return d.repo.IncrementLeadsSent(ctx, tenantID, contractorID)
}

func (d *Directory) RecordLeadReceived(ctx context.Context, tenantID, contractorID uuid.UUID) error {
	return d.repo.IncrementLeadsReceived(ctx, tenantID, contractorID)
}

func (d *Directory) RecordLeadWon(ctx context.Context, tenantID, contractorID uuid.UUID) error {
	return d.repo.IncrementJobsWon(ctx, tenantID, contractorID)
}

func (d *Directory) RecordJobOutcome(ctx context.Context, tenantID, referrerID, winnerID uuid.UUID, jobValue, commission float64) error {
	return d.repo.RecordJobTotals(ctx, tenantID, referrerID, winnerID, jobValue, commission)
}

var _ leadservice.ContractorDirectory = (*Directory)(nil)
