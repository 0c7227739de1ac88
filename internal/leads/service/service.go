package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"referral_network_backend/internal/events"
	"referral_network_backend/internal/leads/domain"
	"referral_network_backend/internal/leads/repository"
	"referral_network_backend/internal/leads/transport"
	"referral_network_backend/platform/apperr"
	"referral_network_backend/platform/logger"
	"referral_network_backend/platform/phone"
)

// Store is the persistence surface the service needs. *repository.Repository
// satisfies it; tests use an in-memory fake.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Lead, int, error)
	TransitionStatus(ctx context.Context, params repository.TransitionParams) (repository.Lead, error)
	SetJobValue(ctx context.Context, params repository.JobValueParams) (repository.Lead, error)
	AcceptBroadcast(ctx context.Context, params repository.AcceptBroadcastParams) (repository.Lead, error)
	DeclineBroadcast(ctx context.Context, leadID, contractorID uuid.UUID, now time.Time) error
	MarkViewed(ctx context.Context, leadID, contractorID uuid.UUID, now time.Time) error
	ListHistory(ctx context.Context, leadID uuid.UUID) ([]repository.HistoryEntry, error)
	ListRegistrations(ctx context.Context, leadID uuid.UUID) ([]repository.Registration, error)
	SweepExpired(ctx context.Context, now time.Time) ([]repository.Lead, error)
	ExpireLead(ctx context.Context, leadID uuid.UUID, now time.Time) (bool, error)
}

// Settings is the slice of tenant configuration the lifecycle depends on. It
// is snapshotted onto the lead at creation time.
type Settings struct {
	CommissionRate         float64
	AutoDeclineHours       int
	DisputePeriodDays      int
	AllowBroadcastLeads    bool
	MaxBroadcastRecipients int
}

// SettingsProvider resolves the current settings for a tenant.
type SettingsProvider interface {
	LeadSettings(ctx context.Context, tenantID uuid.UUID) (Settings, error)
}

// ContractorDirectory verifies recipients and keeps denormalized activity
// counters. Counter updates are best effort; failures are logged, never
// returned to the caller.
type ContractorDirectory interface {
	VerifyActive(ctx context.Context, tenantID uuid.UUID, contractorIDs []uuid.UUID) error
	RecordLeadSent(ctx context.Context, tenantID, contractorID uuid.UUID) error
	RecordLeadReceived(ctx context.Context, tenantID, contractorID uuid.UUID) error
	RecordLeadWon(ctx context.Context, tenantID, contractorID uuid.UUID) error
	RecordJobOutcome(ctx context.Context, tenantID, referrerID, winnerID uuid.UUID, jobValue, commission float64) error
}

// ExpirationScheduler enqueues a one-shot expiration check for a lead. The
// periodic sweeper backstops scheduling failures.
type ExpirationScheduler interface {
	ScheduleLeadExpiration(ctx context.Context, leadID uuid.UUID, at time.Time) error
}

type Service struct {
	store     Store
	settings  SettingsProvider
	directory ContractorDirectory
	scheduler ExpirationScheduler
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

func New(store Store, settings SettingsProvider, directory ContractorDirectory, scheduler ExpirationScheduler, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		settings:  settings,
		directory: directory,
		scheduler: scheduler,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// Create shares a lead with one contractor or broadcasts it to several.
func (s *Service) Create(ctx context.Context, tenantID, referrerID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	settings, err := s.settings.LeadSettings(ctx, tenantID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	recipients := req.RecipientIDs
	if req.IsBroadcast() {
		if !settings.AllowBroadcastLeads {
			return transport.LeadResponse{}, apperr.LimitExceeded("broadcast leads are disabled for this association")
		}
		if len(recipients) < 2 {
			return transport.LeadResponse{}, apperr.LimitExceeded("broadcast leads need at least two recipients")
		}
		if len(recipients) > settings.MaxBroadcastRecipients {
			return transport.LeadResponse{}, apperr.LimitExceeded("broadcast recipient count exceeds the association limit")
		}
		for _, id := range recipients {
			if id == referrerID {
				return transport.LeadResponse{}, apperr.Validation("cannot refer a lead to yourself")
			}
		}
	} else {
		if *req.RecipientID == referrerID {
			return transport.LeadResponse{}, apperr.Validation("cannot refer a lead to yourself")
		}
		recipients = nil
	}

	verify := recipients
	if !req.IsBroadcast() {
		verify = []uuid.UUID{*req.RecipientID}
	}
	if err := s.directory.VerifyActive(ctx, tenantID, verify); err != nil {
		return transport.LeadResponse{}, err
	}

	normalizedPhone := phone.NormalizeE164(req.CustomerPhone)

	now := s.now()
	expiresAt := domain.ExpiresAt(now, settings.AutoDeclineHours)

	params := repository.CreateLeadParams{
		TenantID:       tenantID,
		ReferrerID:     referrerID,
		CustomerName:   req.CustomerName,
		CustomerPhone:  normalizedPhone,
		ServiceNeeded:  req.ServiceNeeded,
		Urgency:        req.Urgency,
		BudgetMin:      req.BudgetMin,
		BudgetMax:      req.BudgetMax,
		IsBroadcast:    req.IsBroadcast(),
		CommissionRate: settings.CommissionRate,
		SharedAt:       now,
		ExpiresAt:      expiresAt,
		ActorID:        &referrerID,
	}
	if req.IsBroadcast() {
		params.RecipientIDs = recipients
	} else {
		params.RecipientID = req.RecipientID
	}
	params.CustomerEmail = optional(req.CustomerEmail)
	params.CustomerAddress = optional(req.CustomerAddress)
	params.CustomerCity = optional(req.CustomerCity)
	params.CustomerState = optional(req.CustomerState)
	params.CustomerZipCode = optional(req.CustomerZipCode)
	params.Notes = optional(req.Notes)

	lead, err := s.store.Create(ctx, params)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if err := s.scheduler.ScheduleLeadExpiration(ctx, lead.ID, expiresAt); err != nil {
		// The sweeper picks the lead up if the one-shot task never runs.
		s.log.Error("failed to schedule lead expiration", "error", err, "lead_id", lead.ID.String())
	}

	s.recordCounter(ctx, "lead_sent", func() error {
		return s.directory.RecordLeadSent(ctx, tenantID, referrerID)
	})
	for _, id := range verify {
		contractorID := id
		s.recordCounter(ctx, "lead_received", func() error {
			return s.directory.RecordLeadReceived(ctx, tenantID, contractorID)
		})
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		TenantID:     tenantID,
		ReferrerID:   referrerID,
		RecipientID:  lead.RecipientID,
		RecipientIDs: recipients,
		IsBroadcast:  lead.IsBroadcast,
		Urgency:      lead.Urgency,
	})

	return toLeadResponse(lead), nil
}

// Get returns a lead with its history and registrations. Reading an overdue
// pending lead expires it first, so callers never observe a stale deadline.
func (s *Service) Get(ctx context.Context, tenantID, leadID, viewerID uuid.UUID) (transport.LeadDetailResponse, error) {
	lead, err := s.getFresh(ctx, tenantID, leadID)
	if err != nil {
		return transport.LeadDetailResponse{}, err
	}

	history, err := s.store.ListHistory(ctx, leadID)
	if err != nil {
		return transport.LeadDetailResponse{}, err
	}

	detail := transport.LeadDetailResponse{
		LeadResponse: toLeadResponse(lead),
		History:      make([]transport.HistoryEntryResponse, 0, len(history)),
	}
	for _, entry := range history {
		detail.History = append(detail.History, transport.HistoryEntryResponse{
			ID:             entry.ID,
			PreviousStatus: entry.PreviousStatus,
			NewStatus:      entry.NewStatus,
			Note:           entry.Note,
			ChangedBy:      entry.ChangedBy,
			CreatedAt:      entry.CreatedAt,
		})
	}

	if lead.IsBroadcast {
		regs, err := s.store.ListRegistrations(ctx, leadID)
		if err != nil {
			return transport.LeadDetailResponse{}, err
		}
		for _, reg := range regs {
			if reg.ContractorID == viewerID && reg.ViewedAt == nil {
				if err := s.store.MarkViewed(ctx, leadID, viewerID, s.now()); err != nil {
					s.log.Error("failed to mark registration viewed", "error", err, "lead_id", leadID.String())
				}
			}
			detail.Registrations = append(detail.Registrations, transport.RegistrationResponse{
				ID:           reg.ID,
				ContractorID: reg.ContractorID,
				Status:       reg.Status,
				NotifiedAt:   reg.NotifiedAt,
				ViewedAt:     reg.ViewedAt,
				RespondedAt:  reg.RespondedAt,
			})
		}
	}

	return detail, nil
}

// List returns a page of leads visible to the contractor.
func (s *Service) List(ctx context.Context, tenantID, contractorID uuid.UUID, query transport.ListLeadsQuery) (transport.LeadListResponse, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	params := repository.ListParams{
		TenantID:     tenantID,
		ContractorID: &contractorID,
		Direction:    query.Direction,
		Offset:       (page - 1) * pageSize,
		Limit:        pageSize,
	}
	if query.Status != "" {
		params.Status = &query.Status
	}

	leads, total, err := s.store.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	resp := transport.LeadListResponse{
		Items:    make([]transport.LeadResponse, 0, len(leads)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, lead := range leads {
		resp.Items = append(resp.Items, toLeadResponse(lead))
	}
	return resp, nil
}

// getFresh loads a lead, expiring it first when its deadline has passed.
func (s *Service) getFresh(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error) {
	lead, err := s.store.GetByID(ctx, leadID, tenantID)
	if err != nil {
		return repository.Lead{}, mapStoreErr(err)
	}

	now := s.now()
	if domain.IsExpirable(domain.Status(lead.Status), lead.ExpiresAt, now) {
		expired, err := s.store.ExpireLead(ctx, leadID, now)
		if err != nil {
			return repository.Lead{}, err
		}
		if expired {
			s.publishExpired(ctx, lead)
			lead, err = s.store.GetByID(ctx, leadID, tenantID)
			if err != nil {
				return repository.Lead{}, mapStoreErr(err)
			}
		}
	}

	return lead, nil
}

func (s *Service) publishExpired(ctx context.Context, lead repository.Lead) {
	s.bus.Publish(ctx, events.LeadExpired{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
	})
}

// recordCounter runs a best-effort counter update. A failed counter never
// fails the request.
func (s *Service) recordCounter(ctx context.Context, name string, fn func() error) {
	if err := fn(); err != nil {
		s.log.WithContext(ctx).Error("failed to update contractor counter", "counter", name, "error", err)
	}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("lead not found")
	case errors.Is(err, repository.ErrStatusChanged):
		return apperr.Conflict("lead was updated concurrently, refresh and retry")
	case errors.Is(err, repository.ErrLeadClaimed):
		return apperr.AlreadyClaimed("lead was already claimed by another contractor")
	case errors.Is(err, repository.ErrLeadExpired):
		return apperr.InvalidTransition("the response deadline for this lead has passed")
	case errors.Is(err, repository.ErrRegistrationNotFound):
		return apperr.NotFound("you were not invited to this broadcast lead")
	case errors.Is(err, repository.ErrAlreadyResponded):
		return apperr.Conflict("you already responded to this lead")
	default:
		return err
	}
}

func toLeadResponse(lead repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:                  lead.ID,
		TenantID:            lead.TenantID,
		ReferrerID:          lead.ReferrerID,
		RecipientID:         lead.RecipientID,
		CustomerName:        lead.CustomerName,
		CustomerPhone:       lead.CustomerPhone,
		CustomerEmail:       lead.CustomerEmail,
		CustomerAddress:     lead.CustomerAddress,
		CustomerCity:        lead.CustomerCity,
		CustomerState:       lead.CustomerState,
		CustomerZipCode:     lead.CustomerZipCode,
		ServiceNeeded:       lead.ServiceNeeded,
		Urgency:             lead.Urgency,
		BudgetMin:           lead.BudgetMin,
		BudgetMax:           lead.BudgetMax,
		Notes:               lead.Notes,
		Status:              lead.Status,
		IsBroadcast:         lead.IsBroadcast,
		SharedAt:            lead.SharedAt,
		AcceptedAt:          lead.AcceptedAt,
		ContactedAt:         lead.ContactedAt,
		QuotedAt:            lead.QuotedAt,
		CompletedAt:         lead.CompletedAt,
		ExpiresAt:           lead.ExpiresAt,
		JobValue:            lead.JobValue,
		CommissionRate:      lead.CommissionRate,
		CommissionAmount:    lead.CommissionAmount,
		CommissionStatus:    lead.CommissionStatus,
		CommissionLockedAt:  lead.CommissionLockedAt,
		ResponseTimeMinutes: lead.ResponseTimeMinutes,
		CreatedAt:           lead.CreatedAt,
		UpdatedAt:           lead.UpdatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
