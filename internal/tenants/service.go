package tenants

import (
	"context"
	"errors"

	"github.com/google/uuid"

	leadservice "referral_network_backend/internal/leads/service"
	"referral_network_backend/platform/apperr"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	tenant, err := s.repo.GetByID(ctx, tenantID)
	if errors.Is(err, ErrTenantNotFound) {
		return Tenant{}, apperr.NotFound("association not found")
	}
	return tenant, err
}

// UpdateSettings applies a partial settings update. Unset fields keep their
// current value.
func (s *Service) UpdateSettings(ctx context.Context, tenantID uuid.UUID, req UpdateSettingsRequest) (Tenant, error) {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return Tenant{}, err
	}

	settings := tenant.Settings
	if req.CommissionRate != nil {
		if *req.CommissionRate < 0 || *req.CommissionRate > 100 {
			return Tenant{}, apperr.Validation("commission rate must be between 0 and 100")
		}
		settings.CommissionRate = *req.CommissionRate
	}
	if req.AutoDeclineHours != nil {
		if *req.AutoDeclineHours < 1 || *req.AutoDeclineHours > 168 {
			return Tenant{}, apperr.Validation("auto-decline window must be between 1 and 168 hours")
		}
		settings.AutoDeclineHours = *req.AutoDeclineHours
	}
	if req.DisputePeriodDays != nil {
		if *req.DisputePeriodDays < 0 || *req.DisputePeriodDays > 90 {
			return Tenant{}, apperr.Validation("dispute period must be between 0 and 90 days")
		}
		settings.DisputePeriodDays = *req.DisputePeriodDays
	}
	if req.AllowBroadcastLeads != nil {
		settings.AllowBroadcastLeads = req.AllowBroadcastLeads
	}
	if req.MaxBroadcastRecipients != nil {
		if *req.MaxBroadcastRecipients < 2 || *req.MaxBroadcastRecipients > 50 {
			return Tenant{}, apperr.Validation("broadcast recipient cap must be between 2 and 50")
		}
		settings.MaxBroadcastRecipients = *req.MaxBroadcastRecipients
	}

	updated, err := s.repo.UpdateSettings(ctx, tenantID, settings)
	if errors.Is(err, ErrTenantNotFound) {
		return Tenant{}, apperr.NotFound("association not found")
	}
	return updated, err
}

func (s *Service) UpdateBranding(ctx context.Context, tenantID uuid.UUID, req UpdateBrandingRequest) (Tenant, error) {
	var logoURL *string
	if req.LogoURL != "" {
		logoURL = &req.LogoURL
	}
	updated, err := s.repo.UpdateBranding(ctx, tenantID, req.Name, logoURL)
	if errors.Is(err, ErrTenantNotFound) {
		return Tenant{}, apperr.NotFound("association not found")
	}
	return updated, err
}

// LeadSettingsAdapter exposes tenant settings in the shape the lead
// lifecycle consumes.
type LeadSettingsAdapter struct {
	svc *Service
}

func NewLeadSettingsAdapter(svc *Service) *LeadSettingsAdapter {
	return &LeadSettingsAdapter{svc: svc}
}

func (a *LeadSettingsAdapter) LeadSettings(ctx context.Context, tenantID uuid.UUID) (leadservice.Settings, error) {
	tenant, err := a.svc.Get(ctx, tenantID)
	if err != nil {
		return leadservice.Settings{}, err
	}
	settings := tenant.Settings
	return leadservice.Settings{
		CommissionRate:         settings.CommissionRate,
		AutoDeclineHours:       settings.AutoDeclineHours,
		DisputePeriodDays:      settings.DisputePeriodDays,
		AllowBroadcastLeads:    settings.AllowBroadcastLeads != nil && *settings.AllowBroadcastLeads,
		MaxBroadcastRecipients: settings.MaxBroadcastRecipients,
	}, nil
}

var _ leadservice.SettingsProvider = (*LeadSettingsAdapter)(nil)
