package tenants

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"referral_network_backend/platform/httpkit"
	"referral_network_backend/platform/validator"
)

// UpdateSettingsRequest is a partial settings update; nil fields are left
// untouched.
type UpdateSettingsRequest struct {
	CommissionRate         *float64 `json:"commissionRate"`
	AutoDeclineHours       *int     `json:"autoDeclineHours"`
	DisputePeriodDays      *int     `json:"disputePeriodDays"`
	AllowBroadcastLeads    *bool    `json:"allowBroadcastLeads"`
	MaxBroadcastRecipients *int     `json:"maxBroadcastRecipients"`
}

type UpdateBrandingRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	LogoURL string `json:"logoUrl" validate:"omitempty,url,max=500"`
}

type TenantResponse struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Slug      string           `json:"slug"`
	LogoURL   *string          `json:"logoUrl,omitempty"`
	Settings  SettingsResponse `json:"settings"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type SettingsResponse struct {
	CommissionRate         float64 `json:"commissionRate"`
	AutoDeclineHours       int     `json:"autoDeclineHours"`
	DisputePeriodDays      int     `json:"disputePeriodDays"`
	AllowBroadcastLeads    bool    `json:"allowBroadcastLeads"`
	MaxBroadcastRecipients int     `json:"maxBroadcastRecipients"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tenants/me", h.Get)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.PATCH("/tenants/me/settings", h.UpdateSettings)
	rg.PUT("/tenants/me/branding", h.UpdateBranding)
}

func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	tenant, err := h.svc.Get(c.Request.Context(), identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toTenantResponse(tenant))
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	tenant, err := h.svc.UpdateSettings(c.Request.Context(), identity.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toTenantResponse(tenant))
}

func (h *Handler) UpdateBranding(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	var req UpdateBrandingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := validator.Validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	tenant, err := h.svc.UpdateBranding(c.Request.Context(), identity.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toTenantResponse(tenant))
}

func toTenantResponse(tenant Tenant) TenantResponse {
	return TenantResponse{
		ID:      tenant.ID,
		Name:    tenant.Name,
		Slug:    tenant.Slug,
		LogoURL: tenant.LogoURL,
		Settings: SettingsResponse{
			CommissionRate:         tenant.Settings.CommissionRate,
			AutoDeclineHours:       tenant.Settings.AutoDeclineHours,
			DisputePeriodDays:      tenant.Settings.DisputePeriodDays,
			AllowBroadcastLeads:    tenant.Settings.AllowBroadcastLeads != nil && *tenant.Settings.AllowBroadcastLeads,
			MaxBroadcastRecipients: tenant.Settings.MaxBroadcastRecipients,
		},
		CreatedAt: tenant.CreatedAt,
		UpdatedAt: tenant.UpdatedAt,
	}
}
