package contractors

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"referral_network_backend/platform/httpkit"
	"referral_network_backend/platform/validator"
)

type SearchQuery struct {
	Q           string    `form:"q" validate:"omitempty,max=200"`
	TradeID     uuid.UUID `form:"tradeId"`
	ExcludeSelf uuid.UUID `form:"-"`
	Page        int       `form:"page" validate:"omitempty,gte=1"`
	PageSize    int       `form:"pageSize" validate:"omitempty,gte=1,lte=100"`
}

type UpdateProfileRequest struct {
	BusinessName  string     `json:"businessName" validate:"required,min=1,max=200"`
	ContactName   string     `json:"contactName" validate:"required,min=1,max=200"`
	Phone         string     `json:"phone" validate:"omitempty,min=7,max=30"`
	TradeID       *uuid.UUID `json:"tradeId"`
	ServiceArea   string     `json:"serviceArea" validate:"omitempty,max=255"`
	LicenseNumber string     `json:"licenseNumber" validate:"omitempty,max=100"`
}

type ContractorResponse struct {
	ID                 uuid.UUID  `json:"id"`
	BusinessName       string     `json:"businessName"`
	ContactName        string     `json:"contactName"`
	Email              string     `json:"email"`
	Phone              *string    `json:"phone,omitempty"`
	TradeID            *uuid.UUID `json:"tradeId,omitempty"`
	ServiceArea        *string    `json:"serviceArea,omitempty"`
	LicenseNumber      *string    `json:"licenseNumber,omitempty"`
	Status             string     `json:"status"`
	LeadsSentCount     int        `json:"leadsSentCount"`
	LeadsReceivedCount int        `json:"leadsReceivedCount"`
	JobsWonCount       int        `json:"jobsWonCount"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type ContractorListResponse struct {
	Items    []ContractorResponse `json:"items"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/contractors")
	group.GET("", h.Search)
	group.GET("/:id", h.GetByID)
	group.GET("/:id/reciprocity", h.Reciprocity)
	group.PUT("/me", h.UpdateProfile)
}

func (h *Handler) Search(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	var query SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := validator.Validate.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	query.ExcludeSelf = identity.UserID()

	contractors, total, err := h.svc.Search(c.Request.Context(), identity.TenantID(), query)
	if httpkit.HandleError(c, err) {
		return
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	resp := ContractorListResponse{
		Items:    make([]ContractorResponse, 0, len(contractors)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, contractor := range contractors {
		resp.Items = append(resp.Items, toContractorResponse(contractor))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetByID(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contractor id", nil)
		return
	}

	contractor, err := h.svc.Get(c.Request.Context(), id, identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toContractorResponse(contractor))
}

func (h *Handler) Reciprocity(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contractor id", nil)
		return
	}

	rec, err := h.svc.Reciprocity(c.Request.Context(), id, identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, rec)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := validator.Validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	contractor, err := h.svc.UpdateProfile(c.Request.Context(), identity.UserID(), identity.TenantID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toContractorResponse(contractor))
}

func toContractorResponse(c Contractor) ContractorResponse {
	return ContractorResponse{
		ID:                 c.ID,
		BusinessName:       c.BusinessName,
		ContactName:        c.ContactName,
		Email:              c.Email,
		Phone:              c.Phone,
		TradeID:            c.TradeID,
		ServiceArea:        c.ServiceArea,
		LicenseNumber:      c.LicenseNumber,
		Status:             c.Status,
		LeadsSentCount:     c.LeadsSentCount,
		LeadsReceivedCount: c.LeadsReceivedCount,
		JobsWonCount:       c.JobsWonCount,
		CreatedAt:          c.CreatedAt,
	}
}
