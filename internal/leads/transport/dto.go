package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateLeadRequest creates a direct or broadcast referral.
type CreateLeadRequest struct {
	RecipientID     *uuid.UUID  `json:"recipientId" validate:"required_without=RecipientIDs,excluded_with=RecipientIDs"`
	RecipientIDs    []uuid.UUID `json:"recipientIds" validate:"omitempty,min=2,unique"`
	CustomerName    string      `json:"customerName" validate:"required,min=1,max=200"`
	CustomerPhone   string      `json:"customerPhone" validate:"required,min=7,max=30"`
	CustomerEmail   string      `json:"customerEmail" validate:"omitempty,email,max=255"`
	CustomerAddress string      `json:"customerAddress" validate:"omitempty,max=255"`
	CustomerCity    string      `json:"customerCity" validate:"omitempty,max=100"`
	CustomerState   string      `json:"customerState" validate:"omitempty,max=50"`
	CustomerZipCode string      `json:"customerZipCode" validate:"omitempty,max=20"`
	ServiceNeeded   string      `json:"serviceNeeded" validate:"required,min=1,max=200"`
	Urgency         string      `json:"urgency" validate:"required,oneof=emergency today this_week flexible"`
	BudgetMin       *float64    `json:"budgetMin" validate:"omitempty,gte=0"`
	BudgetMax       *float64    `json:"budgetMax" validate:"omitempty,gte=0,gtefield=BudgetMin"`
	Notes           string      `json:"notes" validate:"omitempty,max=2000"`
}

// IsBroadcast reports whether the request targets multiple contractors.
func (r CreateLeadRequest) IsBroadcast() bool {
	return len(r.RecipientIDs) > 0
}

// UpdateStatusRequest moves a lead along its lifecycle.
type UpdateStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=accepted declined contacted quoted won lost cancelled"`
	Note   *string `json:"note" validate:"omitempty,max=1000"`
}

// JobValueRequest records the final job value on a won lead.
type JobValueRequest struct {
	JobValue float64 `json:"jobValue" validate:"required,gt=0"`
}

// BroadcastResponseRequest is one contractor's answer to a broadcast lead.
type BroadcastResponseRequest struct {
	Response string `json:"response" validate:"required,oneof=accept decline"`
}

// ListLeadsQuery filters the lead listing.
type ListLeadsQuery struct {
	Direction string `form:"direction" validate:"omitempty,oneof=sent received"`
	Status    string `form:"status" validate:"omitempty,oneof=pending accepted declined expired contacted quoted won lost cancelled"`
	Page      int    `form:"page" validate:"omitempty,gte=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,gte=1,lte=100"`
}

// LeadResponse is the API shape of a lead.
type LeadResponse struct {
	ID                  uuid.UUID  `json:"id"`
	TenantID            uuid.UUID  `json:"tenantId"`
	ReferrerID          uuid.UUID  `json:"referrerId"`
	RecipientID         *uuid.UUID `json:"recipientId"`
	CustomerName        string     `json:"customerName"`
	CustomerPhone       string     `json:"customerPhone"`
	CustomerEmail       *string    `json:"customerEmail,omitempty"`
	CustomerAddress     *string    `json:"customerAddress,omitempty"`
	CustomerCity        *string    `json:"customerCity,omitempty"`
	CustomerState       *string    `json:"customerState,omitempty"`
	CustomerZipCode     *string    `json:"customerZipCode,omitempty"`
	ServiceNeeded       string     `json:"serviceNeeded"`
	Urgency             string     `json:"urgency"`
	BudgetMin           *float64   `json:"budgetMin,omitempty"`
	BudgetMax           *float64   `json:"budgetMax,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
	Status              string     `json:"status"`
	IsBroadcast         bool       `json:"isBroadcast"`
	SharedAt            time.Time  `json:"sharedAt"`
	AcceptedAt          *time.Time `json:"acceptedAt,omitempty"`
	ContactedAt         *time.Time `json:"contactedAt,omitempty"`
	QuotedAt            *time.Time `json:"quotedAt,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	ExpiresAt           *time.Time `json:"expiresAt,omitempty"`
	JobValue            *float64   `json:"jobValue,omitempty"`
	CommissionRate      float64    `json:"commissionRate"`
	CommissionAmount    *float64   `json:"commissionAmount,omitempty"`
	CommissionStatus    string     `json:"commissionStatus"`
	CommissionLockedAt  *time.Time `json:"commissionLockedAt,omitempty"`
	ResponseTimeMinutes *int       `json:"responseTimeMinutes,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// RegistrationResponse is the API shape of one broadcast registration.
type RegistrationResponse struct {
	ID           uuid.UUID  `json:"id"`
	ContractorID uuid.UUID  `json:"contractorId"`
	Status       string     `json:"status"`
	NotifiedAt   time.Time  `json:"notifiedAt"`
	ViewedAt     *time.Time `json:"viewedAt,omitempty"`
	RespondedAt  *time.Time `json:"respondedAt,omitempty"`
}

// HistoryEntryResponse is one audit trail entry.
type HistoryEntryResponse struct {
	ID             uuid.UUID  `json:"id"`
	PreviousStatus *string    `json:"previousStatus,omitempty"`
	NewStatus      string     `json:"newStatus"`
	Note           *string    `json:"note,omitempty"`
	ChangedBy      *uuid.UUID `json:"changedBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// LeadDetailResponse is a lead with its audit trail and, for broadcast
// leads, its registrations.
type LeadDetailResponse struct {
	LeadResponse
	History       []HistoryEntryResponse `json:"history"`
	Registrations []RegistrationResponse `json:"registrations,omitempty"`
}

// LeadListResponse is a paginated lead listing.
type LeadListResponse struct {
	Items    []LeadResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

// SweepResponse reports a manual expiration sweep.
type SweepResponse struct {
	ExpiredCount int `json:"expiredCount"`
}
