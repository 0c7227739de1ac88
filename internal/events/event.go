// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"referral_network_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a referrer shares a new lead.
type LeadCreated struct {
	BaseEvent
	LeadID       uuid.UUID   `json:"leadId"`
	TenantID     uuid.UUID   `json:"tenantId"`
	ReferrerID   uuid.UUID   `json:"referrerId"`
	RecipientID  *uuid.UUID  `json:"recipientId,omitempty"`
	RecipientIDs []uuid.UUID `json:"recipientIds,omitempty"`
	IsBroadcast  bool        `json:"isBroadcast"`
	Urgency      string      `json:"urgency"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadStatusChanged is published after every accepted status transition.
type LeadStatusChanged struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	TenantID       uuid.UUID  `json:"tenantId"`
	PreviousStatus string     `json:"previousStatus"`
	NewStatus      string     `json:"newStatus"`
	ActorID        *uuid.UUID `json:"actorId,omitempty"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// LeadExpired is published when the auto-decline deadline lapses a pending lead.
type LeadExpired struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
}

func (e LeadExpired) EventName() string { return "leads.expired" }

// BroadcastAccepted is published when a broadcast recipient wins the
// acceptance race. Losing registrations are already declined at this point.
type BroadcastAccepted struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	TenantID     uuid.UUID `json:"tenantId"`
	ContractorID uuid.UUID `json:"contractorId"`
}

func (e BroadcastAccepted) EventName() string { return "leads.broadcast.accepted" }

// CommissionCalculated is published when a job value is recorded and the
// commission amount is computed from the lead's snapshotted rate.
type CommissionCalculated struct {
	BaseEvent
	LeadID           uuid.UUID `json:"leadId"`
	TenantID         uuid.UUID `json:"tenantId"`
	ReferrerID       uuid.UUID `json:"referrerId"`
	JobValue         float64   `json:"jobValue"`
	CommissionAmount float64   `json:"commissionAmount"`
}

func (e CommissionCalculated) EventName() string { return "leads.commission.calculated" }
