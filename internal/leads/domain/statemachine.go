// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"fmt"
	"time"

	"referral_network_backend/platform/apperr"
)

// Status is a lead workflow status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
	StatusContacted Status = "contacted"
	StatusQuoted    Status = "quoted"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusCancelled Status = "cancelled"
)

// Urgency classifies how quickly the customer needs the work done.
type Urgency string

const (
	UrgencyEmergency Urgency = "emergency"
	UrgencyToday     Urgency = "today"
	UrgencyThisWeek  Urgency = "this_week"
	UrgencyFlexible  Urgency = "flexible"
)

// CommissionStatus tracks the commission lifecycle on a lead.
type CommissionStatus string

const (
	CommissionPending    CommissionStatus = "pending"
	CommissionCalculated CommissionStatus = "calculated"
	CommissionDisputed   CommissionStatus = "disputed"
	CommissionPaid       CommissionStatus = "paid"
)

// transitions is the full adjacency table of the lead workflow. A requested
// status change is valid only if it appears here.
var transitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusDeclined, StatusExpired, StatusCancelled},
	StatusAccepted:  {StatusContacted, StatusCancelled},
	StatusContacted: {StatusQuoted, StatusCancelled},
	StatusQuoted:    {StatusWon, StatusLost, StatusCancelled},
}

// ValidStatus reports whether s is one of the known workflow statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusExpired,
		StatusContacted, StatusQuoted, StatusWon, StatusLost, StatusCancelled:
		return true
	}
	return false
}

// ValidUrgency reports whether u is one of the known urgency classes.
func ValidUrgency(u Urgency) bool {
	switch u {
	case UrgencyEmergency, UrgencyToday, UrgencyThisWeek, UrgencyFlexible:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the adjacency table permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Effects captures the timestamp side effects bound to a transition. Nil
// fields are left untouched on the lead.
type Effects struct {
	AcceptedAt          *time.Time
	ContactedAt         *time.Time
	QuotedAt            *time.Time
	CompletedAt         *time.Time
	ResponseTimeMinutes *int
}

// Transition validates current -> target against the adjacency table and
// derives the side effects that must be applied atomically with the status
// write. sharedAt is used to compute the response time on acceptance.
func Transition(current, target Status, sharedAt, now time.Time) (Effects, error) {
	if !ValidStatus(target) {
		return Effects{}, apperr.Validation(fmt.Sprintf("unknown lead status %q", target))
	}
	if !CanTransition(current, target) {
		return Effects{}, apperr.InvalidTransition(
			fmt.Sprintf("cannot transition lead from %q to %q", current, target))
	}

	var fx Effects
	switch target {
	case StatusAccepted:
		fx.AcceptedAt = &now
		minutes := int(now.Sub(sharedAt) / time.Minute)
		if minutes < 0 {
			minutes = 0
		}
		fx.ResponseTimeMinutes = &minutes
	case StatusContacted:
		fx.ContactedAt = &now
	case StatusQuoted:
		fx.QuotedAt = &now
	case StatusWon, StatusLost:
		fx.CompletedAt = &now
	}

	return fx, nil
}

// ExpiresAt computes the auto-decline deadline for a lead shared at sharedAt
// under the tenant's configured window.
func ExpiresAt(sharedAt time.Time, autoDeclineHours int) time.Time {
	return sharedAt.Add(time.Duration(autoDeclineHours) * time.Hour)
}

// IsExpirable reports whether a lead is eligible for the automatic
// pending -> expired transition. The check is idempotent and safe to
// evaluate lazily from multiple callers.
func IsExpirable(status Status, expiresAt *time.Time, now time.Time) bool {
	if status != StatusPending || expiresAt == nil {
		return false
	}
	return now.After(*expiresAt)
}
