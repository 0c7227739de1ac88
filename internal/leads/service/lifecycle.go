package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"referral_network_backend/internal/events"
	"referral_network_backend/internal/leads/domain"
	"referral_network_backend/internal/leads/repository"
	"referral_network_backend/internal/leads/transport"
	"referral_network_backend/platform/apperr"
)

// UpdateStatus moves a lead to the requested status. The transition is
// validated against the state machine before anything is written, and the
// write itself is conditional on the status the caller saw.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, leadID, actorID uuid.UUID, req transport.UpdateStatusRequest) (transport.LeadResponse, error) {
	lead, err := s.getFresh(ctx, tenantID, leadID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	target := domain.Status(req.Status)

	// Cancellation is the one transition a pending broadcast lead takes
	// through here; accept and decline go through the respond endpoint.
	if lead.IsBroadcast && lead.Status == string(domain.StatusPending) && target != domain.StatusCancelled {
		return transport.LeadResponse{}, apperr.Validation("broadcast leads are answered through the respond endpoint")
	}

	if err := s.authorizeTransition(lead, actorID, target); err != nil {
		return transport.LeadResponse{}, err
	}

	now := s.now()
	effects, err := domain.Transition(domain.Status(lead.Status), target, lead.SharedAt, now)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	updated, err := s.store.TransitionStatus(ctx, repository.TransitionParams{
		LeadID:         leadID,
		TenantID:       tenantID,
		ExpectedStatus: lead.Status,
		NewStatus:      string(target),
		Effects:        effects,
		Note:           req.Note,
		ActorID:        &actorID,
		Now:            now,
	})
	if err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}

	if target == domain.StatusWon {
		s.recordCounter(ctx, "lead_won", func() error {
			return s.directory.RecordLeadWon(ctx, tenantID, actorID)
		})
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		TenantID:       tenantID,
		PreviousStatus: lead.Status,
		NewStatus:      string(target),
		ActorID:        &actorID,
	})

	return toLeadResponse(updated), nil
}

// authorizeTransition checks that the actor is allowed to drive this change.
// The recipient works the lead; the referrer may only cancel.
func (s *Service) authorizeTransition(lead repository.Lead, actorID uuid.UUID, target domain.Status) error {
	isReferrer := lead.ReferrerID == actorID
	isRecipient := lead.RecipientID != nil && *lead.RecipientID == actorID

	if target == domain.StatusCancelled {
		if isReferrer || isRecipient {
			return nil
		}
		return apperr.Forbidden("only the referrer or recipient can cancel a lead")
	}

	if !isRecipient {
		return apperr.Forbidden("only the lead recipient can update its status")
	}
	return nil
}

// RecordJobValue sets the final job value on a won lead and locks the
// commission computed from the rate snapshotted at creation.
func (s *Service) RecordJobValue(ctx context.Context, tenantID, leadID, actorID uuid.UUID, req transport.JobValueRequest) (transport.LeadResponse, error) {
	lead, err := s.getFresh(ctx, tenantID, leadID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	winnerID, err := s.resolveWinner(ctx, lead)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if winnerID != actorID {
		return transport.LeadResponse{}, apperr.Forbidden("only the contractor who won the job can record its value")
	}

	if lead.Status != string(domain.StatusWon) {
		return transport.LeadResponse{}, apperr.InvalidTransition("job value can only be recorded on a won lead")
	}
	if lead.CommissionLockedAt != nil {
		return transport.LeadResponse{}, apperr.Conflict("job value is already recorded and the commission is locked")
	}

	commission, err := domain.CalculateCommission(req.JobValue, lead.CommissionRate)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	settings, err := s.settings.LeadSettings(ctx, tenantID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	now := s.now()
	updated, err := s.store.SetJobValue(ctx, repository.JobValueParams{
		LeadID:           leadID,
		TenantID:         tenantID,
		JobValue:         req.JobValue,
		CommissionAmount: commission,
		ActorID:          &actorID,
		// The amount stays disputable until the lock date passes.
		LockedAt: now.Add(time.Duration(settings.DisputePeriodDays) * 24 * time.Hour),
		Now:      now,
	})
	if err != nil {
		return transport.LeadResponse{}, mapStoreErr(err)
	}

	s.recordCounter(ctx, "job_outcome", func() error {
		return s.directory.RecordJobOutcome(ctx, tenantID, lead.ReferrerID, winnerID, req.JobValue, commission)
	})

	s.bus.Publish(ctx, events.CommissionCalculated{
		BaseEvent:        events.NewBaseEvent(),
		LeadID:           leadID,
		TenantID:         tenantID,
		ReferrerID:       lead.ReferrerID,
		JobValue:         req.JobValue,
		CommissionAmount: commission,
	})

	return toLeadResponse(updated), nil
}

// resolveWinner returns the contractor working the lead: the direct
// recipient, or the accepted registrant on a broadcast lead.
func (s *Service) resolveWinner(ctx context.Context, lead repository.Lead) (uuid.UUID, error) {
	if !lead.IsBroadcast {
		if lead.RecipientID == nil {
			return uuid.Nil, apperr.Internal("direct lead has no recipient")
		}
		return *lead.RecipientID, nil
	}

	regs, err := s.store.ListRegistrations(ctx, lead.ID)
	if err != nil {
		return uuid.Nil, err
	}
	for _, reg := range regs {
		if reg.Status == string(domain.StatusAccepted) {
			return reg.ContractorID, nil
		}
	}
	return uuid.Nil, apperr.NotFound("no contractor has accepted this broadcast lead")
}

// RespondToBroadcast records one contractor's accept or decline. Acceptance
// is first come first served; everyone after the winner gets a conflict.
func (s *Service) RespondToBroadcast(ctx context.Context, tenantID, leadID, contractorID uuid.UUID, req transport.BroadcastResponseRequest) (transport.LeadDetailResponse, error) {
	lead, err := s.getFresh(ctx, tenantID, leadID)
	if err != nil {
		return transport.LeadDetailResponse{}, err
	}
	if !lead.IsBroadcast {
		return transport.LeadDetailResponse{}, apperr.Validation("lead is not a broadcast lead")
	}

	now := s.now()

	if req.Response == "decline" {
		if err := s.store.DeclineBroadcast(ctx, leadID, contractorID, now); err != nil {
			return transport.LeadDetailResponse{}, mapStoreErr(err)
		}
		return s.Get(ctx, tenantID, leadID, contractorID)
	}

	updated, err := s.store.AcceptBroadcast(ctx, repository.AcceptBroadcastParams{
		LeadID:       leadID,
		TenantID:     tenantID,
		ContractorID: contractorID,
		Now:          now,
	})
	if err != nil {
		return transport.LeadDetailResponse{}, mapStoreErr(err)
	}

	s.bus.Publish(ctx, events.BroadcastAccepted{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       leadID,
		TenantID:     tenantID,
		ContractorID: contractorID,
	})
	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		TenantID:       tenantID,
		PreviousStatus: string(domain.StatusPending),
		NewStatus:      updated.Status,
		ActorID:        &contractorID,
	})

	return s.Get(ctx, tenantID, leadID, contractorID)
}

// SweepExpired expires every overdue pending lead. The scheduler calls this
// periodically; association admins can trigger it manually.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.store.SweepExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, lead := range expired {
		s.publishExpired(ctx, lead)
	}
	return len(expired), nil
}

// ExpireLead handles the one-shot expiration task for a single lead.
func (s *Service) ExpireLead(ctx context.Context, leadID uuid.UUID) error {
	// Tenant scope is not needed here; the conditional update only fires on
	// an overdue pending lead.
	expired, err := s.store.ExpireLead(ctx, leadID, s.now())
	if err != nil {
		return err
	}
	if expired {
		s.bus.Publish(ctx, events.LeadExpired{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
		})
	}
	return nil
}
