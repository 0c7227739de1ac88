package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"referral_network_backend/internal/leads/repository"
	"referral_network_backend/internal/leads/transport"
	"referral_network_backend/platform/apperr"
	"referral_network_backend/platform/events"
	"referral_network_backend/platform/logger"
)

type fakeStore struct {
	leads         map[uuid.UUID]repository.Lead
	registrations map[uuid.UUID][]repository.Registration
	history       map[uuid.UUID][]repository.HistoryEntry

	createErr     error
	transitionErr error
	acceptErr     error
	sweepReturns  []repository.Lead
	sweepCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:         make(map[uuid.UUID]repository.Lead),
		registrations: make(map[uuid.UUID][]repository.Registration),
		history:       make(map[uuid.UUID][]repository.HistoryEntry),
	}
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	if f.createErr != nil {
		return repository.Lead{}, f.createErr
	}
	lead := repository.Lead{
		ID:               uuid.New(),
		TenantID:         params.TenantID,
		ReferrerID:       params.ReferrerID,
		RecipientID:      params.RecipientID,
		CustomerName:     params.CustomerName,
		CustomerPhone:    params.CustomerPhone,
		ServiceNeeded:    params.ServiceNeeded,
		Urgency:          params.Urgency,
		Status:           "pending",
		IsBroadcast:      params.IsBroadcast,
		SharedAt:         params.SharedAt,
		ExpiresAt:        &params.ExpiresAt,
		CommissionRate:   params.CommissionRate,
		CommissionStatus: "pending",
		CreatedAt:        params.SharedAt,
		UpdatedAt:        params.SharedAt,
	}
	f.leads[lead.ID] = lead
	for _, contractorID := range params.RecipientIDs {
		f.registrations[lead.ID] = append(f.registrations[lead.ID], repository.Registration{
			ID:           uuid.New(),
			LeadID:       lead.ID,
			ContractorID: contractorID,
			Status:       "pending",
			NotifiedAt:   params.SharedAt,
		})
	}
	return lead, nil
}

func (f *fakeStore) GetByID(_ context.Context, id, tenantID uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok || lead.TenantID != tenantID {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeStore) List(_ context.Context, params repository.ListParams) ([]repository.Lead, int, error) {
	out := make([]repository.Lead, 0)
	for _, lead := range f.leads {
		if lead.TenantID == params.TenantID {
			out = append(out, lead)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) TransitionStatus(_ context.Context, params repository.TransitionParams) (repository.Lead, error) {
	if f.transitionErr != nil {
		return repository.Lead{}, f.transitionErr
	}
	lead, ok := f.leads[params.LeadID]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if lead.Status != params.ExpectedStatus {
		return repository.Lead{}, repository.ErrStatusChanged
	}
	lead.Status = params.NewStatus
	if params.Effects.AcceptedAt != nil {
		lead.AcceptedAt = params.Effects.AcceptedAt
	}
	if params.Effects.ContactedAt != nil {
		lead.ContactedAt = params.Effects.ContactedAt
	}
	if params.Effects.QuotedAt != nil {
		lead.QuotedAt = params.Effects.QuotedAt
	}
	if params.Effects.CompletedAt != nil {
		lead.CompletedAt = params.Effects.CompletedAt
	}
	if params.Effects.ResponseTimeMinutes != nil {
		lead.ResponseTimeMinutes = params.Effects.ResponseTimeMinutes
	}
	lead.UpdatedAt = params.Now
	f.leads[params.LeadID] = lead
	if lead.IsBroadcast && params.NewStatus == "cancelled" {
		regs := f.registrations[params.LeadID]
		for i := range regs {
			if regs[i].Status == "pending" {
				regs[i].Status = "declined"
				regs[i].RespondedAt = &params.Now
			}
		}
		f.registrations[params.LeadID] = regs
	}
	return lead, nil
}

func (f *fakeStore) SetJobValue(_ context.Context, params repository.JobValueParams) (repository.Lead, error) {
	lead, ok := f.leads[params.LeadID]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if lead.Status != "won" {
		return repository.Lead{}, repository.ErrStatusChanged
	}
	lead.JobValue = &params.JobValue
	lead.CommissionAmount = &params.CommissionAmount
	lead.CommissionStatus = "calculated"
	lead.CommissionLockedAt = &params.LockedAt
	lead.UpdatedAt = params.Now
	f.leads[params.LeadID] = lead
	return lead, nil
}

func (f *fakeStore) AcceptBroadcast(_ context.Context, params repository.AcceptBroadcastParams) (repository.Lead, error) {
	if f.acceptErr != nil {
		return repository.Lead{}, f.acceptErr
	}
	lead, ok := f.leads[params.LeadID]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if lead.Status == "expired" {
		return repository.Lead{}, repository.ErrLeadExpired
	}
	if lead.Status != "pending" {
		return repository.Lead{}, repository.ErrLeadClaimed
	}
	found := false
	regs := f.registrations[params.LeadID]
	for i := range regs {
		if regs[i].ContractorID == params.ContractorID {
			if regs[i].Status != "pending" {
				return repository.Lead{}, repository.ErrAlreadyResponded
			}
			regs[i].Status = "accepted"
			regs[i].RespondedAt = &params.Now
			found = true
			continue
		}
		if regs[i].Status == "pending" {
			regs[i].Status = "declined"
			regs[i].RespondedAt = &params.Now
		}
	}
	if !found {
		return repository.Lead{}, repository.ErrRegistrationNotFound
	}
	f.registrations[params.LeadID] = regs

	minutes := int(params.Now.Sub(lead.SharedAt) / time.Minute)
	lead.Status = "accepted"
	lead.AcceptedAt = &params.Now
	lead.ResponseTimeMinutes = &minutes
	f.leads[params.LeadID] = lead
	return lead, nil
}

func (f *fakeStore) DeclineBroadcast(_ context.Context, leadID, contractorID uuid.UUID, now time.Time) error {
	regs := f.registrations[leadID]
	for i := range regs {
		if regs[i].ContractorID == contractorID {
			if regs[i].Status != "pending" {
				return repository.ErrAlreadyResponded
			}
			regs[i].Status = "declined"
			regs[i].RespondedAt = &now
			f.registrations[leadID] = regs
			return nil
		}
	}
	return repository.ErrRegistrationNotFound
}

func (f *fakeStore) MarkViewed(_ context.Context, leadID, contractorID uuid.UUID, now time.Time) error {
	regs := f.registrations[leadID]
	for i := range regs {
		if regs[i].ContractorID == contractorID && regs[i].ViewedAt == nil {
			regs[i].ViewedAt = &now
		}
	}
	f.registrations[leadID] = regs
	return nil
}

func (f *fakeStore) ListHistory(_ context.Context, leadID uuid.UUID) ([]repository.HistoryEntry, error) {
	return f.history[leadID], nil
}

func (f *fakeStore) ListRegistrations(_ context.Context, leadID uuid.UUID) ([]repository.Registration, error) {
	return f.registrations[leadID], nil
}

func (f *fakeStore) SweepExpired(_ context.Context, now time.Time) ([]repository.Lead, error) {
	f.sweepCalls++
	expired := make([]repository.Lead, 0)
	for id, lead := range f.leads {
		if lead.Status == "pending" && lead.ExpiresAt != nil && now.After(*lead.ExpiresAt) {
			lead.Status = "expired"
			f.leads[id] = lead
			expired = append(expired, lead)
		}
	}
	if f.sweepReturns != nil {
		return f.sweepReturns, nil
	}
	return expired, nil
}

func (f *fakeStore) ExpireLead(_ context.Context, leadID uuid.UUID, now time.Time) (bool, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return false, nil
	}
	if lead.Status != "pending" || lead.ExpiresAt == nil || !now.After(*lead.ExpiresAt) {
		return false, nil
	}
	lead.Status = "expired"
	f.leads[leadID] = lead
	return true, nil
}

type fakeSettings struct {
	settings Settings
	err      error
}

func (f *fakeSettings) LeadSettings(context.Context, uuid.UUID) (Settings, error) {
	if f.err != nil {
		return Settings{}, f.err
	}
	return f.settings, nil
}

type fakeDirectory struct {
	verifyErr   error
	counterErr  error
	sent        int
	received    int
	won         int
	jobOutcomes int
}

func (f *fakeDirectory) VerifyActive(context.Context, uuid.UUID, []uuid.UUID) error {
	return f.verifyErr
}

func (f *fakeDirectory) RecordLeadSent(context.Context, uuid.UUID, uuid.UUID) error {
	if f.counterErr != nil {
		return f.counterErr
	}
	f.sent++
	return nil
}

func (f *fakeDirectory) RecordLeadReceived(context.Context, uuid.UUID, uuid.UUID) error {
	if f.counterErr != nil {
		return f.counterErr
	}
	f.received++
	return nil
}

func (f *fakeDirectory) RecordLeadWon(context.Context, uuid.UUID, uuid.UUID) error {
	if f.counterErr != nil {
		return f.counterErr
	}
	f.won++
	return nil
}

func (f *fakeDirectory) RecordJobOutcome(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, float64, float64) error {
	if f.counterErr != nil {
		return f.counterErr
	}
	f.jobOutcomes++
	return nil
}

type fakeScheduler struct {
	scheduled []time.Time
	err       error
}

func (f *fakeScheduler) ScheduleLeadExpiration(_ context.Context, _ uuid.UUID, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, at)
	return nil
}

type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, event events.Event) {
	f.published = append(f.published, event)
}

func (f *fakeBus) PublishSync(_ context.Context, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func (f *fakeBus) Subscribe(string, events.Handler) {}

func (f *fakeBus) names() []string {
	out := make([]string, 0, len(f.published))
	for _, e := range f.published {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	svc       *Service
	store     *fakeStore
	settings  *fakeSettings
	directory *fakeDirectory
	scheduler *fakeScheduler
	bus       *fakeBus
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newFakeStore(),
		settings: &fakeSettings{settings: Settings{
			CommissionRate:         10,
			AutoDeclineHours:       2,
			DisputePeriodDays:      7,
			AllowBroadcastLeads:    true,
			MaxBroadcastRecipients: 5,
		}},
		directory: &fakeDirectory{},
		scheduler: &fakeScheduler{},
		bus:       &fakeBus{},
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = New(f.store, f.settings, f.directory, f.scheduler, f.bus, logger.New("development"))
	f.svc.now = func() time.Time { return f.now }
	return f
}

func directRequest(recipientID uuid.UUID) transport.CreateLeadRequest {
	return transport.CreateLeadRequest{
		RecipientID:   &recipientID,
		CustomerName:  "Dana Reyes",
		CustomerPhone: "+12125550123",
		ServiceNeeded: "Water heater replacement",
		Urgency:       "today",
	}
}

func broadcastRequest(recipients ...uuid.UUID) transport.CreateLeadRequest {
	return transport.CreateLeadRequest{
		RecipientIDs:  recipients,
		CustomerName:  "Dana Reyes",
		CustomerPhone: "+12125550123",
		ServiceNeeded: "Panel upgrade",
		Urgency:       "this_week",
	}
}

func TestCreateDirectLead(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	referrerID := uuid.New()
	recipientID := uuid.New()

	lead, err := f.svc.Create(context.Background(), tenantID, referrerID, directRequest(recipientID))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if lead.Status != "pending" {
		t.Errorf("status = %q, want pending", lead.Status)
	}
	if lead.CommissionRate != 10 {
		t.Errorf("commission rate = %v, want snapshot of tenant rate 10", lead.CommissionRate)
	}
	if lead.ExpiresAt == nil {
		t.Fatal("expected expiresAt to be set")
	}
	wantDeadline := f.now.Add(2 * time.Hour)
	if !lead.ExpiresAt.Equal(wantDeadline) {
		t.Errorf("expiresAt = %v, want %v", lead.ExpiresAt, wantDeadline)
	}
	if len(f.scheduler.scheduled) != 1 || !f.scheduler.scheduled[0].Equal(wantDeadline) {
		t.Errorf("expected one expiration task at %v, got %v", wantDeadline, f.scheduler.scheduled)
	}
	if f.directory.sent != 1 || f.directory.received != 1 {
		t.Errorf("counters sent=%d received=%d, want 1 and 1", f.directory.sent, f.directory.received)
	}
	if got := f.bus.names(); len(got) != 1 || got[0] != "leads.created" {
		t.Errorf("published events = %v, want [leads.created]", got)
	}
}

func TestCreateRejectsSelfReferral(t *testing.T) {
	f := newFixture(t)
	referrerID := uuid.New()

	_, err := f.svc.Create(context.Background(), uuid.New(), referrerID, directRequest(referrerID))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for self referral, got %v", err)
	}
}

func TestCreateBroadcastOverRecipientLimit(t *testing.T) {
	f := newFixture(t)
	f.settings.settings.MaxBroadcastRecipients = 3

	recipients := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	_, err := f.svc.Create(context.Background(), uuid.New(), uuid.New(), broadcastRequest(recipients...))
	if !apperr.Is(err, apperr.KindLimitExceeded) {
		t.Fatalf("expected limit exceeded error, got %v", err)
	}
}

func TestCreateBroadcastNeedsTwoRecipients(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), uuid.New(), uuid.New(), broadcastRequest(uuid.New()))
	if !apperr.Is(err, apperr.KindLimitExceeded) {
		t.Fatalf("expected limit exceeded error for a single-recipient broadcast, got %v", err)
	}
}

func TestCreateBroadcastDisabledByTenant(t *testing.T) {
	f := newFixture(t)
	f.settings.settings.AllowBroadcastLeads = false

	_, err := f.svc.Create(context.Background(), uuid.New(), uuid.New(), broadcastRequest(uuid.New(), uuid.New()))
	if !apperr.Is(err, apperr.KindLimitExceeded) {
		t.Fatalf("expected limit exceeded error, got %v", err)
	}
}

func TestCreateSucceedsWhenCountersFail(t *testing.T) {
	f := newFixture(t)
	f.directory.counterErr = errors.New("counter table locked")

	lead, err := f.svc.Create(context.Background(), uuid.New(), uuid.New(), directRequest(uuid.New()))
	if err != nil {
		t.Fatalf("Create should not fail on counter errors, got %v", err)
	}
	if lead.Status != "pending" {
		t.Errorf("status = %q, want pending", lead.Status)
	}
}

func TestUpdateStatusHappyPath(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	referrerID := uuid.New()
	recipientID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, referrerID, directRequest(recipientID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.now = f.now.Add(25 * time.Minute)
	updated, err := f.svc.UpdateStatus(context.Background(), tenantID, created.ID, recipientID, transport.UpdateStatusRequest{Status: "accepted"})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != "accepted" {
		t.Errorf("status = %q, want accepted", updated.Status)
	}
	if updated.ResponseTimeMinutes == nil || *updated.ResponseTimeMinutes != 25 {
		t.Errorf("response time = %v, want 25", updated.ResponseTimeMinutes)
	}
}

func TestUpdateStatusRejectsNonRecipient(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	referrerID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, referrerID, directRequest(uuid.New()))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.svc.UpdateStatus(context.Background(), tenantID, created.ID, referrerID, transport.UpdateStatusRequest{Status: "accepted"})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for referrer accepting own lead, got %v", err)
	}
}

func TestUpdateStatusReferrerCanCancel(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	referrerID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, referrerID, directRequest(uuid.New()))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := f.svc.UpdateStatus(context.Background(), tenantID, created.ID, referrerID, transport.UpdateStatusRequest{Status: "cancelled"})
	if err != nil {
		t.Fatalf("cancel by referrer should succeed, got %v", err)
	}
	if updated.Status != "cancelled" {
		t.Errorf("status = %q, want cancelled", updated.Status)
	}
}

func TestUpdateStatusReferrerCancelsPendingBroadcast(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	referrerID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, referrerID, broadcastRequest(uuid.New(), uuid.New(), uuid.New()))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := f.svc.UpdateStatus(context.Background(), tenantID, created.ID, referrerID, transport.UpdateStatusRequest{Status: "cancelled"})
	if err != nil {
		t.Fatalf("referrer cancel of a pending broadcast should succeed, got %v", err)
	}
	if updated.Status != "cancelled" {
		t.Errorf("status = %q, want cancelled", updated.Status)
	}

	regs, err := f.store.ListRegistrations(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("ListRegistrations: %v", err)
	}
	for _, reg := range regs {
		if reg.Status != "declined" {
			t.Errorf("registration %s status = %q, want declined after cancellation", reg.ContractorID, reg.Status)
		}
	}

	// Accept and decline still refuse an open broadcast through this path.
	recipientID := uuid.New()
	created2, err := f.svc.Create(context.Background(), tenantID, referrerID, broadcastRequest(recipientID, uuid.New()))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = f.svc.UpdateStatus(context.Background(), tenantID, created2.ID, recipientID, transport.UpdateStatusRequest{Status: "accepted"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for accept via status update, got %v", err)
	}
}

func TestUpdateStatusExpiresOverdueLeadFirst(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	recipientID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, uuid.New(), directRequest(recipientID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Past the two hour deadline: acceptance must fail and the lead reads
	// back as expired.
	f.now = f.now.Add(121 * time.Minute)
	_, err = f.svc.UpdateStatus(context.Background(), tenantID, created.ID, recipientID, transport.UpdateStatusRequest{Status: "accepted"})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition on expired lead, got %v", err)
	}
	if got := f.store.leads[created.ID].Status; got != "expired" {
		t.Errorf("stored status = %q, want expired", got)
	}
}

func TestUpdateStatusConcurrentChangeMapsToConflict(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	recipientID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, uuid.New(), directRequest(recipientID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.store.transitionErr = repository.ErrStatusChanged
	_, err = f.svc.UpdateStatus(context.Background(), tenantID, created.ID, recipientID, transport.UpdateStatusRequest{Status: "accepted"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRecordJobValueCalculatesAndLocksCommission(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	recipientID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, uuid.New(), directRequest(recipientID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, status := range []string{"accepted", "contacted", "quoted", "won"} {
		if _, err := f.svc.UpdateStatus(context.Background(), tenantID, created.ID, recipientID, transport.UpdateStatusRequest{Status: status}); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	lead, err := f.svc.RecordJobValue(context.Background(), tenantID, created.ID, recipientID, transport.JobValueRequest{JobValue: 4500})
	if err != nil {
		t.Fatalf("RecordJobValue: %v", err)
	}
	if lead.CommissionAmount == nil || *lead.CommissionAmount != 450 {
		t.Errorf("commission = %v, want 450", lead.CommissionAmount)
	}
	if lead.CommissionStatus != "calculated" {
		t.Errorf("commission status = %q, want calculated", lead.CommissionStatus)
	}
	wantLock := f.now.Add(7 * 24 * time.Hour)
	if lead.CommissionLockedAt == nil || !lead.CommissionLockedAt.Equal(wantLock) {
		t.Errorf("commissionLockedAt = %v, want dispute window end %v", lead.CommissionLockedAt, wantLock)
	}
	if f.directory.jobOutcomes != 1 {
		t.Errorf("job outcome counter = %d, want 1", f.directory.jobOutcomes)
	}

	// A second write must be rejected: the commission is locked.
	_, err = f.svc.RecordJobValue(context.Background(), tenantID, created.ID, recipientID, transport.JobValueRequest{JobValue: 9000})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on locked commission, got %v", err)
	}
}

func TestRecordJobValueRequiresWonStatus(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	recipientID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, uuid.New(), directRequest(recipientID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.svc.RecordJobValue(context.Background(), tenantID, created.ID, recipientID, transport.JobValueRequest{JobValue: 4500})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition on pending lead, got %v", err)
	}
}

func TestRespondToBroadcastFirstAcceptWins(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	winner := uuid.New()
	loser := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, uuid.New(), broadcastRequest(winner, loser))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	detail, err := f.svc.RespondToBroadcast(context.Background(), tenantID, created.ID, winner, transport.BroadcastResponseRequest{Response: "accept"})
	if err != nil {
		t.Fatalf("winner accept: %v", err)
	}
	if detail.Status != "accepted" {
		t.Errorf("lead status = %q, want accepted", detail.Status)
	}

	var loserStatus string
	for _, reg := range detail.Registrations {
		if reg.ContractorID == loser {
			loserStatus = reg.Status
		}
	}
	if loserStatus != "declined" {
		t.Errorf("loser registration = %q, want declined", loserStatus)
	}

	_, err = f.svc.RespondToBroadcast(context.Background(), tenantID, created.ID, loser, transport.BroadcastResponseRequest{Response: "accept"})
	if !apperr.Is(err, apperr.KindAlreadyClaimed) {
		t.Fatalf("expected already claimed for second accept, got %v", err)
	}
}

func TestRespondToBroadcastDeclineLeavesLeadOpen(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	first := uuid.New()
	second := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, uuid.New(), broadcastRequest(first, second))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	detail, err := f.svc.RespondToBroadcast(context.Background(), tenantID, created.ID, first, transport.BroadcastResponseRequest{Response: "decline"})
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if detail.Status != "pending" {
		t.Errorf("lead status = %q, want still pending", detail.Status)
	}

	// The second contractor can still claim it.
	detail, err = f.svc.RespondToBroadcast(context.Background(), tenantID, created.ID, second, transport.BroadcastResponseRequest{Response: "accept"})
	if err != nil {
		t.Fatalf("second accept after decline: %v", err)
	}
	if detail.Status != "accepted" {
		t.Errorf("lead status = %q, want accepted", detail.Status)
	}
}

func TestRespondToBroadcastOnDirectLead(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	recipientID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, uuid.New(), directRequest(recipientID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.svc.RespondToBroadcast(context.Background(), tenantID, created.ID, recipientID, transport.BroadcastResponseRequest{Response: "accept"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for direct lead, got %v", err)
	}
}

func TestRespondToBroadcastAfterDeadline(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	recipientID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, uuid.New(), broadcastRequest(recipientID, uuid.New()))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Past the two hour deadline the acceptance hits an expired lead, not a
	// claimed one.
	f.now = f.now.Add(3 * time.Hour)

	_, err = f.svc.RespondToBroadcast(context.Background(), tenantID, created.ID, recipientID, transport.BroadcastResponseRequest{Response: "accept"})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition error for an expired lead, got %v", err)
	}
	if apperr.Is(err, apperr.KindAlreadyClaimed) {
		t.Fatalf("expiry must not surface as a claim by another contractor: %v", err)
	}
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()

	created, err := f.svc.Create(context.Background(), tenantID, uuid.New(), directRequest(uuid.New()))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.now = f.now.Add(3 * time.Hour)

	count, err := f.svc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("first sweep expired %d leads, want 1", count)
	}
	if got := f.store.leads[created.ID].Status; got != "expired" {
		t.Errorf("stored status = %q, want expired", got)
	}

	count, err = f.svc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep expired %d leads, want 0", count)
	}
}
