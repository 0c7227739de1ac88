// Package leads provides the lead lifecycle bounded context module.
package leads

import (
	apphttp "referral_network_backend/internal/http"
	"referral_network_backend/internal/leads/handler"
	"referral_network_backend/internal/leads/repository"
	"referral_network_backend/internal/leads/service"
	"referral_network_backend/platform/events"
	"referral_network_backend/platform/logger"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the lead lifecycle. The settings provider, contractor
// directory, and expiration scheduler come from sibling modules so the
// lifecycle never reaches into their tables.
func NewModule(db repository.DB, settings service.SettingsProvider, directory service.ContractorDirectory, scheduler service.ExpirationScheduler, eventBus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(db)
	svc := service.New(repo, settings, directory, scheduler, eventBus, log)

	return &Module{
		handler: handler.New(svc),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service exposes the lifecycle service for the scheduler binary.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
