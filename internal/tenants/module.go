// Package tenants manages trade association profiles and settings.
package tenants

import (
	apphttp "referral_network_backend/internal/http"
)

type Module struct {
	handler *Handler
	service *Service
}

func NewModule(db DB) *Module {
	svc := NewService(NewRepository(db))
	return &Module{
		handler: NewHandler(svc),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "tenants"
}

// Service exposes tenant settings to sibling modules.
func (m *Module) Service() *Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

var _ apphttp.Module = (*Module)(nil)
