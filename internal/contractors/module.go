// Package contractors manages member business profiles and the in-network
// directory contractors refer leads through.
package contractors

import (
	apphttp "referral_network_backend/internal/http"
)

type Module struct {
	handler   *Handler
	service   *Service
	directory *Directory
}

func NewModule(db DB) *Module {
	repo := NewRepository(db)
	svc := NewService(repo)
	return &Module{
		handler:   NewHandler(svc),
		service:   svc,
		directory: NewDirectory(repo),
	}
}

func (m *Module) Name() string {
	return "contractors"
}

// Directory exposes recipient checks and counters to the lead lifecycle.
func (m *Module) Directory() *Directory {
	return m.directory
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
