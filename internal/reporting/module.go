// Package reporting serves association dashboards and leaderboards built
// from the lead tables.
package reporting

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apphttp "referral_network_backend/internal/http"
	"referral_network_backend/platform/httpkit"
)

type Module struct {
	svc *Service
}

func NewModule(db DB) *Module {
	return &Module{svc: NewService(NewRepository(db))}
}

func (m *Module) Name() string {
	return "reporting"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/reports/dashboard", m.dashboard)
}

func (m *Module) dashboard(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			httpkit.Error(c, http.StatusBadRequest, "days must be between 1 and 365", nil)
			return
		}
		days = parsed
	}

	dashboard, err := m.svc.Dashboard(c.Request.Context(), identity.TenantID(), days)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, dashboard)
}

var _ apphttp.Module = (*Module)(nil)
