// Package members handles association roster imports and member
// invitations.
package members

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apphttp "referral_network_backend/internal/http"
	"referral_network_backend/platform/httpkit"
)

const maxUploadBytes = 2 << 20 // 2 MiB roster upload cap

type Module struct {
	svc *Service
}

func NewModule(db DB) *Module {
	return &Module{svc: NewService(NewRepository(db))}
}

func (m *Module) Name() string {
	return "members"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	members := ctx.Admin.Group("/members")
	members.POST("/import", m.importRoster)
	members.GET("/invitations", m.listInvitations)
}

func (m *Module) importRoster(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	file, _, err := c.Request.FormFile("roster")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "roster file is required", nil)
		return
	}
	defer file.Close()

	report, err := m.svc.ImportRoster(c.Request.Context(), identity.TenantID(), identity.UserID(),
		http.MaxBytesReader(c.Writer, file, maxUploadBytes))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, report)
}

func (m *Module) listInvitations(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	invitations, err := m.svc.ListInvitations(c.Request.Context(), identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": invitations})
}

var _ apphttp.Module = (*Module)(nil)
