// Package trades serves the trade categories contractors classify
// themselves under. The list is seeded by migration and read-only at
// runtime.
package trades

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apphttp "referral_network_backend/internal/http"
	"referral_network_backend/platform/httpkit"
)

type Trade struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// DB is the subset of pgxpool.Pool this module uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Trade, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, created_at FROM trades ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := make([]Trade, 0)
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

type Module struct {
	repo *Repository
}

func NewModule(db DB) *Module {
	return &Module{repo: NewRepository(db)}
}

func (m *Module) Name() string {
	return "trades"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/trades", m.list)
}

func (m *Module) list(c *gin.Context) {
	trades, err := m.repo.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": trades})
}

var _ apphttp.Module = (*Module)(nil)
