package registry

import (
	"context"

	"github.com/adamscao/protocolreg/internal/cache"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/stats"
)

const recentActivityLimit = 10

// Stats serves dashboard figures
type Stats struct {
	*deps
}

// Dashboard is the home page payload
type Dashboard struct {
	stats.Summary
	Overdue        []*models.Protocol `json:"overdue_protocols"`
	RecentActivity []*models.LogEntry `json:"recent_activity,omitempty"`
}

// Dashboard computes protocol counters. Admins also receive the latest audit entries.
func (s *Stats) Dashboard(ctx context.Context, actor models.Actor) (*Dashboard, error) {
	dash := &Dashboard{}

	ok, err := s.cache.Get(ctx, cache.KeyDashboard, dash)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed", "key", cache.KeyDashboard, "error", err)
	}
	if !ok {
		protocols, err := s.protocols.List(ctx, models.ProtocolFilter{})
		if err != nil {
			return nil, err
		}
		requesters, err := s.requesters.Count(ctx)
		if err != nil {
			return nil, err
		}

		today := s.today()
		dash = &Dashboard{
			Summary: stats.Compute(protocols, today),
			Overdue: stats.Overdue(protocols, today),
		}
		dash.Requesters = requesters

		if err := s.cache.Set(ctx, cache.KeyDashboard, dash); err != nil {
			s.logger.WarnContext(ctx, "cache write failed", "key", cache.KeyDashboard, "error", err)
		}
	}

	if actor.IsAdmin() {
		recent, err := s.audit.Query(ctx, models.AuditFilter{}, recentActivityLimit)
		if err != nil {
			return nil, err
		}
		dash.RecentActivity = recent
	}
	return dash, nil
}
