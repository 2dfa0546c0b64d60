package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/medbook/support-engine/internal/domain"
	"github.com/medbook/support-engine/internal/repository"
	apperrors "github.com/medbook/support-engine/pkg/util"
)

// AssignmentSelector picks the least-loaded eligible admin for a category.
// Workload counts are a best-effort read, not a reservation: concurrent
// creations may transiently land on the same admin, which is accepted.
type AssignmentSelector struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	logger  *zap.Logger
}

// NewAssignmentSelector constructs the selector.
func NewAssignmentSelector(tickets repository.TicketRepository, users repository.UserRepository, logger *zap.Logger) *AssignmentSelector {
	return &AssignmentSelector{tickets: tickets, users: users, logger: logger}
}

// SelectAdmin returns the active admin with the fewest active tickets among
// those eligible for the category. Ties break by admin id ordering. A nil
// admin with nil error means no eligible admin exists; the caller leaves the
// ticket unassigned rather than failing.
func (s *AssignmentSelector) SelectAdmin(ctx context.Context, category domain.TicketCategory) (*domain.User, error) {
	candidates, err := s.users.ListActiveByRoles(ctx, domain.EligibleRolesFor(category))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(candidates) == 0 {
		s.logger.Info("no eligible admin for category", zap.String("category", string(category)))
		return nil, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}
	counts, err := s.tickets.CountActiveByAdmin(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})

	best := &candidates[0]
	bestCount := counts[best.ID]
	for i := 1; i < len(candidates); i++ {
		if count := counts[candidates[i].ID]; count < bestCount {
			best = &candidates[i]
			bestCount = count
		}
	}

	s.logger.Debug("selected admin for assignment",
		zap.String("admin_id", best.ID),
		zap.String("category", string(category)),
		zap.Int("active_tickets", bestCount))
	return best, nil
}
