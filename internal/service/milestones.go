package service

import (
	"context"

	"dukaan/backend/internal/domain"
)

func (s *Service) PendingCelebration(ctx context.Context) (*domain.Celebration, error) {
	if s.milestones == nil {
		return nil, nil
	}
	return s.milestones.Observe(ctx)
}

func (s *Service) AcknowledgeMilestone(ctx context.Context, thresholdPaise int64) error {
	if s.milestones == nil {
		return nil
	}
	if err := s.milestones.Acknowledge(ctx, thresholdPaise); err != nil {
		return err
	}
	s.logAudit(ctx, "milestone_ack", "milestone", FormatRupees(thresholdPaise), "")
	return nil
}
