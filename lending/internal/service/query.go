package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Astemirdum/lending-service/lending/internal/errs"
	"github.com/Astemirdum/lending-service/lending/internal/model"
)

// ListActiveBorrows returns the user's open borrows, newest first. It takes no locks.
func (s *Service) ListActiveBorrows(ctx context.Context, userID int64) ([]model.BorrowView, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ListActiveBorrows")
	defer span.End()

	items, err := s.repo.ListActiveBorrows(ctx, userID)
	if err != nil {
		failSpan(span, err)
		return nil, errors.Wrap(err, "list active borrows")
	}
	now := s.clock()
	views := make([]model.BorrowView, 0, len(items))
	for _, it := range items {
		views = append(views, borrowView(it, now))
	}
	return views, nil
}

// GetPenalties is visible to the user themself, staff users and the admin role.
func (s *Service) GetPenalties(ctx context.Context, requesterID int64, isAdmin bool, userID int64) (model.PenaltyView, error) {
	ctx, span := s.tracer.Start(ctx, "Service.GetPenalties")
	defer span.End()

	view, err := s.getPenalties(ctx, requesterID, isAdmin, userID)
	if err != nil {
		failSpan(span, err)
		return model.PenaltyView{}, err
	}
	return view, nil
}

func (s *Service) getPenalties(ctx context.Context, requesterID int64, isAdmin bool, userID int64) (model.PenaltyView, error) {
	target, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return model.PenaltyView{}, err
	}
	if requesterID != userID && !isAdmin {
		requester, err := s.repo.GetUser(ctx, requesterID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return model.PenaltyView{}, err
		}
		if !requester.IsStaff {
			return model.PenaltyView{}, errors.Wrap(errs.ErrForbidden, "penalties of another user")
		}
	}
	return model.PenaltyView{
		ID:            target.ID,
		Username:      target.Username,
		PenaltyPoints: target.PenaltyPoints,
	}, nil
}
