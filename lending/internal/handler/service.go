package handler

import (
	"context"

	"github.com/Astemirdum/lending-service/lending/internal/model"
	"github.com/Astemirdum/lending-service/lending/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LendingService interface {
	Borrow(ctx context.Context, userID, bookID int64) (model.BorrowView, error)
	Return(ctx context.Context, userID, borrowID int64) (model.ReturnResult, error)
	ListActiveBorrows(ctx context.Context, userID int64) ([]model.BorrowView, error)
	GetPenalties(ctx context.Context, requesterID int64, isAdmin bool, userID int64) (model.PenaltyView, error)
}

var _ LendingService = (*service.Service)(nil)
