package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/lending/internal/errs"
	"github.com/Astemirdum/lending-service/lending/internal/model"
	"github.com/Astemirdum/lending-service/lending/internal/overdue"
	"github.com/Astemirdum/lending-service/lending/internal/repository"
	"github.com/Astemirdum/lending-service/pkg/kafka"
)

// Return closes borrowID on behalf of userID, releases the copy and charges
// one penalty point per whole day past the due date.
func (s *Service) Return(ctx context.Context, userID, borrowID int64) (model.ReturnResult, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Return", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("borrow.id", borrowID),
	))
	defer span.End()

	res, err := s.returnBorrow(ctx, userID, borrowID)
	if err != nil {
		failSpan(span, err)
		return model.ReturnResult{}, err
	}
	return res, nil
}

func checkReturnable(b model.Borrow, userID int64) error {
	if !b.IsActive() {
		return errors.Wrapf(errs.ErrAlreadyReturned, "borrow %d", b.ID)
	}
	if b.UserID != userID {
		return errors.Wrap(errs.ErrForbidden, "you can only return your own books")
	}
	return nil
}

func (s *Service) returnBorrow(ctx context.Context, userID, borrowID int64) (model.ReturnResult, error) {
	borrow, err := s.repo.GetBorrow(ctx, borrowID)
	if err != nil {
		return model.ReturnResult{}, err
	}
	if err := checkReturnable(borrow, userID); err != nil {
		return model.ReturnResult{}, err
	}

	now := s.clock()
	var (
		penalty int
		closed  model.Borrow
		book    model.Book
		user    model.User
	)
	err = s.repo.WithTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockBorrow(ctx, borrowID)
		if err != nil {
			return err
		}
		if err := checkReturnable(locked, userID); err != nil {
			return err
		}
		if _, err := tx.LockBook(ctx, locked.BookID); err != nil {
			return err
		}
		user, err = tx.LockUser(ctx, locked.UserID)
		if err != nil {
			return err
		}

		returnDate := now
		if returnDate.Before(locked.BorrowDate) {
			returnDate = locked.BorrowDate
		}
		penalty = overdue.Penalty(locked.DueDate, returnDate)
		if penalty > 0 {
			user.PenaltyPoints += penalty
			if err := tx.SavePenaltyPoints(ctx, user.ID, user.PenaltyPoints); err != nil {
				return errors.Wrap(err, "save penalty points")
			}
		}

		if err := tx.SaveBorrowReturn(ctx, locked.ID, returnDate); err != nil {
			return errors.Wrap(err, "save borrow return")
		}
		closed = locked
		closed.ReturnDate = &returnDate

		book, err = s.releaseCopy(ctx, tx, locked.BookID)
		return err
	})
	if err != nil {
		return model.ReturnResult{}, err
	}

	s.log.Info("book returned",
		zap.Int64("borrowID", closed.ID),
		zap.Int64("userID", closed.UserID),
		zap.Int64("bookID", closed.BookID),
		zap.Int("penalty", penalty))

	s.publish(ctx, kafka.EventLending{
		EventID:      uuid.NewString(),
		EventType:    kafka.EventReturned,
		Timestamp:    now,
		BorrowID:     closed.ID,
		UserID:       closed.UserID,
		BookID:       closed.BookID,
		DueDate:      closed.DueDate,
		ReturnDate:   closed.ReturnDate,
		PenaltyAdded: penalty,
	})

	return model.ReturnResult{
		Message:            returnedMessage,
		PenaltyPointsAdded: penalty,
		TotalPenaltyPoints: user.PenaltyPoints,
		Borrow: borrowView(model.BorrowDetails{
			Borrow:     closed,
			Username:   user.Username,
			BookTitle:  book.Title,
			AuthorName: book.Author,
		}, now),
	}, nil
}
