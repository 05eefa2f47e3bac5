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

// Borrow checks a copy of bookID out to userID. Every failure leaves the store untouched.
func (s *Service) Borrow(ctx context.Context, userID, bookID int64) (model.BorrowView, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Borrow", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("book.id", bookID),
	))
	defer span.End()

	view, err := s.borrow(ctx, userID, bookID)
	if err != nil {
		failSpan(span, err)
		return model.BorrowView{}, err
	}
	return view, nil
}

func (s *Service) borrow(ctx context.Context, userID, bookID int64) (model.BorrowView, error) {
	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return model.BorrowView{}, err
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return model.BorrowView{}, err
	}

	active, err := s.repo.CountActiveBorrows(ctx, userID)
	if err != nil {
		return model.BorrowView{}, errors.Wrap(err, "count active borrows")
	}
	if active >= s.borrowLimit {
		return model.BorrowView{}, errors.Wrapf(errs.ErrLimitExceeded, "limit %d", s.borrowLimit)
	}

	now := s.clock()
	var created model.Borrow
	err = s.repo.WithTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockBook(ctx, bookID)
		if err != nil {
			return err
		}
		if locked.AvailableCopies <= 0 {
			return errs.ErrOutOfStock
		}

		if s.strictLimit {
			if _, err := tx.LockUser(ctx, userID); err != nil {
				return err
			}
			active, err := tx.CountActiveBorrows(ctx, userID)
			if err != nil {
				return errors.Wrap(err, "recount active borrows")
			}
			if active >= s.borrowLimit {
				return errors.Wrapf(errs.ErrLimitExceeded, "limit %d", s.borrowLimit)
			}
		}

		created, err = tx.CreateBorrow(ctx, model.Borrow{
			UserID:     userID,
			BookID:     bookID,
			BorrowDate: now,
			DueDate:    overdue.DueDate(now, s.loanPeriod),
		})
		if err != nil {
			return errors.Wrap(err, "create borrow")
		}

		_, err = s.reserveCopy(ctx, tx, bookID)
		return err
	})
	if err != nil {
		return model.BorrowView{}, err
	}

	s.log.Info("book borrowed",
		zap.Int64("borrowID", created.ID),
		zap.Int64("userID", userID),
		zap.Int64("bookID", bookID),
		zap.Time("dueDate", created.DueDate))

	s.publish(ctx, kafka.EventLending{
		EventID:   uuid.NewString(),
		EventType: kafka.EventBorrowed,
		Timestamp: now,
		BorrowID:  created.ID,
		UserID:    userID,
		BookID:    bookID,
		DueDate:   created.DueDate,
	})

	return borrowView(model.BorrowDetails{
		Borrow:     created,
		Username:   user.Username,
		BookTitle:  book.Title,
		AuthorName: book.Author,
	}, now), nil
}
