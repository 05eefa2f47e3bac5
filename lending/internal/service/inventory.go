package service

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/lending/internal/errs"
	"github.com/Astemirdum/lending-service/lending/internal/model"
	"github.com/Astemirdum/lending-service/lending/internal/repository"
)

// reserveCopy takes one copy of the book out of circulation.
// It must run in the transaction that creates the borrow row.
func (s *Service) reserveCopy(ctx context.Context, tx repository.Tx, bookID int64) (model.Book, error) {
	book, err := tx.LockBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	if book.AvailableCopies <= 0 {
		return model.Book{}, errs.ErrOutOfStock
	}
	book.AvailableCopies--
	if err := tx.SaveBookCopies(ctx, book); err != nil {
		return model.Book{}, errors.Wrap(err, "reserve copy")
	}
	return book, nil
}

// releaseCopy puts one copy back, never above total_copies.
func (s *Service) releaseCopy(ctx context.Context, tx repository.Tx, bookID int64) (model.Book, error) {
	book, err := tx.LockBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	if book.AvailableCopies >= book.TotalCopies {
		s.log.Warn("release over total copies, clamped",
			zap.Int64("bookID", book.ID),
			zap.Int("available", book.AvailableCopies),
			zap.Int("total", book.TotalCopies))
		book.AvailableCopies = book.TotalCopies
	} else {
		book.AvailableCopies++
	}
	if err := tx.SaveBookCopies(ctx, book); err != nil {
		return model.Book{}, errors.Wrap(err, "release copy")
	}
	return book, nil
}

func (s *Service) adjustCopies(ctx context.Context, tx repository.Tx, bookID int64, delta int) (model.Book, error) {
	book, err := tx.LockBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	book.TotalCopies += delta
	book.AvailableCopies += delta
	if err := book.CheckCopies(); err != nil {
		return model.Book{}, errors.Wrapf(err, "adjust copies by %d", delta)
	}
	if err := tx.SaveBookCopies(ctx, book); err != nil {
		return model.Book{}, errors.Wrap(err, "adjust copies")
	}
	return book, nil
}

// AdjustCopies applies a catalog acquisition (delta > 0) or write-off (delta < 0).
// Copies that are currently lent out cannot be written off.
func (s *Service) AdjustCopies(ctx context.Context, bookID int64, delta int) (model.Book, error) {
	ctx, span := s.tracer.Start(ctx, "Service.AdjustCopies", trace.WithAttributes(
		attribute.Int64("book.id", bookID),
		attribute.Int("delta", delta),
	))
	defer span.End()

	if delta == 0 {
		return s.repo.GetBook(ctx, bookID)
	}

	var book model.Book
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		book, err = s.adjustCopies(ctx, tx, bookID, delta)
		return err
	})
	if err != nil {
		failSpan(span, err)
		return model.Book{}, err
	}
	s.log.Info("copies adjusted",
		zap.Int64("bookID", bookID),
		zap.Int("delta", delta),
		zap.Int("available", book.AvailableCopies),
		zap.Int("total", book.TotalCopies))
	return book, nil
}
