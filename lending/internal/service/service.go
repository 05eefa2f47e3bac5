package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/lending/internal/model"
	"github.com/Astemirdum/lending-service/lending/internal/overdue"
	"github.com/Astemirdum/lending-service/lending/internal/repository"
	"github.com/Astemirdum/lending-service/pkg/kafka"
)

const (
	DefaultBorrowLimit = 3

	tracerName = "lending/service"

	returnedMessage = "Book returned successfully"
)

// EventPublisher receives an event for every committed borrow or return.
type EventPublisher interface {
	Publish(ctx context.Context, ev kafka.EventLending) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, kafka.EventLending) error { return nil }

type Service struct {
	log    *zap.Logger
	repo   repository.Repository
	events EventPublisher
	tracer trace.Tracer
	now    func() time.Time

	borrowLimit int
	loanPeriod  time.Duration
	strictLimit bool
}

type Option func(s *Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithBorrowLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.borrowLimit = limit
		}
	}
}

func WithLoanPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.loanPeriod = d
		}
	}
}

// WithStrictBorrowLimit makes Borrow recount active borrows under the user row lock.
func WithStrictBorrowLimit(strict bool) Option {
	return func(s *Service) {
		s.strictLimit = strict
	}
}

// WithTracerProvider overrides the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

func NewService(repo repository.Repository, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:         log.Named("service"),
		repo:        repo,
		events:      noopPublisher{},
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
		borrowLimit: DefaultBorrowLimit,
		loanPeriod:  overdue.DefaultLoanPeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) publish(ctx context.Context, ev kafka.EventLending) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish lending event",
			zap.String("type", string(ev.EventType)),
			zap.Int64("borrowID", ev.BorrowID),
			zap.Error(err))
	}
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func borrowView(d model.BorrowDetails, now time.Time) model.BorrowView {
	return model.BorrowView{
		ID:           d.ID,
		User:         d.UserID,
		UserUsername: d.Username,
		Book:         d.BookID,
		BookTitle:    d.BookTitle,
		AuthorName:   d.AuthorName,
		BorrowDate:   d.BorrowDate,
		DueDate:      d.DueDate,
		ReturnDate:   d.ReturnDate,
		IsOverdue:    overdue.IsOverdue(d.Borrow, now),
		DaysOverdue:  overdue.DaysOverdue(d.Borrow, now),
	}
}
