package handler

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/lending/internal/errs"
	"github.com/Astemirdum/lending-service/lending/internal/model"
	"github.com/Astemirdum/lending-service/pkg/kafka"
)

type adjustCopies func(ctx context.Context, bookID int64, delta int) (model.Book, error)

const (
	defaultRetryBase = 100 * time.Millisecond
	defaultRetryCap  = 5 * time.Second
)

// Consumer applies catalog copy adjustments in partition order. An adjustment
// whose book row is busy is retried in place, so no later offset is marked
// before it is applied.
type Consumer struct {
	adjustCopiesHandler adjustCopies
	log                 *zap.Logger
	ready               chan bool

	retryBase time.Duration
	retryCap  time.Duration
}

type ConsumerOption func(c *Consumer)

// WithRetryBackoff sets the exponential backoff used while a book row is busy.
func WithRetryBackoff(base, maxDelay time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if base > 0 {
			c.retryBase = base
		}
		if maxDelay > 0 {
			c.retryCap = maxDelay
		}
	}
}

func NewConsumer(adjust adjustCopies, log *zap.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		adjustCopiesHandler: adjust,
		log:                 log.Named("consumer"),
		ready:               make(chan bool),
		retryBase:           defaultRetryBase,
		retryCap:            defaultRetryCap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready is closed once the first session is set up.
func (consumer *Consumer) Ready() <-chan bool {
	return consumer.ready
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	select {
	case <-consumer.ready:
	default:
		close(consumer.ready)
	}
	return nil
}

func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			var req kafka.CopiesAdjustment
			if err := jsoniter.Unmarshal(message.Value, &req); err != nil || req.BookID <= 0 {
				consumer.log.Error("bad copies adjustment",
					zap.ByteString("value", message.Value), zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}

			book, err := consumer.adjust(session.Context(), req)
			if err != nil {
				if session.Context().Err() != nil {
					// unmarked: the next session resumes from this offset
					return nil
				}
				consumer.log.Error("consumer.adjustCopiesHandler",
					zap.Int64("bookID", req.BookID), zap.Int("delta", req.Delta), zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}

			consumer.log.Debug("Message claimed:",
				zap.Int64("bookID", book.ID),
				zap.Int("total", book.TotalCopies),
				zap.Int("available", book.AvailableCopies),
				zap.Time("timestamp", message.Timestamp),
				zap.String("topic", message.Topic))
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// adjust retries while the book row is busy; any other error is returned as is.
func (consumer *Consumer) adjust(ctx context.Context, req kafka.CopiesAdjustment) (model.Book, error) {
	backoff := retry.WithCappedDuration(consumer.retryCap, retry.NewExponential(consumer.retryBase))

	var book model.Book
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		book, err = consumer.adjustCopiesHandler(ctx, req.BookID, req.Delta)
		if errors.Is(err, errs.ErrBusy) {
			consumer.log.Warn("book row busy, retrying",
				zap.Int64("bookID", req.BookID), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	return book, err
}
