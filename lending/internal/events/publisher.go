package events

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/pkg/circuit_breaker"
	"github.com/Astemirdum/lending-service/pkg/kafka"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher writes lending events to kafka, keyed by book so that events of one
// title stay ordered within a partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	cb       circuit_breaker.CircuitBreaker
	log      *zap.Logger
}

func NewPublisher(producer sarama.SyncProducer, topic string, log *zap.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		cb:       circuit_breaker.New(100, 10*time.Second, 0.2, 2),
		log:      log.Named("publisher"),
	}
}

func (p *Publisher) Publish(ctx context.Context, ev kafka.EventLending) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(ev.BookID, 10)),
		Value: sarama.ByteEncoder(data),
	}

	var (
		partition int32
		offset    int64
	)
	err = p.cb.Call(func() error {
		var err error
		partition, offset, err = p.producer.SendMessage(msg)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "send %s event", ev.EventType)
	}
	p.log.Debug("event published",
		zap.String("eventID", ev.EventID),
		zap.String("type", string(ev.EventType)),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}
