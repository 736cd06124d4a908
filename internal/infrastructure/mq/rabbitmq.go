package mq

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"attachment-api/config"
	"attachment-api/internal/application/ports"
	"attachment-api/internal/infrastructure/metrics"
)

const bufferSize = 128

type RabbitMQ struct {
	cfg     config.MQ
	log     *zap.Logger
	counter *prometheus.CounterVec
	conn    *amqp091.Connection
	pubCh   *amqp091.Channel
	in      chan Event
}

func New(cfg config.MQ, logger *zap.Logger, counter *prometheus.CounterVec) ports.AuditPublisher {
	return newRabbitMQ(cfg, logger, counter, bufferSize)
}

func newRabbitMQ(cfg config.MQ, logger *zap.Logger, counter *prometheus.CounterVec, size int) *RabbitMQ {
	return &RabbitMQ{
		cfg:     cfg,
		log:     logger,
		counter: counter,
		in:      make(chan Event, size),
	}
}

func (r *RabbitMQ) Connect(ctx context.Context, dsn string) error {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	amqpCfg := amqp091.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Properties: amqp091.Table{
			"connection_name": "attachmentapi",
		},
		Dial: func(network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}

	var err error
	r.conn, err = amqp091.DialConfig(dsn, amqpCfg)
	if err != nil {
		return err
	}
	r.pubCh, err = r.conn.Channel()
	if err != nil {
		_ = r.conn.Close()
		return err
	}

	r.log.Info("rabbitmq connected successfully")

	return nil
}

func (r *RabbitMQ) Init() error {
	if err := r.pubCh.ExchangeDeclare(
		r.cfg.Exchange,
		r.cfg.ExchangeType,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = r.pubCh.Close()
		return err
	}
	q, err := r.pubCh.QueueDeclare(
		r.cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	return r.pubCh.QueueBind(q.Name, ActionAttachmentCompleted, r.cfg.Exchange, false, nil)
}

// AttachmentCompleted never blocks the caller. With the buffer full the
// event is dropped and counted.
func (r *RabbitMQ) AttachmentCompleted(_ context.Context, attachmentID uuid.UUID) {
	e := newEvent(ActionAttachmentCompleted, attachmentID, time.Now())

	select {
	case r.in <- e:
	default:
		r.counter.WithLabelValues(metrics.AuditDropped).Inc()
		r.log.Warn("audit buffer full, event dropped",
			zap.Stringer("attachment_id", attachmentID),
			zap.Stringer("event_id", e.Id),
		)
	}
}

func (r *RabbitMQ) PublisherWorker(ctx context.Context) {
	r.log.Info("starting publisher worker")

	defer func() {
		r.log.Info("publisher worker gracefully stopped")
	}()

	for {
		select {
		case e := <-r.in:
			if err := r.publish(ctx, e); err != nil {
				r.counter.WithLabelValues(metrics.AuditPublishFail).Inc()
				r.log.Error("mq publish error", zap.Error(err), zap.Stringer("event_id", e.Id))
				continue
			}
			r.counter.WithLabelValues(metrics.AuditPublished).Inc()
		case <-ctx.Done():
			if r.pubCh != nil {
				_ = r.pubCh.Close()
			}
			return
		}
	}
}

func (r *RabbitMQ) publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	pub := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.Id.String(),
		Timestamp:    e.TS,
		Type:         e.Action,
		Body:         b,
	}
	return r.pubCh.PublishWithContext(
		ctx,
		r.cfg.Exchange,
		e.Action,
		true,
		false,
		pub,
	)
}

func (r *RabbitMQ) GetConn() *amqp091.Connection { return r.conn }
