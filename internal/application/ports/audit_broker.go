package ports

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
)

// AuditPublisher is an AuditSink backed by a broker. Events queue up until
// PublisherWorker drains them.
type AuditPublisher interface {
	AuditSink
	Connect(ctx context.Context, dsn string) error
	Init() error
	PublisherWorker(ctx context.Context)
	GetConn() *amqp091.Connection
}

// AuditConsumer reads audit events back off the queue until ctx is done.
type AuditConsumer interface {
	Connect(dsn string) error
	Init() error
	DeliveryWorker(ctx context.Context)
}
