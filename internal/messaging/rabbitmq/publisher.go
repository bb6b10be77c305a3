package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	// DefaultExchange — topic exchange для событий заказов.
	DefaultExchange = "shop.orders"
	// RoutingKeyOrderCreated — routing key события order.created.
	RoutingKeyOrderCreated = domain.EventTypeOrderCreated

	defaultDialAttempts = 5
)

// Channel — подмножество *amqp.Channel, которое нужно публикатору.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Config описывает подключение к RabbitMQ.
type Config struct {
	URL      string
	Exchange string
	// DialAttempts — число попыток подключения при старте.
	DialAttempts int
}

// Publisher публикует доменные события в topic exchange.
type Publisher struct {
	channel  Channel
	conn     io.Closer
	exchange string
	logger   *log.Entry
}

// Dial подключается к брокеру с повторами и объявляет exchange.
func Dial(ctx context.Context, cfg Config, logger *log.Entry) (*Publisher, error) {
	if logger == nil {
		logger = log.WithField("component", "rabbitmq-publisher")
	}
	attempts := cfg.DialAttempts
	if attempts <= 0 {
		attempts = defaultDialAttempts
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			break
		}
		wait := time.Duration(i*i)*time.Second + time.Second
		logger.WithError(err).WithField("retry_in", wait).Warn("failed to connect to rabbitmq")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", attempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	p, err := NewPublisher(ch, cfg.Exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher объявляет durable topic exchange на переданном канале.
func NewPublisher(ch Channel, exchange string, logger *log.Entry) (*Publisher, error) {
	if logger == nil {
		logger = log.WithField("component", "rabbitmq-publisher")
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger.WithField("exchange", exchange),
	}, nil
}

// PublishOrderCreated реализует domain.EventPublisher.
func (p *Publisher) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	event := domain.NewOrderCreatedEvent(order)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, RoutingKeyOrderCreated,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
			Type:         event.EventType,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", RoutingKeyOrderCreated, p.exchange, err)
	}

	p.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"routing_key": RoutingKeyOrderCreated,
	}).Debug("event published")
	return nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	var errs []error
	if err := p.channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

var _ domain.EventPublisher = (*Publisher)(nil)
