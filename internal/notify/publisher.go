// Package notify publishes run events to an AMQP exchange.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/log"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange   = "mnyxls"
	DefaultRoutingKey = "run.completed"

	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type Publisher struct {
	conn       *amqp091.Connection
	channel    channel
	exchange   string
	routingKey string
	logger     *log.Logger
}

// Dial connects to the broker and declares the exchange. Connection errors
// are retried with exponential backoff up to attempts times.
func Dial(ctx context.Context, cfg config.AMQPConfig, attempts int, logger *log.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("missing AMQP URL")
	}
	var conn *amqp091.Connection
	var err error
	for attempt := 0; attempt < max(attempts, 1); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}
		conn, err = amqp091.Dial(cfg.URL)
		if err == nil || !isConnectionError(err) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := newPublisher(ch, cfg, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, cfg config.AMQPConfig, logger *log.Logger) (*Publisher, error) {
	if logger == nil {
		logger = log.Discard()
	}
	p := &Publisher{
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.WithComponent(log.ComponentNotify),
	}
	if p.exchange == "" {
		p.exchange = DefaultExchange
	}
	if p.routingKey == "" {
		p.routingKey = DefaultRoutingKey
	}
	err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return p, nil
}

// PublishRunCompleted publishes the summary of a finished run.
func (p *Publisher) PublishRunCompleted(ctx context.Context, summary core.RunSummary) error {
	msg := NewRunCompletedMessage(summary)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.RunID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	log.FromContext(ctx, p.logger).InfoContext(ctx, "Published run completed message",
		log.FieldOperation, log.OpPublish,
		log.FieldRunID, msg.RunID,
		"exchange", p.exchange,
		"routing_key", p.routingKey)
	return nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// exponentialBackoff doubles from one second, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "closed network connection", "connection reset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
