// Package events announces submitted listings to downstream consumers
// (moderation, search indexing) over RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"staylist/internal/domain"
)

const (
	DefaultExchange   = "staylist.listings"
	RoutingSubmitted  = "listing.submitted"
	contentTypeJSON   = "application/json"
	publishRetryDelay = 250 * time.Millisecond
)

type Config struct {
	URL      string
	Exchange string
}

// Publisher keeps one connection and channel open and redials once when a
// publish finds them closed.
type Publisher struct {
	cfg  Config
	dial func(url string) (*amqp.Connection, error)

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ domain.EventPublisher = (*Publisher)(nil)

func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("events: amqp url is required")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	p := &Publisher{cfg: cfg, dial: amqp.Dial}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	conn, err := p.dial(p.cfg.URL)
	if err != nil {
		return fmt.Errorf("events: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("events: open channel: %w", err)
	}
	// durable topic exchange; consumers bind their own queues
	if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("events: declare exchange %s: %w", p.cfg.Exchange, err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) PublishListingSubmitted(ctx context.Context, ev domain.ListingSubmitted) error {
	msg, err := Message(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for attempt := 0; attempt < 2; attempt++ {
		if p.ch == nil || p.conn == nil || p.conn.IsClosed() {
			p.closeLocked()
			if err = p.connectLocked(); err != nil {
				break
			}
		}
		err = p.ch.PublishWithContext(ctx, p.cfg.Exchange, RoutingSubmitted, false, false, msg)
		if err == nil {
			log.Debug().Str("property", ev.PropertyID).Msg("listing event published")
			return nil
		}
		p.closeLocked()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(publishRetryDelay)
	}
	return fmt.Errorf("events: publish %s: %w", ev.PropertyID, err)
}

// Message builds the persistent AMQP message for a submitted listing.
func Message(ev domain.ListingSubmitted) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("events: marshal: %w", err)
	}
	return amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.PropertyID + ":" + ev.SubmittedAt,
		Type:         RoutingSubmitted,
		Body:         body,
	}, nil
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) PublishListingSubmitted(_ context.Context, ev domain.ListingSubmitted) error {
	log.Info().
		Str("property", ev.PropertyID).
		Str("owner", ev.OwnerID).
		Bool("created", ev.Created).
		Int("photos", ev.PhotoCount).
		Msg("listing submitted")
	return nil
}
