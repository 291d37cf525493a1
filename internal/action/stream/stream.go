// Package stream publishes compact event records to a Redis stream for
// downstream consumers.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gyaneshwarpardhi/credscout/internal/action"
	"github.com/gyaneshwarpardhi/credscout/internal/event"
)

const (
	DefaultTopic   = "credibility-events"
	connectTimeout = 5 * time.Second
)

// ErrBrokerUnavailable is returned for every publish after the first failed
// connection, until Reset or Reconfigure. A connect aborted by the caller's
// context is not treated as a broker failure.
var ErrBrokerUnavailable = errors.New("event stream broker unavailable")

// Appender is the subset of a stream client the publisher needs.
type Appender interface {
	Append(ctx context.Context, stream string, values map[string]any) error
	Close() error
}

// Connector opens an Appender for a broker address.
type Connector func(ctx context.Context, addr string) (Appender, error)

// Record is the payload published per event.
type Record struct {
	ID             string               `json:"id"`
	BusinessID     string               `json:"businessId"`
	EventType      string               `json:"eventType"`
	Severity       event.Severity       `json:"severity"`
	Classification event.Classification `json:"classification"`
	DetectedAt     time.Time            `json:"detectedAt"`
}

// Config configures the publisher. An empty Brokers disables it.
type Config struct {
	Brokers string
	Topic   string
}

// Publisher is the event-stream sink. The broker connection is opened on first
// use and kept until Reset, Reconfigure or Close. A failed connection is sticky:
// later publishes fail fast without reconnecting until Reset.
type Publisher struct {
	brokers string
	topic   string
	connect Connector

	mu      sync.Mutex
	client  Appender
	connErr error
}

// New creates a Publisher. A nil connect uses RedisConnector.
func New(cfg Config, connect Connector) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if connect == nil {
		connect = RedisConnector
	}
	return &Publisher{brokers: cfg.Brokers, topic: cfg.Topic, connect: connect}
}

func (p *Publisher) Type() string { return action.TypeEventStream }

func (p *Publisher) Execute(ctx context.Context, ev event.CredibilityEvent, a event.Analysis) (event.ActionDetails, error) {
	client, topic, err := p.conn(ctx)
	if err != nil {
		return event.ActionDetails{}, err
	}
	if client == nil {
		return event.ActionDetails{Status: event.ActionSkipped}, nil
	}

	rec := Record{
		ID:             ev.ID,
		BusinessID:     ev.BusinessID,
		EventType:      ev.EventType,
		Severity:       ev.Severity,
		Classification: a.Classification,
		DetectedAt:     ev.DetectedAt,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return event.ActionDetails{}, fmt.Errorf("marshal stream record: %w", err)
	}
	if err := client.Append(ctx, topic, map[string]any{"key": ev.ID, "value": string(value)}); err != nil {
		return event.ActionDetails{}, fmt.Errorf("publish to %s: %w", topic, err)
	}
	return event.ActionDetails{Status: event.ActionPublished, ID: ev.ID}, nil
}

// conn returns the live client and topic. A nil client with a nil error means
// the publisher is disabled.
func (p *Publisher) conn(parent context.Context) (Appender, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.brokers == "" {
		return nil, "", nil
	}
	if p.connErr != nil {
		return nil, "", p.connErr
	}
	if p.client != nil {
		return p.client, p.topic, nil
	}

	ctx, cancel := context.WithTimeout(parent, connectTimeout)
	defer cancel()
	client, err := p.connect(ctx, p.brokers)
	if err != nil {
		if parent.Err() != nil {
			return nil, "", fmt.Errorf("connect to event stream: %w", parent.Err())
		}
		p.connErr = fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
		slog.Warn("event stream connection failed, disabling until reset", "err", err)
		return nil, "", p.connErr
	}
	p.client = client
	return client, p.topic, nil
}

// Reconfigure points the publisher at new brokers or a new topic. The open
// connection is dropped and the sticky failure cleared so the next publish
// dials the new address. It reports whether anything changed.
func (p *Publisher) Reconfigure(cfg Config) bool {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.Brokers == p.brokers && cfg.Topic == p.topic {
		return false
	}
	p.brokers, p.topic = cfg.Brokers, cfg.Topic
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			slog.Warn("event stream close failed", "err", err)
		}
	}
	p.client = nil
	p.connErr = nil
	return true
}

// Reset closes any open connection and clears the sticky failure.
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			slog.Warn("event stream close failed", "err", err)
		}
	}
	p.client = nil
	p.connErr = nil
}

// Close releases the connection on shutdown.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

type redisAppender struct {
	client *redis.Client
}

func (r *redisAppender) Append(ctx context.Context, stream string, values map[string]any) error {
	return r.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err()
}

func (r *redisAppender) Close() error {
	return r.client.Close()
}

// RedisConnector connects to the first address in a comma-separated broker
// list. Bare host:port addresses are treated as redis:// URLs.
func RedisConnector(ctx context.Context, addr string) (Appender, error) {
	addr = strings.TrimSpace(strings.Split(addr, ",")[0])
	if !strings.Contains(addr, "://") {
		addr = "redis://" + addr
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping broker: %w", err)
	}
	return &redisAppender{client: client}, nil
}
