// Package kafka publishes outbound events: one-time-code email dispatch for
// the mail worker, and an audit trail of registration lifecycle actions.
//
// Publishing is advisory for this core: a registration or code issue must not
// fail because the broker is down, so callers log publish errors and proceed.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Topics produced by this service.
const (
	TopicEmails = "gatepass.emails"
	TopicAudit  = "gatepass.audit"
)

// EmailMessage asks the mail worker to deliver a one-time code.
// The true address appears here and nowhere in any client-facing response.
type EmailMessage struct {
	To        string    `json:"to"`
	EventID   string    `json:"event_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuditEvent records a registration lifecycle action for operator forensics.
type AuditEvent struct {
	Action         string    `json:"action"`
	EventID        string    `json:"event_id,omitempty"`
	RegistrationID string    `json:"registration_id,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	OS             string    `json:"os,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher wraps a franz-go client.
type Publisher struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewPublisher connects to the brokers and ensures the produced topics exist.
// Returns nil if brokers is empty (publishing not configured).
func NewPublisher(brokers []string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureTopics(ctx, client, TopicEmails, TopicAudit); err != nil {
		client.Close()
		return nil, err
	}

	return &Publisher{client: client, logger: logger}, nil
}

func ensureTopics(ctx context.Context, client *kgo.Client, topics ...string) error {
	admin := kadm.NewClient(client)
	resps, err := admin.CreateTopics(ctx, 1, 1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// PublishEmail enqueues a code delivery message keyed by recipient so retries
// for one address stay ordered.
func (p *Publisher) PublishEmail(ctx context.Context, msg EmailMessage) error {
	return p.produce(ctx, TopicEmails, msg.To, msg)
}

// PublishAudit enqueues an audit event keyed by event id.
func (p *Publisher) PublishAudit(ctx context.Context, ev AuditEvent) error {
	return p.produce(ctx, TopicAudit, ev.EventID, ev)
}

func (p *Publisher) produce(ctx context.Context, topic, key string, payload any) error {
	if p == nil {
		return nil
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	record := &kgo.Record{Topic: topic, Key: []byte(key), Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil && p.logger != nil {
		p.logger.Warn("kafka flush on close failed", "error", err)
	}
	p.client.Close()
}
