// Package notify fans budget notifications out to a NATS subject so other
// processes (mobile push, email digests) can react without polling the store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/core"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "financemate.notifications"

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Event is the message body published for each notification.
type Event struct {
	Type         string            `json:"type"`
	Notification core.Notification `json:"notification"`
	PublishedAt  time.Time         `json:"published_at"`
}

// Publisher writes notifications to NATS. Subjects are suffixed with the
// user id, e.g. financemate.notifications.u1.
type Publisher struct {
	conn    Conn
	subject string
	logger  *logging.Logger

	mu     sync.Mutex
	closed bool
}

// Connect dials url and returns a publisher bound to subject.
func Connect(url, subject string, logger *logging.Logger) (*Publisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	nc, err := nats.Connect(url,
		nats.Name("financemate"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil && logger != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return New(nc, subject, logger), nil
}

// New wraps an existing connection.
func New(conn Conn, subject string, logger *logging.Logger) *Publisher {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject, logger: logger}
}

// Subject returns the subject a notification for userID is published on.
func (p *Publisher) Subject(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return p.subject
	}
	// NATS tokens cannot contain dots or whitespace.
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '\t', '*', '>':
			return '_'
		}
		return r
	}, userID)
	return p.subject + "." + token
}

// Publish sends n as an Event. NATS publish is fire-and-forget, so only
// context cancellation before the write is honoured.
func (p *Publisher) Publish(ctx context.Context, n core.Notification) error {
	if p == nil || p.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("publisher closed")
	}

	data, err := json.Marshal(Event{Type: n.Kind, Notification: n, PublishedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	subject := p.Subject(n.UserID)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if p.logger != nil {
		p.logger.Debug("Notification published", zap.String("subject", subject), zap.String("id", n.ID))
	}
	return nil
}

// Close drains the connection. It is safe to call more than once.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.conn == nil {
		return nil
	}
	p.closed = true
	return p.conn.Drain()
}
