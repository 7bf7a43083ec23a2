package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject prefix audit records are published on.
const DefaultSubject = "renewaldesk.audit"

// NATSPublisher publishes records as JSON on <subject>.<status>.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Connect dials url with reconnect handling suited to a long-running
// server.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return conn, nil
}

// Put publishes rec.
func (p *NATSPublisher) Put(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}
	status := rec.Status
	if status == "" {
		status = StatusSuccess
	}
	if err := p.conn.Publish(p.subject+"."+status, data); err != nil {
		return fmt.Errorf("publishing audit record: %w", err)
	}
	return nil
}
