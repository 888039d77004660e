package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"payrouter/internal/config"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const subjectPrefix = "payrouter.notification."

// NATSNotifier publishes notifications as JSON messages on
// payrouter.notification.<category>.
type NATSNotifier struct {
	conn *nats.Conn
	log  *logrus.Entry
}

// NewNATSNotifier connects to the NATS server from the config.
func NewNATSNotifier(cfg config.NATSConfig) (*NATSNotifier, error) {
	timeout := 10 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := -1
	if cfg.MaxReconnects != 0 {
		maxReconnects = cfg.MaxReconnects
	}

	log := logrus.WithField("component", "nats_notifier")
	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(timeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSNotifier{conn: conn, log: log}, nil
}

func (n *NATSNotifier) Notify(event Notification) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s notification: %w", event.Category(), err)
	}
	subject := subjectPrefix + event.Category()
	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	n.log.WithField("subject", subject).Debug("notification published")
	return nil
}

func (n *NATSNotifier) Close() {
	n.conn.Drain()
}

// Recorder captures notifications in memory. Test double and safe default
// when NATS is not configured.
type Recorder struct {
	mu     sync.Mutex
	events []Notification
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(event Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.events))
	copy(out, r.events)
	return out
}

// ByCategory filters recorded notifications by category.
func (r *Recorder) ByCategory(category string) []Notification {
	var out []Notification
	for _, event := range r.Events() {
		if event.Category() == category {
			out = append(out, event)
		}
	}
	return out
}
