// Package progress publishes lifecycle events from the resolver and the
// installer (phase transitions, peer-dependency warnings, per-package
// script results) to anything listening — typically the status server,
// or nothing at all when no one subscribes.
package progress

import (
	"context"
	"encoding/json"
)

// Well-known topics.
const (
	TopicResolve = "resolve_progress"
	TopicInstall = "install_progress"
	TopicScript  = "script_progress"
)

// Event is a single published occurrence on a topic.
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"`
}

// Subscription is a live subscription to a topic's events.
type Subscription interface {
	Topic() string
	Events() <-chan Event
	Close() error
}

// Publisher publishes events and accepts subscriptions. Publish must
// never block the caller: a full subscriber channel drops the event
// rather than stalling the resolver or installer.
type Publisher interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Publish(topic string, eventType string, data interface{}) error
	Close() error
}
