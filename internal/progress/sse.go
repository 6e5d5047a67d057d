package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/pkginstall/internal/logging"
)

// TopicConfig configures replay buffering for a topic.
type TopicConfig struct {
	BufferSize int  // number of events to retain for replay (0 = none)
	ReplayAll  bool // replay every buffered event, or just the most recent
}

// SSEPublisher is a Publisher backed by in-process channels, suitable for
// feeding a Server-Sent-Events HTTP endpoint.
type SSEPublisher struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*sseSubscription]bool
	version       map[string]int
	eventBuffer   map[string][]Event
	topicConfig   map[string]TopicConfig
	closed        bool
}

// NewSSEPublisher creates an empty SSE-backed publisher.
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{
		subscriptions: make(map[string]map[*sseSubscription]bool),
		version:       make(map[string]int),
		eventBuffer:   make(map[string][]Event),
		topicConfig:   make(map[string]TopicConfig),
	}
}

// ConfigureTopic sets the replay behavior for a topic.
func (p *SSEPublisher) ConfigureTopic(topic string, cfg TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topicConfig[topic] = cfg
}

// Subscribe creates a subscription to topic, replaying buffered events
// per the topic's configuration. The subscription closes itself when ctx
// is done.
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("progress: publisher is closed")
	}

	sub := &sseSubscription{
		topic:     topic,
		events:    make(chan Event, 100),
		publisher: p,
	}

	if p.subscriptions[topic] == nil {
		p.subscriptions[topic] = make(map[*sseSubscription]bool)
	}
	p.subscriptions[topic][sub] = true

	cfg := p.topicConfig[topic]
	buffered := make([]Event, len(p.eventBuffer[topic]))
	copy(buffered, p.eventBuffer[topic])
	p.mu.Unlock()

	if len(buffered) > 0 {
		toReplay := buffered
		if !cfg.ReplayAll {
			toReplay = buffered[len(buffered)-1:]
		}
		for _, ev := range toReplay {
			select {
			case sub.events <- ev:
			default:
				logging.Warn("could not replay buffered event", "topic", topic)
			}
		}
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish sends an event to every current subscriber of topic. It never
// blocks: a subscriber with a full channel simply misses the event.
func (p *SSEPublisher) Publish(topic string, eventType string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("progress: publisher is closed")
	}

	p.version[topic]++
	version := p.version[topic]

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("progress: marshal event data: %w", err)
	}

	event := Event{Topic: topic, Type: eventType, Data: payload, Version: version}

	if cfg := p.topicConfig[topic]; cfg.BufferSize > 0 {
		buf := append(p.eventBuffer[topic], event)
		if len(buf) > cfg.BufferSize {
			buf = buf[len(buf)-cfg.BufferSize:]
		}
		p.eventBuffer[topic] = buf
	}

	for sub := range p.subscriptions[topic] {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscription channel full, dropping event", "topic", topic)
		}
	}

	return nil
}

// Close shuts down the publisher and every live subscription.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, subs := range p.subscriptions {
		for sub := range subs {
			close(sub.events)
		}
	}
	p.subscriptions = make(map[string]map[*sseSubscription]bool)

	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if subs := p.subscriptions[sub.topic]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(p.subscriptions, sub.topic)
		}
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	closed    bool
	mu        sync.Mutex
}

func (s *sseSubscription) Topic() string { return s.topic }

func (s *sseSubscription) Events() <-chan Event { return s.events }

func (s *sseSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.publisher.unsubscribe(s)
	return nil
}

// WriteSSE writes event to w in "data: <json>\n\n" SSE framing.
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("progress: marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
