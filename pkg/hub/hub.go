// Package hub implements the process-wide event hub (§4.4): independent
// topics, each with many long-lived subscribers, a bounded per-subscriber
// queue, and a ring-buffer replay of the last K events on subscribe.
// Publishing never blocks for slow subscribers; when a subscriber's queue
// overflows, the oldest buffered events are dropped and a drop-count marker
// is delivered with the subscriber's next read.
package hub

import (
	"container/ring"
	"context"
	"sync"
	"sync/atomic"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Envelope is one item delivered to a subscriber. Dropped is nonzero when
// this delivery is preceded by N silently-dropped events.
type Envelope struct {
	Topic   string
	Data    any
	Dropped int
}

// TopicConfig fixes one topic's buffer size and replay depth, set once at
// Hub construction via an Opt (teacher's functional-options idiom).
type TopicConfig struct {
	BufferSize int
	ReplayN    int
}

// Opt configures a Hub at construction time.
type Opt func(*Hub)

// WithTopic registers (or overrides) a topic's buffer size and replay
// depth. Unregistered topics fall back to DefaultTopicConfig.
func WithTopic(name string, cfg TopicConfig) Opt {
	return func(h *Hub) {
		h.configs[name] = cfg
	}
}

// DefaultTopicConfig is used for any topic not explicitly configured.
var DefaultTopicConfig = TopicConfig{BufferSize: 256, ReplayN: 3}

// Hub is the process-wide pub/sub bus. It and the client manager are the
// only process-wide singletons (§9).
type Hub struct {
	mu      sync.Mutex
	topics  map[string]*topic
	configs map[string]TopicConfig
}

type topic struct {
	cfg   TopicConfig
	ring  *ring.Ring
	ringN int
	subs  map[uint64]*Subscription
}

// Subscription is a live subscriber handle. Call Next to read, Close when
// done; Close is idempotent.
type Subscription struct {
	id    uint64
	topic string
	hub   *Hub

	ch      chan Envelope
	mu      sync.Mutex
	dropped int
	closed  bool
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New constructs a Hub with the given per-topic overrides.
func New(opts ...Opt) *Hub {
	h := &Hub{
		topics:  make(map[string]*topic),
		configs: make(map[string]TopicConfig),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

var nextSubID atomic.Uint64

// Subscribe registers a new subscriber on topic, replaying the last
// ReplayN buffered events before live events arrive.
func (h *Hub) Subscribe(topicName string) *Subscription {
	h.mu.Lock()
	t, ok := h.topics[topicName]
	if !ok {
		cfg, hasCfg := h.configs[topicName]
		if !hasCfg {
			cfg = DefaultTopicConfig
		}
		t = &topic{cfg: cfg, subs: make(map[uint64]*Subscription)}
		if cfg.ReplayN > 0 {
			t.ring = ring.New(cfg.ReplayN)
		}
		h.topics[topicName] = t
	}

	sub := &Subscription{
		id:    nextSubID.Add(1),
		topic: topicName,
		hub:   h,
		ch:    make(chan Envelope, t.cfg.BufferSize),
	}
	t.subs[sub.id] = sub

	// Replay buffered events before returning, oldest first. t.ring always
	// points at the slot due to be overwritten next, which is also the
	// oldest live entry once the buffer has wrapped at least once.
	if t.ring != nil && t.ringN > 0 {
		cur := t.ring
		for i := 0; i < t.ring.Len(); i++ {
			if cur.Value != nil {
				sub.ch <- Envelope{Topic: topicName, Data: cur.Value}
			}
			cur = cur.Next()
		}
	}
	h.mu.Unlock()

	return sub
}

// Publish writes an event to topic's ring buffer and every subscriber's
// queue. It never blocks: a full subscriber queue drops its oldest buffered
// event and records a drop marker delivered with the subscriber's next read.
func (h *Hub) Publish(topicName string, data any) {
	h.mu.Lock()
	t, ok := h.topics[topicName]
	if !ok {
		cfg, hasCfg := h.configs[topicName]
		if !hasCfg {
			cfg = DefaultTopicConfig
		}
		t = &topic{cfg: cfg, subs: make(map[uint64]*Subscription)}
		if cfg.ReplayN > 0 {
			t.ring = ring.New(cfg.ReplayN)
		}
		h.topics[topicName] = t
	}
	if t.ring != nil {
		t.ring.Value = data
		t.ring = t.ring.Next()
		if t.ringN < t.cfg.ReplayN {
			t.ringN++
		}
	}
	subs := make([]*Subscription, 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.deliver(Envelope{Topic: topicName, Data: data})
	}
}

// Next blocks until an event arrives, the context is cancelled, or the
// subscription is closed.
func (s *Subscription) Next(ctx context.Context) (Envelope, bool) {
	select {
	case env, ok := <-s.ch:
		return env, ok
	case <-ctx.Done():
		return Envelope{}, false
	}
}

// Close unsubscribes; the queue is garbage-collected (§4.4).
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.mu.Lock()
	if t, ok := s.hub.topics[s.topic]; ok {
		delete(t.subs, s.id)
	}
	s.hub.mu.Unlock()
	close(s.ch)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// deliver is the non-blocking, drop-oldest-first publish to one subscriber.
func (s *Subscription) deliver(env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.dropped > 0 {
		env.Dropped = s.dropped
	}

	select {
	case s.ch <- env:
		s.dropped = 0
		return
	default:
	}

	// Queue full: drop the oldest buffered event, then retry once.
	select {
	case <-s.ch:
		s.dropped++
	default:
	}

	env.Dropped = s.dropped
	select {
	case s.ch <- env:
		s.dropped = 0
	default:
		// Still full (another producer raced us); leave the drop count
		// pending for the next successful delivery.
	}
}
