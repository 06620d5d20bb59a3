package bus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// TopicHandler receives the body of every MESSAGE frame delivered on a topic.
type TopicHandler func(body []byte)

// Subscription pairs a topic with its live subscription id on the bus. The
// registry is the only component that creates or cancels these.
type Subscription struct {
	Topic   string
	ID      string
	Handler TopicHandler
}

// Registry enforces the at-most-one-subscription-per-topic invariant.
// Subscribing twice to the same topic is a silent no-op: idempotent re-entry
// from multiple call sites (initial room load plus a live lobby push) is
// expected and must not duplicate delivery.
type Registry struct {
	byTopic map[string]*Subscription
	byID    map[string]*Subscription
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		byTopic: make(map[string]*Subscription),
		byID:    make(map[string]*Subscription),
		logger:  logger.With(slog.String("component", "subscription_registry")),
	}
}

// Add registers a subscription for topic. It reports false, with the
// existing subscription, when the topic is already subscribed.
func (r *Registry) Add(topic string, handler TopicHandler) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, exists := r.byTopic[topic]; exists {
		return sub, false
	}
	sub := &Subscription{
		Topic:   topic,
		ID:      uuid.NewString(),
		Handler: handler,
	}
	r.byTopic[topic] = sub
	r.byID[sub.ID] = sub
	r.logger.Debug("Subscription added", "topic", topic, "subID", sub.ID)
	return sub, true
}

// FindByID resolves the handler for an inbound MESSAGE frame via its
// subscription header.
func (r *Registry) FindByID(subID string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byID[subID]
	return sub, ok
}

// FindByTopic resolves a subscription by destination, the fallback when a
// frame carries no subscription header.
func (r *Registry) FindByTopic(topic string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byTopic[topic]
	return sub, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTopic)
}

// Clear drops every subscription and returns the removed set so the caller
// can send the matching UNSUBSCRIBE frames. Safe on an empty registry.
func (r *Registry) Clear() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]*Subscription, 0, len(r.byTopic))
	for _, sub := range r.byTopic {
		removed = append(removed, sub)
	}
	r.byTopic = make(map[string]*Subscription)
	r.byID = make(map[string]*Subscription)
	if len(removed) > 0 {
		r.logger.Debug("Registry cleared", "count", len(removed))
	}
	return removed
}
