// Package broker implements the in-memory topic router that fans
// published events out to subscribed sessions.
package broker

import (
	"sync"

	"github.com/KhaoticNeutral/Garden-Chat-FullStack/pkg/logger"
)

// Subscriber is the delivery end of a subscription. Send must not block:
// implementations queue the payload or reject it with an error.
type Subscriber interface {
	Send(payload []byte) error
}

// Router maintains the many-to-many relation between subscribers and
// topics. Topics exist implicitly: they are created on first subscribe
// and removed when the last subscriber leaves, so abandoned groups do
// not accumulate state.
//
// The forward index (topic -> subscribers) drives fan-out; the reverse
// index (subscriber -> topics) makes UnsubscribeAll O(own topics).
type Router struct {
	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{}
	subs   map[Subscriber]map[string]struct{}
}

func NewRouter() *Router {
	return &Router{
		topics: make(map[string]map[Subscriber]struct{}),
		subs:   make(map[Subscriber]map[string]struct{}),
	}
}

// Subscribe registers sub as a subscriber of topic. Subscribing twice is
// the same as subscribing once.
func (r *Router) Subscribe(sub Subscriber, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.topics[topic] == nil {
		r.topics[topic] = make(map[Subscriber]struct{})
	}
	r.topics[topic][sub] = struct{}{}

	if r.subs[sub] == nil {
		r.subs[sub] = make(map[string]struct{})
	}
	r.subs[sub][topic] = struct{}{}
}

// Unsubscribe removes the registration. No-op if sub was not subscribed.
func (r *Router) Unsubscribe(sub Subscriber, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sub, topic)
}

// UnsubscribeAll removes every subscription held by sub. Safe to call
// for a subscriber holding none. Once it returns, no later Publish will
// deliver to sub: Publish holds the read lock for the whole fan-out, so
// an in-flight publish has finished enqueueing before the write lock
// here is granted.
func (r *Router) UnsubscribeAll(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for topic := range r.subs[sub] {
		r.removeLocked(sub, topic)
	}
}

func (r *Router) removeLocked(sub Subscriber, topic string) {
	if members, ok := r.topics[topic]; ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(r.topics, topic)
		}
	}
	if topics, ok := r.subs[sub]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(r.subs, sub)
		}
	}
}

// Publish delivers payload to every current subscriber of topic.
// Delivery order across subscribers is unspecified. A subscriber whose
// Send fails is logged and skipped; the failure never aborts delivery
// to the others. Send implementations are non-blocking, so holding the
// read lock across the loop does not stall other router operations on
// a slow peer.
func (r *Router) Publish(topic string, payload []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for sub := range r.topics[topic] {
		if err := sub.Send(payload); err != nil {
			logger.Error("Dropping delivery on topic %q: %v", topic, err)
		}
	}
}

// SubscriberCount reports how many subscribers topic currently has.
func (r *Router) SubscriberCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// TopicCount reports how many topics currently have subscribers.
func (r *Router) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}
