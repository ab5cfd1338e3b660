// Package feed fans out "conversation changed" signals to live subscribers.
package feed

import (
	"sync"
	"sync/atomic"

	"ripplechat/internal/metrics"
)

// Notifier is told about every committed append.
type Notifier interface {
	Notify(conversationID string)
}

// Subscriber receives a coalesced wake-up on C whenever its conversation
// changes. Several appends in a row may produce a single wake-up.
type Subscriber struct {
	conversationID string
	notify         chan struct{}
}

func (s *Subscriber) C() <-chan struct{} { return s.notify }

// Hub 管理会话级别的 Topic，按需创建，空闲时回收。
type Hub struct {
	mu     sync.Mutex
	topics map[string]*Topic
}

func NewHub() *Hub { return &Hub{topics: make(map[string]*Topic)} }

func (h *Hub) topic(conversationID string) *Topic {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.topics[conversationID]
	if t == nil {
		t = newTopic(conversationID)
		h.topics[conversationID] = t
		go t.run(h)
	}
	return t
}

// Subscribe registers a new subscriber for conversationID. The subscriber
// sees every Notify issued after Subscribe returns.
func (h *Hub) Subscribe(conversationID string) *Subscriber {
	s := &Subscriber{conversationID: conversationID, notify: make(chan struct{}, 1)}
	for {
		t := h.topic(conversationID)
		select {
		case t.register <- s:
			return s
		case <-t.done:
			// topic retired between lookup and register; take a fresh one
		}
	}
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	t := h.topics[s.conversationID]
	h.mu.Unlock()
	if t == nil {
		return
	}
	select {
	case t.unregister <- s:
	case <-t.done:
	}
}

// Notify wakes every local subscriber of conversationID. It never blocks.
func (h *Hub) Notify(conversationID string) {
	h.mu.Lock()
	t := h.topics[conversationID]
	h.mu.Unlock()
	if t == nil {
		return
	}
	select {
	case t.broadcast <- struct{}{}:
	default:
		// a broadcast is already queued and will wake everyone after this append
	}
}

// Subscribers returns the number of live subscribers for conversationID.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.Lock()
	t := h.topics[conversationID]
	h.mu.Unlock()
	if t == nil {
		return 0
	}
	return t.Subscribers()
}

// Topics returns the number of conversations with a running topic.
func (h *Hub) Topics() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics)
}

// retire removes t if it is still idle. Called from t's own goroutine.
func (h *Hub) retire(t *Topic) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(t.subs) > 0 || len(t.broadcast) > 0 {
		return false
	}
	if h.topics[t.conversationID] == t {
		delete(h.topics, t.conversationID)
	}
	close(t.done)
	return true
}

type Topic struct {
	conversationID string
	subs           map[*Subscriber]struct{}
	register       chan *Subscriber
	unregister     chan *Subscriber
	broadcast      chan struct{}
	done           chan struct{}
	count          int32
}

func newTopic(conversationID string) *Topic {
	return &Topic{
		conversationID: conversationID,
		subs:           make(map[*Subscriber]struct{}),
		register:       make(chan *Subscriber),
		unregister:     make(chan *Subscriber),
		broadcast:      make(chan struct{}, 64),
		done:           make(chan struct{}),
	}
}

func (t *Topic) run(h *Hub) {
	for {
		select {
		case s := <-t.register:
			t.subs[s] = struct{}{}
			atomic.StoreInt32(&t.count, int32(len(t.subs)))
			metrics.FeedSubscribers.Inc()
		case s := <-t.unregister:
			if _, ok := t.subs[s]; !ok {
				continue
			}
			delete(t.subs, s)
			atomic.StoreInt32(&t.count, int32(len(t.subs)))
			metrics.FeedSubscribers.Dec()
			if len(t.subs) == 0 && h.retire(t) {
				return
			}
		case <-t.broadcast:
			for s := range t.subs {
				select {
				case s.notify <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (t *Topic) Subscribers() int { return int(atomic.LoadInt32(&t.count)) }
