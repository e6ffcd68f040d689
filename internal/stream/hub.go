// Package stream is the in-process fan-out registry behind the live
// dashboard feed. Subscribers register per business; publishers push
// state-change events that reach every live subscriber for that business.
// Delivery is best effort and at most once; the store stays the source of
// truth and a missed event only delays a UI refresh.
package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesalista/venue-checkin/pkg/logger"
)

// Event types carried on the stream. The reservation and attendance types
// match the values persisted client code already switches on.
const (
	EventConnected          = "connected"
	EventPing               = "ping"
	EventReservationCreated = "reservation-created"
	EventReservationUpdated = "reservation-updated"
	EventReservationDeleted = "reservation-deleted"
	EventQRScanned          = "qr-scanned"
	EventAttendanceUpdated  = "asistencia_updated"
)

// DefaultPingInterval keeps intermediaries from reaping idle connections.
const DefaultPingInterval = 30 * time.Second

// subscriptionBuffer bounds how far a slow consumer may lag before it is
// dropped from the registry.
const subscriptionBuffer = 16

// Event is one message on the stream.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Subscription is one live consumer. Events arrive on C in publish order;
// the channel is closed when the subscription is removed.
type Subscription struct {
	ID         string
	BusinessID string
	C          chan Event

	closeOnce sync.Once
	done      chan struct{}
}

// Done is closed when the subscription has been removed from the registry.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		close(s.C)
	})
}

// Hub is the per-business subscription registry. A single mutex guards the
// map; sends happen under the lock so per-subscriber delivery preserves the
// order in which publishers committed their mutations.
type Hub struct {
	mu           sync.Mutex
	subs         map[string]map[string]*Subscription
	pingInterval time.Duration
}

// NewHub builds a registry. A non-positive pingInterval falls back to the
// default.
func NewHub(pingInterval time.Duration) *Hub {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &Hub{
		subs:         make(map[string]map[string]*Subscription),
		pingInterval: pingInterval,
	}
}

// Subscribe registers a consumer for a business. The subscription receives
// a connected event immediately and a ping every interval until it is
// unsubscribed.
func (h *Hub) Subscribe(businessID string) *Subscription {
	sub := &Subscription{
		ID:         fmt.Sprintf("%s-%d-%s", businessID, time.Now().UnixNano(), uuid.NewString()[:8]),
		BusinessID: businessID,
		C:          make(chan Event, subscriptionBuffer),
		done:       make(chan struct{}),
	}

	// Buffered before the subscription is visible to publishers, so it is
	// always the first event and can never race a close on the channel.
	sub.C <- Event{
		Type:      EventConnected,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"subscriptionId": sub.ID},
	}

	h.mu.Lock()
	byBusiness, ok := h.subs[businessID]
	if !ok {
		byBusiness = make(map[string]*Subscription)
		h.subs[businessID] = byBusiness
	}
	byBusiness[sub.ID] = sub
	h.mu.Unlock()

	go h.ping(sub)

	logger.Debug("stream subscriber registered", "business_id", businessID, "subscription_id", sub.ID)
	return sub
}

// Unsubscribe removes a subscription and stops its ping loop. Safe to call
// more than once; the transport close handler and a failed delivery may
// race on it.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	h.removeLocked(sub)
	h.mu.Unlock()
}

// Publish delivers an event to every live subscriber of the business. A
// subscriber whose buffer is full is removed rather than blocking the
// publisher.
func (h *Hub) Publish(businessID, eventType string, data map[string]any) {
	evt := Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[businessID] {
		select {
		case sub.C <- evt:
		default:
			logger.Warn("stream subscriber lagging, dropping it",
				"business_id", businessID, "subscription_id", sub.ID)
			h.removeLocked(sub)
		}
	}
}

// SubscriberCount reports live subscriptions for a business.
func (h *Hub) SubscriberCount(businessID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[businessID])
}

// Close drops every subscription. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, byBusiness := range h.subs {
		for _, sub := range byBusiness {
			sub.close()
		}
	}
	h.subs = make(map[string]map[string]*Subscription)
}

func (h *Hub) removeLocked(sub *Subscription) {
	byBusiness, ok := h.subs[sub.BusinessID]
	if !ok {
		return
	}
	if _, ok := byBusiness[sub.ID]; !ok {
		return
	}
	delete(byBusiness, sub.ID)
	if len(byBusiness) == 0 {
		delete(h.subs, sub.BusinessID)
	}
	sub.close()
}

func (h *Hub) ping(sub *Subscription) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sub.Done():
			return
		case <-ticker.C:
			h.mu.Lock()
			select {
			case <-sub.Done():
			default:
				select {
				case sub.C <- Event{Type: EventPing, Timestamp: time.Now().UTC()}:
				default:
					h.removeLocked(sub)
				}
			}
			h.mu.Unlock()
		}
	}
}
