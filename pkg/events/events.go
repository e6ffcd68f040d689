package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mesalista/venue-checkin/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event types. The same strings are used as the "type" field on dashboard
// stream events and as NATS subjects for sibling services.
const (
	ReservationCreated = "reservation-created"
	ReservationUpdated = "reservation-updated"
	ReservationDeleted = "reservation-deleted"
	QRScanned          = "qr-scanned"
	AttendanceUpdated  = "asistencia_updated"
)

// Event payloads
type ReservationCreatedEvent struct {
	ReservationID     string    `json:"reservation_id"`
	BusinessID        string    `json:"business_id"`
	ReservationNumber string    `json:"reservation_number"`
	CustomerName      string    `json:"customer_name"`
	GuestCount        int       `json:"guest_count"`
	ReservedAt        time.Time `json:"reserved_at"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type ReservationUpdatedEvent struct {
	ReservationID string    `json:"reservation_id"`
	BusinessID    string    `json:"business_id"`
	Changes       []string  `json:"changes"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ReservationDeletedEvent struct {
	ReservationID string    `json:"reservation_id"`
	BusinessID    string    `json:"business_id"`
	Reason        string    `json:"reason"`
	DeletedAt     time.Time `json:"deleted_at"`
}

type QRScannedEvent struct {
	ReservationID string    `json:"reservation_id"`
	BusinessID    string    `json:"business_id"`
	CustomerName  string    `json:"customer_name"`
	ScanCount     int       `json:"scan_count"`
	GuestCount    int       `json:"guest_count"`
	Overflow      int       `json:"overflow"`
	IsFirstScan   bool      `json:"is_first_scan"`
	Status        string    `json:"status"`
	ScannedAt     time.Time `json:"scanned_at"`
}

type AttendanceUpdatedEvent struct {
	ReservationID string    `json:"reservation_id"`
	BusinessID    string    `json:"business_id"`
	GuestCount    int       `json:"guest_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}
