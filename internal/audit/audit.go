// Package audit keeps a trail of payment events per order: initiations,
// provider callbacks, confirmations and compensations.
package audit

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Action string

const (
	ActionInitiated Action = "payment.initiated"
	ActionFailed    Action = "payment.failed"
	ActionCallback  Action = "payment.callback"
	ActionConfirmed Action = "payment.confirmed"
	ActionDeclined  Action = "payment.declined"
	ActionCancelled Action = "order.cancelled"
	ActionDuplicate Action = "payment.duplicate"
)

// Event is one audit entry.
type Event struct {
	ID          string    `bson:"_id,omitempty" json:"id,omitempty"`
	StoreID     int64     `bson:"store_id" json:"store_id"`
	OrderNumber string    `bson:"order_number" json:"order_number"`
	Method      string    `bson:"payment_method" json:"payment_method"`
	Action      Action    `bson:"action" json:"action"`
	Data        bson.M    `bson:"data,omitempty" json:"data,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// Reader returns the newest events of an order first, at most limit of them.
type Reader interface {
	History(ctx context.Context, orderNumber string, limit int64) ([]Event, error)
}

type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoRecorder connects to uri and writes events to the payment_audit
// collection of database.
func NewMongoRecorder(ctx context.Context, uri, database string) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &MongoRecorder{client: client, collection: client.Database(database).Collection("payment_audit")}, nil
}

func (m *MongoRecorder) Record(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := m.collection.InsertOne(ctx, e)
	return err
}

// History returns the newest events of an order first.
func (m *MongoRecorder) History(ctx context.Context, orderNumber string, limit int64) ([]Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := m.collection.Find(ctx, bson.M{"order_number": orderNumber}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (m *MongoRecorder) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

func (Nop) History(context.Context, string, int64) ([]Event, error) { return []Event{}, nil }

// Memory keeps events in process; used by tests and the demo server.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, e)
	return nil
}

// Actions lists the recorded actions for an order in order of recording.
func (m *Memory) Actions(orderNumber string) []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Action, 0)
	for _, e := range m.events {
		if e.OrderNumber == orderNumber {
			out = append(out, e.Action)
		}
	}
	return out
}

func (m *Memory) History(_ context.Context, orderNumber string, limit int64) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0)
	for i := len(m.events) - 1; i >= 0 && (limit <= 0 || int64(len(out)) < limit); i-- {
		if m.events[i].OrderNumber == orderNumber {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}
