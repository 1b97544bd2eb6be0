package vehicletracker

import (
	"context"
	"errors"
	"sync"

	"github.com/travigo/positiontracker/pkg/congestion"
	"github.com/travigo/positiontracker/pkg/consumer"
	"github.com/travigo/positiontracker/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errSaveFailed = errors.New("write concern error")

// memoryStore keeps copies so callers can't mutate stored records behind its back
type memoryStore struct {
	mu        sync.Mutex
	records   map[primitive.ObjectID]*ctdf.VehiclePosition
	saves     int
	failSaves map[primitive.ObjectID]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:   map[primitive.ObjectID]*ctdf.VehiclePosition{},
		failSaves: map[primitive.ObjectID]int{},
	}
}

func (m *memoryStore) FindByTrip(_ context.Context, tripRef primitive.ObjectID) (*ctdf.VehiclePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[tripRef]
	if !ok {
		return nil, nil
	}

	return record.Clone()
}

func (m *memoryStore) Save(_ context.Context, record *ctdf.VehiclePosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++

	if m.failSaves[record.TripRef] > 0 {
		m.failSaves[record.TripRef]--
		return errSaveFailed
	}

	clone, err := record.Clone()
	if err != nil {
		return err
	}
	m.records[record.TripRef] = clone

	return nil
}

func (m *memoryStore) get(tripRef primitive.ObjectID) *ctdf.VehiclePosition {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.records[tripRef]
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.records)
}

type fakeResolver struct {
	trips map[string]*ResolvedTrip
	calls int
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, externalTripID string) (*ResolvedTrip, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	trip, ok := f.trips[externalTripID]
	if !ok {
		return nil, ErrUnknownTrip
	}

	return trip, nil
}

type fakeEstimator struct {
	mu       sync.Mutex
	result   *congestion.Result
	err      error
	block    chan struct{}
	requests []congestion.Request
}

func (f *fakeEstimator) Estimate(ctx context.Context, request congestion.Request) (*congestion.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, request)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.err != nil {
		return nil, f.err
	}

	return f.result, nil
}

func (f *fakeEstimator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.requests)
}

type fakeIndexer struct {
	mu        sync.Mutex
	documents []*ReconciliationElasticEvent
}

func (f *fakeIndexer) IndexDocument(_ string, document any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.documents = append(f.documents, document.(*ReconciliationElasticEvent))
}

type fakeMessage struct {
	payload  []byte
	acked    bool
	rejected bool
}

func (f *fakeMessage) Payload() []byte { return f.payload }
func (f *fakeMessage) Ack() error      { f.acked = true; return nil }
func (f *fakeMessage) Reject() error   { f.rejected = true; return nil }

// fakeSubscription hands out its messages then reports itself closed
type fakeSubscription struct {
	messages chan *fakeMessage
	closed   bool
}

func newFakeSubscription(messages ...*fakeMessage) *fakeSubscription {
	subscription := &fakeSubscription{messages: make(chan *fakeMessage, len(messages))}
	for _, message := range messages {
		subscription.messages <- message
	}
	close(subscription.messages)

	return subscription
}

func (f *fakeSubscription) Next(ctx context.Context) (consumer.Message, error) {
	select {
	case message, ok := <-f.messages:
		if !ok {
			return nil, consumer.ErrSubscriptionClosed
		}
		return message, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSubscription) Close() error {
	f.closed = true
	return nil
}

type fakeSubscriber struct {
	topics        []string
	subscriptions []*fakeSubscription
}

func (f *fakeSubscriber) Subscribe(topic string) (consumer.Subscription, error) {
	f.topics = append(f.topics, topic)

	subscription := newFakeSubscription()
	f.subscriptions = append(f.subscriptions, subscription)

	return subscription, nil
}

func testTrip(tripID string, routeID string) *ResolvedTrip {
	routeObjectID := primitive.NewObjectID()

	return &ResolvedTrip{
		Trip: &ctdf.Trip{
			ID:      primitive.NewObjectID(),
			TripID:  tripID,
			RouteID: routeObjectID,
		},
		Route: &ctdf.Route{
			ID:      routeObjectID,
			RouteID: routeID,
		},
	}
}
