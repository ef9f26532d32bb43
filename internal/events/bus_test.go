package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/mocks"
)

func TestPublishBuildsEnvelope(t *testing.T) {
	pub := &mocks.PublisherMock{}
	bus := NewBus(pub, "social-service", "test")
	bus.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	var got Envelope
	pub.On("Publish", mock.Anything, MemberJoined, mock.AnythingOfType("events.Envelope")).
		Run(func(args mock.Arguments) { got = args.Get(2).(Envelope) }).
		Return(nil).Once()

	ctx := ContextWithRequestID(context.Background(), "req-1")
	bus.Publish(ctx, MemberJoined, map[string]int{"group_id": 9})
	bus.Flush()

	pub.AssertExpectations(t)
	assert.Equal(t, 1, got.SchemaVersion)
	assert.Equal(t, MemberJoined, got.EventType)
	assert.Equal(t, "2024-05-01T12:00:00Z", got.OccurredAt)
	assert.Equal(t, "social-service", got.Service)
	assert.Equal(t, "test", got.Environment)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, map[string]int{"group_id": 9}, got.Payload)
}

func TestPublishOutlivesRequestContext(t *testing.T) {
	pub := &mocks.PublisherMock{}
	bus := NewBus(pub, "social-service", "test")

	var (
		called      bool
		publishErr  error
		hasDeadline bool
	)
	ctx, cancel := context.WithCancel(context.Background())
	pub.On("Publish", mock.Anything, PostCreated, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
			pctx := args.Get(0).(context.Context)
			called = true
			publishErr = pctx.Err()
			_, hasDeadline = pctx.Deadline()
		}).
		Return(nil).Once()

	bus.Publish(ctx, PostCreated, nil)
	bus.Flush()

	require.True(t, called)
	assert.NoError(t, publishErr)
	assert.True(t, hasDeadline)
}

func TestCloseRacesPublish(t *testing.T) {
	pub := &mocks.PublisherMock{}
	bus := NewBus(pub, "social-service", "test")
	pub.On("Publish", mock.Anything, WSDisconnect, mock.Anything).Return(nil).Maybe()
	pub.On("Close").Return(nil).Once()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), WSDisconnect, nil)
		}()
	}
	require.NoError(t, bus.Close())
	wg.Wait()
	bus.Publish(context.Background(), WSDisconnect, nil)
	bus.Flush()

	pub.AssertNumberOfCalls(t, "Close", 1)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := &mocks.PublisherMock{}
	bus := NewBus(pub, "social-service", "test")
	pub.On("Publish", mock.Anything, MessageCreated, mock.Anything).Return(errors.New("broker down")).Once()

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), MessageCreated, nil)
		bus.Flush()
	})
	pub.AssertExpectations(t)
}

func TestAuditRoutesToServiceKey(t *testing.T) {
	pub := &mocks.PublisherMock{}
	bus := NewBus(pub, "social-service", "test")
	uid := "7"

	var got Envelope
	pub.On("Publish", mock.Anything, "audit.social-service", mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).(Envelope) }).
		Return(nil).Once()

	bus.Audit(context.Background(), "INFO", "group created", "req-9", &uid)
	bus.Flush()

	assert.Equal(t, "audit_log", got.EventType)
	assert.Equal(t, "req-9", got.RequestID)
	assert.Equal(t, &uid, got.UserID)
	assert.Equal(t, AuditPayload{Level: "INFO", Text: "group created"}, got.Payload)
}

func TestCloseFlushesAndDropsLateEvents(t *testing.T) {
	pub := &mocks.PublisherMock{}
	bus := NewBus(pub, "social-service", "test")
	pub.On("Publish", mock.Anything, GroupCreated, mock.Anything).Return(nil).Once()
	pub.On("Close").Return(nil).Once()

	bus.Publish(context.Background(), GroupCreated, nil)
	require.NoError(t, bus.Close())
	bus.Publish(context.Background(), GroupDeleted, nil)
	require.NoError(t, bus.Close())

	pub.AssertExpectations(t)
	pub.AssertNotCalled(t, "Publish", mock.Anything, GroupDeleted, mock.Anything)
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *Bus
	bus.Publish(context.Background(), MemberLeft, nil)
	bus.Flush()
	assert.NoError(t, bus.Close())
}
