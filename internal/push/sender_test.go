package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/mocks"
	"social-service/internal/models"
)

func TestFanoutReturnsFailedEndpoints(t *testing.T) {
	sender := &mocks.PushSenderMock{}
	payload := []byte(`{"title":"hi"}`)
	subs := []models.PushSubscription{{Endpoint: "https://a"}, {Endpoint: "https://b"}, {Endpoint: "https://c"}}

	sender.On("Send", mock.Anything, subs[0], payload).Return(nil).Once()
	sender.On("Send", mock.Anything, subs[1], payload).Return(&DeliveryError{StatusCode: 410}).Once()
	sender.On("Send", mock.Anything, subs[2], payload).Return(errors.New("timeout")).Once()

	failed := Fanout(context.Background(), sender, subs, payload, 2)

	assert.ElementsMatch(t, []string{"https://b", "https://c"}, failed)
	sender.AssertExpectations(t)
}

type countingSender struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *countingSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return nil
}

func TestFanoutBoundsConcurrency(t *testing.T) {
	sender := &countingSender{}
	subs := make([]models.PushSubscription, 20)
	for i := range subs {
		subs[i] = models.PushSubscription{Endpoint: fmt.Sprintf("https://push/%d", i)}
	}

	failed := Fanout(context.Background(), sender, subs, nil, 3)

	assert.Empty(t, failed)
	assert.LessOrEqual(t, sender.peak.Load(), int32(3))
}

func TestEncodeNotification(t *testing.T) {
	b, err := Encode(Notification{Title: "New post", Body: "ann posted", Icon: "https://cdn/icon.png"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "New post", got["title"])
	assert.NotContains(t, got, "url")
}
