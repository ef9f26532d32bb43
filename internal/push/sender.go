package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/errgroup"

	"social-service/internal/config"
	"social-service/internal/models"
	"social-service/internal/observability"
)

const defaultConcurrency = 10

// Notification is the JSON payload delivered to the service worker.
type Notification struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	URL   string         `json:"url,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// DeliveryError is returned when the push service rejects a notification.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("push service returned %d: %s", e.StatusCode, e.Body)
}

// WebPushSender sends VAPID-signed notifications.
type WebPushSender struct {
	cfg    config.PushConfig
	client *http.Client
}

func NewWebPushSender(cfg config.PushConfig) *WebPushSender {
	return &WebPushSender{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTL,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// Encode renders a notification payload.
func Encode(n Notification) ([]byte, error) {
	return json.Marshal(n)
}

// Fanout delivers payload to every subscription with at most concurrency
// sends in flight and returns the endpoints whose delivery failed.
func Fanout(ctx context.Context, sender Sender, subs []models.PushSubscription, payload []byte, concurrency int) []string {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			if err := sender.Send(gctx, sub, payload); err != nil {
				log.Printf("push send failed endpoint=%s: %v", sub.Endpoint, err)
				observability.IncPushSent("error")
				mu.Lock()
				failed = append(failed, sub.Endpoint)
				mu.Unlock()
				return nil
			}
			observability.IncPushSent("ok")
			return nil
		})
	}
	_ = g.Wait()
	return failed
}
