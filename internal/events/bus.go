package events

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"social-service/internal/observability"
)

// Domain event names, used as routing keys.
const (
	MemberJoined   = "member.joined"
	MemberLeft     = "member.left"
	JoinRequested  = "join.requested"
	JoinApproved   = "join.approved"
	JoinRejected   = "join.rejected"
	GroupCreated   = "group.created"
	GroupUpdated   = "group.updated"
	GroupDeleted   = "group.deleted"
	MessageCreated = "message.created"
	MessageUpdated = "message.updated"
	MessageDeleted = "message.deleted"
	PostCreated    = "post.created"
	PostUpdated    = "post.updated"
	PostDeleted    = "post.deleted"
	WSConnect      = "ws.connect"
	WSDisconnect   = "ws.disconnect"
	WSError        = "ws.error"
	DebugTest      = "debug.test"
)

const (
	schemaVersion  = 1
	auditEventType = "audit_log"
	publishTimeout = 5 * time.Second
)

// Publisher delivers an encoded event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Envelope wraps every event put on the broker.
type Envelope struct {
	SchemaVersion int     `json:"schema_version"`
	EventType     string  `json:"event_type"`
	OccurredAt    string  `json:"occurred_at"`
	Service       string  `json:"service"`
	Environment   string  `json:"environment"`
	RequestID     string  `json:"request_id,omitempty"`
	TraceID       string  `json:"trace_id,omitempty"`
	UserID        *string `json:"user_id,omitempty"`
	Payload       any     `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Bus publishes domain events without blocking the caller. Publish failures
// are logged and counted, never returned.
type Bus struct {
	publisher   Publisher
	service     string
	environment string
	timeout     time.Duration
	now         func() time.Time

	// mu orders wg.Add against Close so no publish starts after Wait.
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func NewBus(publisher Publisher, service, environment string) *Bus {
	return &Bus{
		publisher:   publisher,
		service:     service,
		environment: environment,
		timeout:     publishTimeout,
		now:         time.Now,
	}
}

// Publish emits a domain event. The request context only supplies the
// request and trace ids; delivery outlives the request.
func (b *Bus) Publish(ctx context.Context, name string, payload any) {
	if b == nil || b.publisher == nil {
		return
	}
	b.dispatch(ctx, name, b.envelope(ctx, name, payload))
}

// Audit emits an audit_log event routed to audit.<service>.
func (b *Bus) Audit(ctx context.Context, level, text, requestID string, userID *string) {
	if b == nil || b.publisher == nil || b.isClosed() {
		return
	}
	log.Printf("audit emit: level=%s request_id=%s text=%q", level, requestID, text)
	env := b.envelope(ctx, auditEventType, AuditPayload{Level: level, Text: text})
	if requestID != "" {
		env.RequestID = requestID
	}
	env.UserID = userID
	b.dispatch(ctx, "audit."+b.service, env)
}

// Flush waits for in-flight publishes.
func (b *Bus) Flush() {
	if b == nil {
		return
	}
	b.wg.Wait()
}

// Close stops accepting events, flushes and closes the publisher.
func (b *Bus) Close() error {
	if b == nil || b.publisher == nil {
		return nil
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return b.publisher.Close()
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bus) envelope(ctx context.Context, name string, payload any) Envelope {
	env := Envelope{
		SchemaVersion: schemaVersion,
		EventType:     name,
		OccurredAt:    b.now().UTC().Format(time.RFC3339Nano),
		Service:       b.service,
		Environment:   b.environment,
		RequestID:     RequestIDFromContext(ctx),
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return env
}

func (b *Bus) dispatch(ctx context.Context, routingKey string, env Envelope) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer b.wg.Done()
		pctx, cancel := context.WithTimeout(detached, b.timeout)
		defer cancel()

		if err := b.publisher.Publish(pctx, routingKey, env); err != nil {
			log.Printf("event publish failed: event=%s request_id=%s err=%v", env.EventType, env.RequestID, err)
			observability.IncEventPublish(env.EventType, "error")
			return
		}
		observability.IncEventPublish(env.EventType, "ok")
	}()
}
