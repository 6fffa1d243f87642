package collab

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"socialgraph/backend/internal/metrics"
	"socialgraph/backend/pkg/logger"
)

// Notification is one entry of a profile's notification log.
type Notification struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	PostID    string `json:"postId,omitempty"`
	CommentID string `json:"commentId,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// BreakerConfig tunes the circuit breaker guarding the publisher.
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

// Notifier publishes notifications. Publishing is fire-and-forget: failures
// are logged and counted, never returned.
type Notifier struct {
	pub     message.Publisher
	topic   string
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotifier creates a notifier publishing to topic.
func NewNotifier(pub message.Publisher, topic string, cfg BreakerConfig) *Notifier {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	log := logger.Named("notifier")
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notifications",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Notifier{pub: pub, topic: topic, breaker: breaker, logger: log, now: time.Now}
}

// Notify publishes note and reports whether the publisher accepted it.
func (n *Notifier) Notify(ctx context.Context, note Notification) bool {
	if note.Username == "" {
		return false
	}
	if note.CreatedAt == 0 {
		note.CreatedAt = n.now().UnixMilli()
	}
	payload, err := json.Marshal(note)
	if err != nil {
		n.logger.Warn("Failed to encode notification", zap.Error(err))
		metrics.RecordNotification("failed")
		return false
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	_, err = n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.pub.Publish(n.topic, msg)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordNotification("rejected")
		n.logger.Debug("Notification dropped by open circuit", zap.String("username", note.Username))
		return false
	case err != nil:
		metrics.RecordNotification("failed")
		n.logger.Warn("Failed to publish notification",
			zap.String("username", note.Username),
			zap.Error(err))
		return false
	}
	metrics.RecordNotification("sent")
	return true
}

// State returns the breaker state for health reporting.
func (n *Notifier) State() string {
	return n.breaker.State().String()
}

// ConsumeNotifications decodes notifications from topic and hands them to
// handle until ctx ends or the subscription closes. Undecodable messages are
// acked and skipped.
func ConsumeNotifications(ctx context.Context, sub message.Subscriber, topic string, handle func(Notification)) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	log := logger.Named("notifier")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var note Notification
			if err := json.Unmarshal(msg.Payload, &note); err != nil {
				log.Warn("Skipping undecodable notification", zap.String("uuid", msg.UUID), zap.Error(err))
			} else {
				handle(note)
			}
			msg.Ack()
		}
	}
}

// watermillLogger adapts zap to watermill's logger interface.
type watermillLogger struct {
	l *zap.Logger
}

// NewWatermillLogger wraps l for watermill publishers and subscribers.
func NewWatermillLogger(l *zap.Logger) watermill.LoggerAdapter {
	return watermillLogger{l: l}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (w watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.l.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (w watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.l.Info(msg, zapFields(fields)...)
}

func (w watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.l.Debug(msg, zapFields(fields)...)
}

func (w watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.l.Debug(msg, zapFields(fields)...)
}

func (w watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{l: w.l.With(zapFields(fields)...)}
}
