// Package event publishes auth domain events. The password-reset-requested
// event doubles as the delivery channel for reset emails: a downstream
// notification consumer turns it into mail.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lumastudio/auth-service/internal/domain"
	"github.com/lumastudio/auth-service/internal/kafka"
	"github.com/lumastudio/auth-service/internal/logger"
)

// Kafka topics for auth domain events.
const (
	TopicUserRegistered         = "studio.auth.registered"
	TopicPasswordChanged        = "studio.auth.password_changed"
	TopicPasswordResetRequested = "studio.auth.password_reset_requested"
)

const (
	aggregateTypeUser = "user"
	sourceAuthService = "auth-service"
)

// UserRegisteredData is the payload for a registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// PasswordChangedData is the payload for a password-changed event. It is
// published both for explicit changes and for reset completions.
type PasswordChangedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// PasswordResetRequestedData is the payload for a reset request. The link
// embeds the plaintext reset token; it exists only in this event and in the
// email built from it, never in the database.
type PasswordResetRequestedData struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	ResetLink string `json:"reset_link"`
}

// publisher is the surface of kafka.Producer the event producer needs.
type publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Producer publishes auth domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates an event producer for the auth service.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a registered event for a new account.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}

	if err := p.publish(ctx, TopicUserRegistered, user.ID, data); err != nil {
		return fmt.Errorf("publish registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published registered event",
		slog.String("user_id", user.ID),
	)
	return nil
}

// PublishPasswordChanged publishes a password-changed event.
func (p *Producer) PublishPasswordChanged(ctx context.Context, userID, email string) error {
	data := PasswordChangedData{UserID: userID, Email: email}

	if err := p.publish(ctx, TopicPasswordChanged, userID, data); err != nil {
		return fmt.Errorf("publish password-changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published password-changed event",
		slog.String("user_id", userID),
	)
	return nil
}

// PublishPasswordResetRequested publishes a reset request carrying the reset
// link. A failure here means the user will never get the email, so callers
// surface it instead of swallowing it.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, user *domain.User, resetLink string) error {
	data := PasswordResetRequestedData{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		ResetLink: resetLink,
	}

	if err := p.publish(ctx, TopicPasswordResetRequested, user.ID, data); err != nil {
		return fmt.Errorf("publish password-reset-requested event: %w", err)
	}

	p.logger.DebugContext(ctx, "published password-reset-requested event",
		slog.String("user_id", user.ID),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	ev, err := kafka.NewEvent(topic, aggregateID, aggregateTypeUser, sourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		ev.WithCorrelationID(id)
	}
	return p.kafka.Publish(ctx, topic, ev)
}
