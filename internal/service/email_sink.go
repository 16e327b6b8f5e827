package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorhub-api/internal/repository"
)

const emailSendTimeout = 10 * time.Second

// EmailSender delivers plain-text email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EmailEventSink emails the affected user about workflow outcomes.
type EmailEventSink struct {
	sender EmailSender
	users  repository.ProviderDirectory
	logger zerolog.Logger
	async  bool
}

// NewEmailEventSink constructs the sink. Delivery happens off the request path.
func NewEmailEventSink(sender EmailSender, users repository.ProviderDirectory, logger zerolog.Logger) *EmailEventSink {
	return &EmailEventSink{
		sender: sender,
		users:  users,
		logger: logger.With().Str("component", "email_event_sink").Logger(),
		async:  true,
	}
}

// Publish implements EventPublisher.
func (s *EmailEventSink) Publish(ctx context.Context, event Event) {
	subject, ok := emailSubject(event)
	if !ok || event.RecipientID == 0 {
		return
	}

	send := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, emailSendTimeout)
		defer cancel()

		recipient, err := s.users.GetByID(ctx, event.RecipientID)
		if err != nil {
			s.logger.Warn().Err(err).Uint("recipient_id", event.RecipientID).Msg("email recipient lookup failed")
			return
		}

		body := fmt.Sprintf("Hi %s,\n\n%s\n", recipient.FullName, event.Message)
		if err := s.sender.Send(ctx, recipient.Email, subject, body); err != nil {
			s.logger.Warn().Err(err).Str("event_type", event.Type).Msg("failed to send workflow email")
			return
		}
		s.logger.Debug().Str("event_type", event.Type).Uint("recipient_id", event.RecipientID).Msg("workflow email sent")
	}

	if !s.async {
		send(ctx)
		return
	}
	go send(context.WithoutCancel(ctx))
}

func emailSubject(event Event) (string, bool) {
	switch event.Type {
	case EventApplicationReviewed:
		return "Your advanced tutor application has been reviewed", true
	case EventAssignmentCreated:
		return "You have a new assignment", true
	case EventAssignmentAccepted, EventAssignmentDeclined:
		return "An assignment you created was answered", true
	default:
		return "", false
	}
}
