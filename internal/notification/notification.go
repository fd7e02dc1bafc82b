package notification

import (
	"context"
	"log/slog"

	"github.com/inkwell-app/inkwell-api/internal/notification/templates"
)

// --- Constants for Type Safety ---
type Channel string
type Priority string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Content holds the specific message data for each channel.
// A notification can contain content for multiple channels simultaneously.
type Content struct {
	EmailSubject  string
	EmailHTMLBody string
	SMSText       string
}

// Notification is the universal object used to send any notification.
type Notification struct {
	Recipient string // An email address or phone number
	Channels  []Channel
	Priority  Priority
	Content   Content
}

// These are not exposed outside the package.
type emailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
type smsSender interface {
	Send(ctx context.Context, to, message string) error
}

// Service is the main interface for the notification system.
type Service interface {
	Send(ctx context.Context, n Notification) error
}

// service is the concrete implementation.
type service struct {
	log         *slog.Logger
	emailSender emailSender
	smsSender   smsSender
}

// NewService creates a new notification service.
func NewService(log *slog.Logger, emailSender emailSender, smsSender smsSender) Service {
	return &service{
		log:         log,
		emailSender: emailSender,
		smsSender:   smsSender,
	}
}

// Send acts as a dispatcher, routing the notification to the correct channel sender.
func (s *service) Send(ctx context.Context, n Notification) error {
	for _, channel := range n.Channels {
		// Launch each channel send in a separate goroutine for speed.
		go func(ch Channel) {
			var err error
			switch ch {
			case ChannelEmail:
				s.log.Info("dispatching email notification", "recipient", n.Recipient)
				err = s.emailSender.Send(ctx, n.Recipient, n.Content.EmailSubject, n.Content.EmailHTMLBody)
			case ChannelSMS:
				s.log.Info("dispatching sms notification", "recipient", n.Recipient)
				err = s.smsSender.Send(ctx, n.Recipient, n.Content.SMSText)
			default:
				s.log.Warn("unsupported notification channel", "channel", ch)
			}

			if err != nil {
				// We can't return an error here, so we must log it for monitoring.
				s.log.Error("failed to send notification", "channel", ch, "recipient", n.Recipient, "error", err)
			}
		}(channel)
	}
	return nil // Return immediately
}

// SendTemplate renders a template scenario and dispatches it through the service.
// The handle's type parameter pins the data shape at compile time.
func SendTemplate[T any](ctx context.Context, s Service, e *templates.Engine, h templates.Handle[T], recipient string, channels []Channel, priority Priority, data T) error {
	rendered, err := templates.Render(ctx, e, h, data)
	if err != nil {
		return err
	}

	return s.Send(ctx, Notification{
		Recipient: recipient,
		Channels:  channels,
		Priority:  priority,
		Content: Content{
			EmailSubject:  rendered.Subject,
			EmailHTMLBody: rendered.EmailHTML,
			SMSText:       rendered.SMSText,
		},
	})
}
