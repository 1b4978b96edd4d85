package notification

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sink renders templates, dispatches messages through the configured senders,
// and keeps a bounded in-memory record of what was sent. Delivery failures are
// recorded and logged but never surfaced to the calling domain service; a
// failed email must not fail a registration.
type Sink struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	logger    zerolog.Logger

	mu       sync.RWMutex
	messages map[uuid.UUID]*Message
	order    []uuid.UUID
}

// maxRecorded caps the in-memory record. The oldest messages fall off once
// the cap is reached; the record is an inspection aid, not an archive.
const maxRecorded = 1000

// NewSink constructs a Sink.
func NewSink(email EmailSender, sms SMSSender, tpl *TemplateEngine, logger zerolog.Logger) *Sink {
	return &Sink{
		email:     email,
		sms:       sms,
		templates: tpl,
		logger:    logger,
		messages:  make(map[uuid.UUID]*Message),
	}
}

// Send dispatches a message through the channel it names and records the
// outcome. The message is assigned an ID and timestamps.
func (s *Sink) Send(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now().UTC()
	m.Status = "pending"

	sendErr := s.dispatch(ctx, m)
	if sendErr != nil {
		m.Status = "failed"
		m.Error = sendErr.Error()
		s.logger.Error().Err(sendErr).
			Str("message_id", m.ID.String()).
			Str("channel", string(m.Channel)).
			Str("template", m.TemplateID).
			Msg("notification delivery failed")
	} else {
		m.Status = "sent"
		sentAt := time.Now().UTC()
		m.SentAt = &sentAt
	}

	s.mu.Lock()
	s.record(m)
	s.mu.Unlock()

	return sendErr
}

// record stores a message and evicts the oldest once the cap is hit.
// Callers hold s.mu.
func (s *Sink) record(m *Message) {
	if _, exists := s.messages[m.ID]; !exists {
		s.order = append(s.order, m.ID)
	}
	s.messages[m.ID] = m

	for len(s.order) > maxRecorded {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.messages, oldest)
	}
}

func (s *Sink) dispatch(ctx context.Context, m *Message) error {
	switch m.Channel {
	case ChannelEmail:
		return s.email.SendEmail(ctx, m.Recipient, m.Subject, m.Body)
	case ChannelSMS:
		return s.sms.SendSMS(ctx, m.Recipient, m.Body)
	default:
		return fmt.Errorf("unsupported channel: %s", m.Channel)
	}
}

// SendTemplate renders a registered template and sends the result.
func (s *Sink) SendTemplate(ctx context.Context, templateID, recipient string, data map[string]string) (*Message, error) {
	subject, body, err := s.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}

	tpl, _ := s.templates.Lookup(templateID)
	m := &Message{
		Channel:    tpl.Channel,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Data:       data,
	}
	if err := s.Send(ctx, m); err != nil {
		return m, err
	}
	return m, nil
}

// SendVerificationCode emails a one-time code to a newly registered or
// re-verifying account. The error is logged inside Send; callers treat
// delivery as fire-and-forget.
func (s *Sink) SendVerificationCode(ctx context.Context, email, name, code string, ttl time.Duration) {
	_, _ = s.SendTemplate(ctx, "verification-code", email, map[string]string{
		"name":        name,
		"code":        code,
		"ttl_minutes": strconv.Itoa(int(ttl.Minutes())),
	})
}

// SendWelcome emails an activation confirmation.
func (s *Sink) SendWelcome(ctx context.Context, email, name string) {
	_, _ = s.SendTemplate(ctx, "welcome", email, map[string]string{
		"name": name,
	})
}

// SendTwoFactorEnabled emails a security notice after 2FA enrollment.
func (s *Sink) SendTwoFactorEnabled(ctx context.Context, email, name string) {
	_, _ = s.SendTemplate(ctx, "two-factor-enabled", email, map[string]string{
		"name": name,
	})
}

// SendAppointmentBooked emails a booking confirmation.
func (s *Sink) SendAppointmentBooked(ctx context.Context, email, name, doctor string, at time.Time) {
	_, _ = s.SendTemplate(ctx, "appointment-booked", email, map[string]string{
		"name":   name,
		"doctor": doctor,
		"date":   at.Format("2006-01-02"),
		"time":   at.Format("15:04"),
	})
}

// SendAppointmentCancelled emails a cancellation notice.
func (s *Sink) SendAppointmentCancelled(ctx context.Context, email, name, doctor string, at time.Time) {
	_, _ = s.SendTemplate(ctx, "appointment-cancelled", email, map[string]string{
		"name":   name,
		"doctor": doctor,
		"date":   at.Format("2006-01-02"),
	})
}

// SendPrescriptionIssued emails a new-prescription notice.
func (s *Sink) SendPrescriptionIssued(ctx context.Context, email, name, doctor, medication string) {
	_, _ = s.SendTemplate(ctx, "prescription-issued", email, map[string]string{
		"name":       name,
		"doctor":     doctor,
		"medication": medication,
	})
}

// SendPaymentReceipt emails a payment confirmation.
func (s *Sink) SendPaymentReceipt(ctx context.Context, email, name, amount, description, reference string) {
	_, _ = s.SendTemplate(ctx, "payment-receipt", email, map[string]string{
		"name":        name,
		"amount":      amount,
		"description": description,
		"reference":   reference,
	})
}

// SendSubscriptionStarted emails a subscription confirmation.
func (s *Sink) SendSubscriptionStarted(ctx context.Context, email, name, plan string, expires time.Time) {
	_, _ = s.SendTemplate(ctx, "subscription-started", email, map[string]string{
		"name":    name,
		"plan":    plan,
		"expires": expires.Format("2006-01-02"),
	})
}

// Get returns a recorded message by ID.
func (s *Sink) Get(id uuid.UUID) (*Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	return m, ok
}

// ListByRecipient returns recorded messages for a recipient, up to limit.
func (s *Sink) ListByRecipient(recipient string, limit int) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Message
	for _, m := range s.messages {
		if m.Recipient == recipient {
			out = append(out, m)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Retry re-dispatches a failed message. Messages in any other status are
// rejected.
func (s *Sink) Retry(ctx context.Context, id uuid.UUID) error {
	s.mu.RLock()
	m, ok := s.messages[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("message %s not found", id)
	}
	if m.Status != "failed" {
		return fmt.Errorf("message %s is not failed (status %s)", id, m.Status)
	}

	sendErr := s.dispatch(ctx, m)

	s.mu.Lock()
	if sendErr != nil {
		m.Status = "failed"
		m.Error = sendErr.Error()
	} else {
		m.Status = "sent"
		sentAt := time.Now().UTC()
		m.SentAt = &sentAt
		m.Error = ""
	}
	s.mu.Unlock()

	return sendErr
}

// Stats returns message counts grouped by status.
func (s *Sink) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int)
	for _, m := range s.messages {
		stats[m.Status]++
	}
	return stats
}
