package mailer

import (
	"go.uber.org/zap"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/univecal/unical-api/pkg/config"
)

// Message is a plain-text account email.
type Message struct {
	ToName  string
	ToAddr  string
	Subject string
	Body    string
}

// Mailer delivers account emails. Delivery is fire-and-forget; failures are
// logged, never surfaced to the request.
type Mailer interface {
	Send(messages ...Message)
}

// SendgridMailer delivers mail through the Sendgrid v3 API.
type SendgridMailer struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
	logger     *zap.Logger
}

var _ Mailer = (*SendgridMailer)(nil)

func NewSendgrid(cfg config.MailConfig, logger *zap.Logger) *SendgridMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendgridMailer{
		client:     sendgrid.NewSendClient(cfg.SendgridKey),
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix: cfg.SubjectPrefix,
		logger:     logger,
	}
}

// Send dispatches each message on its own goroutine.
func (m *SendgridMailer) Send(messages ...Message) {
	for _, msg := range messages {
		msg := msg
		go func() {
			mail := sgmail.NewSingleEmail(
				m.from,
				m.subjPrefix+msg.Subject,
				sgmail.NewEmail(msg.ToName, msg.ToAddr),
				msg.Body,
				"",
			)
			resp, err := m.client.Send(mail)
			if err != nil {
				m.logger.Error("sendgrid send failed", zap.String("to", msg.ToAddr), zap.Error(err))
				return
			}
			if resp.StatusCode >= 400 {
				m.logger.Error("sendgrid rejected message",
					zap.String("to", msg.ToAddr),
					zap.Int("status", resp.StatusCode),
					zap.String("body", resp.Body))
			}
		}()
	}
}

// ConsoleMailer logs messages instead of sending them. Used in development
// and in tests.
type ConsoleMailer struct {
	logger *zap.Logger
}

var _ Mailer = (*ConsoleMailer)(nil)

func NewConsole(logger *zap.Logger) *ConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMailer{logger: logger}
}

func (m *ConsoleMailer) Send(messages ...Message) {
	for _, msg := range messages {
		m.logger.Info("mail (console)",
			zap.String("to", msg.ToAddr),
			zap.String("subject", msg.Subject),
			zap.String("body", msg.Body))
	}
}
