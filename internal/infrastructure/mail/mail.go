// Package mail delivers account emails.
package mail

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"

	"github.com/natours/tours-api/internal/core/ports"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	client *gomail.Client
	from   string
}

var _ ports.Notifier = (*SMTPNotifier)(nil)

func NewSMTPNotifier(cfg Config) (*SMTPNotifier, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.In("mail").With("host", cfg.Host).Wrapf(err, "create smtp client")
	}
	return &SMTPNotifier{client: client, from: cfg.From}, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	msg, err := n.message(to, subject, body)
	if err != nil {
		return err
	}
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return oops.In("mail").Wrapf(err, "send")
	}
	return nil
}

func (n *SMTPNotifier) message(to, subject, body string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, oops.In("mail").Wrapf(err, "invalid sender")
	}
	if err := msg.To(to); err != nil {
		return nil, oops.In("mail").Wrapf(err, "invalid recipient")
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}

// LogNotifier writes messages to the log instead of sending them. Used
// when no SMTP host is configured.
type LogNotifier struct {
	log zerolog.Logger
}

var _ ports.Notifier = LogNotifier{}

func NewLogNotifier(log zerolog.Logger) LogNotifier {
	return LogNotifier{log: log}
}

func (n LogNotifier) Send(_ context.Context, to, subject, body string) error {
	n.log.Info().Str("to", to).Str("subject", subject).Msg("email not sent: no SMTP host configured")
	n.log.Debug().Str("to", to).Str("body", body).Msg("unsent email body")
	return nil
}
