package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
	"github.com/rs/zerolog"

	"workspace-billing/internal/config"
	"workspace-billing/internal/domain/ports/adapter"
	"workspace-billing/internal/infra/logging"
)

var ErrInvalidConfig = errors.New("invalid notifier config")

var _ adapter.Notifier = (*PostmarkNotifier)(nil)

// PostmarkNotifier sends notifications as plain-text transactional email.
type PostmarkNotifier struct {
	client *postmark.Client
	from   string
	stream string
	dev    bool
	log    zerolog.Logger
}

// NewPostmarkNotifier builds the email notifier. Outside dev, recipients are redacted in logs.
func NewPostmarkNotifier(cfg config.PostmarkConfig, dev bool, logger *zerolog.Logger) (*PostmarkNotifier, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: postmark server token is required", ErrInvalidConfig)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: postmark sender is required", ErrInvalidConfig)
	}
	return &PostmarkNotifier{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		from:   cfg.From,
		stream: cfg.Stream,
		dev:    dev,
		log:    logger.With().Str("component", "postmark").Logger(),
	}, nil
}

func (n *PostmarkNotifier) Notify(ctx context.Context, msg adapter.Notification) error {
	resp, err := n.client.SendEmail(ctx, postmark.Email{
		From:          n.from,
		To:            msg.To,
		Subject:       msg.Subject,
		Tag:           string(msg.Kind),
		TextBody:      msg.Body,
		MessageStream: n.stream,
	})
	if err != nil {
		return fmt.Errorf("postmark send: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	n.log.Debug().Str("message_id", resp.MessageID).Str("kind", string(msg.Kind)).
		Str("workspace_id", msg.WorkspaceID).Str("to", logging.Redact(msg.To, n.dev)).Msg("email sent")
	return nil
}

// LogNotifier only logs. It stands in when no email provider is configured.
type LogNotifier struct {
	dev bool
	log zerolog.Logger
}

func NewLogNotifier(dev bool, logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{dev: dev, log: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, msg adapter.Notification) error {
	n.log.Info().
		Str("kind", string(msg.Kind)).
		Str("workspace_id", msg.WorkspaceID).
		Str("to", logging.Redact(msg.To, n.dev)).
		Str("subject", msg.Subject).
		Msg("notification (email disabled)")
	return nil
}
