package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport writes messages to the log instead of delivering them. It is
// the development default.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport constructs a LogTransport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger}
}

// Name implements Transport.
func (t *LogTransport) Name() string { return "log" }

// Send implements Transport.
func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.logger.Info("email dispatched",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
		zap.Any("tags", msg.Tags),
	)
	return nil
}
