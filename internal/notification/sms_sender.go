package notification

import (
	"context"
	"log/slog"
)

// logSMSSender satisfies the smsSender interface without a provider behind
// it: the rendered message is logged and reported as delivered. It keeps the
// dispatcher's SMS channel wired until a real gateway is configured, e.g.
// for delivering login OTPs to phone numbers.
type logSMSSender struct {
	log *slog.Logger
}

// NewDummySMSSender creates an SMS sender that only logs outgoing messages.
func NewDummySMSSender(log *slog.Logger) smsSender {
	return &logSMSSender{log: log}
}

func (s *logSMSSender) Send(ctx context.Context, to, message string) error {
	s.log.Info("sms gateway not configured, message logged only", "to", to, "message", message)
	return nil
}
