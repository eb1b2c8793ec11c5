package client

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LogSender writes codes to the log instead of delivering them. Development
// fallback when no SMS gateway is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendCode(_ context.Context, recipient, code string, ttl time.Duration) error {
	s.log.Info("otp code issued (dev sender, not delivered)",
		zap.String("recipient", recipient),
		zap.String("code", code),
		zap.Duration("ttl", ttl),
	)
	return nil
}
