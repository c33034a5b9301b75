package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-results-api/pkg/push"
)

// PushGateway delivers a single push message to one device token.
type PushGateway interface {
	Send(ctx context.Context, msg push.Message) error
}

// LogPushGateway is a development gateway that only logs messages.
type LogPushGateway struct {
	logger zerolog.Logger
}

// NewLogPushGateway constructs a logging gateway.
func NewLogPushGateway(logger zerolog.Logger) *LogPushGateway {
	return &LogPushGateway{logger: logger.With().Str("component", "log_push_gateway").Logger()}
}

// Send logs the message and reports success.
func (l *LogPushGateway) Send(ctx context.Context, msg push.Message) error {
	l.logger.Info().
		Str("token", push.MaskToken(msg.Token)).
		Str("title", msg.Title).
		Interface("data", msg.Data).
		Msg("push message delivered to log")
	return nil
}
