package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ErrTokenRejected indicates the gateway refused the device token.
var ErrTokenRejected = errors.New("push token rejected by gateway")

// Message is a single push addressed to one device token.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Config contains the gateway endpoint and credentials.
type Config struct {
	Endpoint  string
	ServerKey string
	Timeout   time.Duration
}

// Service sends push messages to an HTTP push gateway.
type Service struct {
	endpoint  string
	serverKey string
	timeout   time.Duration
	logger    zerolog.Logger
}

type sendRequest struct {
	To           string            `json:"to"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendResponse struct {
	OK    *bool  `json:"ok"`
	Error string `json:"error"`
}

// New constructs a gateway client.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("push gateway endpoint must be provided")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Service{
		endpoint:  endpoint,
		serverKey: cfg.ServerKey,
		timeout:   timeout,
		logger:    logger.With().Str("component", "push_gateway").Logger(),
	}, nil
}

// Send delivers one message. Errors are isolated to the given token.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Token) == "" {
		return fmt.Errorf("%w: empty token", ErrTokenRejected)
	}

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(s.endpoint)
	agent.Timeout(timeout)
	agent.JSON(sendRequest{
		To:           msg.Token,
		Notification: notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	})
	if s.serverKey != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+s.serverKey)
	}
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("failed to prepare push request: %w", err)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("push gateway request failed: %w", errors.Join(errs...))
	}

	switch {
	case status == fiber.StatusNotFound || status == fiber.StatusGone:
		return fmt.Errorf("%w: status %d", ErrTokenRejected, status)
	case status < fiber.StatusOK || status >= fiber.StatusMultipleChoices:
		return fmt.Errorf("push gateway returned status %d: %s", status, truncate(string(body), 200))
	}

	var response sendResponse
	if len(body) > 0 && json.Unmarshal(body, &response) == nil && response.OK != nil && !*response.OK {
		return fmt.Errorf("%w: %s", ErrTokenRejected, response.Error)
	}

	s.logger.Debug().Str("token", MaskToken(msg.Token)).Msg("push delivered to gateway")
	return nil
}

// MaskToken keeps the last characters of a device token for logs.
func MaskToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 6 {
		return "***"
	}
	return "***" + token[len(token)-6:]
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
