package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ResultPublishedEvent is broadcast once a group has been published.
type ResultPublishedEvent struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	ClassName   string    `json:"class_name"`
	ExamType    string    `json:"exam_type"`
	MarkCount   int       `json:"mark_count"`
	StudentIDs  []string  `json:"student_ids"`
	PublishedAt time.Time `json:"published_at"`
}

// ResultEvents publishes result events to other services.
type ResultEvents interface {
	PublishResultPublished(ctx context.Context, event ResultPublishedEvent) error
}

type resultEvents struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewResultEvents builds a publisher over Redis pub/sub and NATS. Either transport may
// be nil; with both nil events are dropped.
func NewResultEvents(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) ResultEvents {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":results:published"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".results.published"
	}

	return &resultEvents{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "result_events").Logger(),
	}
}

func (e *resultEvents) PublishResultPublished(ctx context.Context, event ResultPublishedEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Source = e.nodeID
	if event.PublishedAt.IsZero() {
		event.PublishedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if e.redis != nil && e.redisChannel != "" {
		if err := e.redis.Publish(ctx, e.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}

	if e.nats != nil && e.natsSubject != "" {
		if err := e.nats.Publish(e.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	e.logger.Debug().Str("event_id", event.ID).Str("class_name", event.ClassName).Str("exam_type", event.ExamType).Msg("result event published")
	return nil
}
