package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-results-api/internal/models"
	"github.com/noah-isme/gema-results-api/internal/observability"
	"github.com/noah-isme/gema-results-api/internal/repository"
	"github.com/noah-isme/gema-results-api/pkg/push"
)

// Push payload types.
const (
	PushTypeResultPublished = "RESULT_PUBLISHED"
	PushTypeMarkApproved    = "MARK_APPROVED"
	PushTypeMarkRejected    = "MARK_REJECTED"
)

// FanoutReport summarises one fan-out.
type FanoutReport struct {
	Recipients int
	Sent       int
	Failed     int
}

// NotificationFanout sends push notifications for publication and override events.
type NotificationFanout interface {
	NotifyResultPublished(ctx context.Context, group models.Group, studentIDs []string) (FanoutReport, error)
	NotifyMarkDecision(ctx context.Context, mark models.Mark) (FanoutReport, error)
}

type notificationFanout struct {
	contacts   repository.ContactRepository
	deliveries repository.PushDeliveryRepository
	gateway    PushGateway
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewNotificationFanout constructs the fan-out. deliveries may be nil to skip the
// delivery history.
func NewNotificationFanout(contacts repository.ContactRepository, deliveries repository.PushDeliveryRepository, gateway PushGateway, logger zerolog.Logger) NotificationFanout {
	return &notificationFanout{
		contacts:   contacts,
		deliveries: deliveries,
		gateway:    gateway,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "notification_fanout").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-results-api/internal/service/fanout"),
	}
}

// NotifyResultPublished sends one push per (student, guardian token) pair, one after
// another. A failed send is logged and recorded and never stops the remaining sends.
func (f *notificationFanout) NotifyResultPublished(ctx context.Context, group models.Group, studentIDs []string) (FanoutReport, error) {
	ctx, span := f.tracer.Start(ctx, "fanout.result_published", trace.WithAttributes(
		attribute.String("group.class_name", group.ClassName),
		attribute.String("group.exam_type", group.ExamType),
		attribute.Int("fanout.students", len(studentIDs)),
	))
	defer span.End()

	var report FanoutReport
	if len(studentIDs) == 0 {
		return report, nil
	}

	tokens, err := f.contacts.ResolveGuardianTokens(ctx, studentIDs)
	if err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("resolve guardian tokens: %w", err)
	}

	title := f.clean("Results published")
	body := f.clean(fmt.Sprintf("%s results for %s are now available.", group.ExamType, group.ClassName))
	data := map[string]string{
		"type":      PushTypeResultPublished,
		"examType":  group.ExamType,
		"className": group.ClassName,
	}

	seen := make(map[string]struct{}, len(tokens))
	for _, recipient := range tokens {
		key := recipient.StudentID + "\x00" + recipient.Token
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		report.Recipients++

		if f.deliver(ctx, recipient.ContactID, recipient.StudentID, push.Message{
			Token: recipient.Token,
			Title: title,
			Body:  body,
			Data:  data,
		}) {
			report.Sent++
		} else {
			report.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("fanout.recipients", report.Recipients),
		attribute.Int("fanout.sent", report.Sent),
		attribute.Int("fanout.failed", report.Failed),
	)
	f.logger.Info().
		Str("group", group.String()).
		Int("recipients", report.Recipients).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Msg("result publication fan-out finished")

	return report, nil
}

// NotifyMarkDecision tells the submitting teacher about an approve or reject decision.
func (f *notificationFanout) NotifyMarkDecision(ctx context.Context, mark models.Mark) (FanoutReport, error) {
	ctx, span := f.tracer.Start(ctx, "fanout.mark_decision", trace.WithAttributes(
		attribute.String("mark.id", mark.ID),
		attribute.String("mark.status", string(mark.Status)),
	))
	defer span.End()

	var report FanoutReport
	teacher, err := f.contacts.FindByID(ctx, mark.SubmittingTeacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return report, nil
		}
		span.RecordError(err)
		return report, fmt.Errorf("load submitting teacher: %w", err)
	}

	token := teacher.PushToken()
	if token == "" {
		return report, nil
	}

	pushType := PushTypeMarkApproved
	verb := "approved"
	if mark.Status == models.MarkStatusRejected {
		pushType = PushTypeMarkRejected
		verb = "rejected"
	}

	report.Recipients = 1
	if f.deliver(ctx, teacher.ID, mark.StudentID, push.Message{
		Token: token,
		Title: f.clean("Mark " + verb),
		Body:  f.clean(fmt.Sprintf("Your %s %s mark for %s was %s.", mark.Subject, mark.ExamType, mark.ClassName, verb)),
		Data: map[string]string{
			"type":   pushType,
			"markId": mark.ID,
			"status": string(mark.Status),
		},
	}) {
		report.Sent = 1
	} else {
		report.Failed = 1
	}

	return report, nil
}

func (f *notificationFanout) deliver(ctx context.Context, contactID, studentID string, msg push.Message) bool {
	pushType := msg.Data["type"]
	sendErr := f.gateway.Send(ctx, msg)

	delivery := models.PushDelivery{
		ContactID:   contactID,
		StudentID:   studentID,
		TokenSuffix: push.MaskToken(msg.Token),
		Type:        pushType,
		Title:       msg.Title,
		Body:        msg.Body,
		Data:        toJSONMap(msg.Data),
		Status:      models.PushDeliveryStatusSent,
	}

	if sendErr != nil {
		delivery.Status = models.PushDeliveryStatusFailed
		delivery.Error = sendErr.Error()
		observability.PushSends().WithLabelValues(pushType, "failed").Inc()
		f.logger.Warn().
			Err(sendErr).
			Str("contact_id", contactID).
			Str("student_id", studentID).
			Str("token", delivery.TokenSuffix).
			Str("type", pushType).
			Msg("push send failed")
	} else {
		observability.PushSends().WithLabelValues(pushType, "sent").Inc()
	}

	if f.deliveries != nil {
		if err := f.deliveries.Create(ctx, &delivery); err != nil {
			f.logger.Warn().Err(err).Str("contact_id", contactID).Msg("failed to record push delivery")
		}
	}

	return sendErr == nil
}

func (f *notificationFanout) clean(value string) string {
	return strings.TrimSpace(f.sanitizer.Sanitize(value))
}

func toJSONMap(values map[string]string) datatypes.JSONMap {
	result := make(datatypes.JSONMap, len(values))
	for key, value := range values {
		result[key] = value
	}
	return result
}
