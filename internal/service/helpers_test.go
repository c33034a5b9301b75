package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-results-api/internal/models"
	"github.com/noah-isme/gema-results-api/internal/repository"
	"github.com/noah-isme/gema-results-api/pkg/push"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Mark{}, &models.Assignment{}, &models.Contact{}, &models.StudentGuardian{}, &models.PushDelivery{}))
	return db
}

type recordingGateway struct {
	mu       sync.Mutex
	messages []push.Message
	failFor  map[string]error
}

func (g *recordingGateway) Send(ctx context.Context, msg push.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, msg)
	if err, ok := g.failFor[msg.Token]; ok {
		return err
	}
	return nil
}

func (g *recordingGateway) sent() []push.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]push.Message(nil), g.messages...)
}

// flakyMarkRepo fails status updates for chosen ids and can simulate a concurrent
// writer publishing a row just before the batch runs.
type flakyMarkRepo struct {
	repository.MarkRepository
	db            *gorm.DB
	failIDs       map[string]bool
	racePublishID string
}

func (r *flakyMarkRepo) BatchUpdateStatus(ctx context.Context, ids []string, from []models.MarkStatus, to models.MarkStatus) ([]repository.ItemResult, error) {
	if r.racePublishID != "" {
		if err := r.db.Model(&models.Mark{}).Where("id = ?", r.racePublishID).Update("status", models.MarkStatusPublished).Error; err != nil {
			return nil, err
		}
		r.racePublishID = ""
	}

	var pass []string
	results := make([]repository.ItemResult, 0, len(ids))
	for _, id := range ids {
		if r.failIDs[id] {
			results = append(results, repository.ItemResult{ID: id, Err: errors.New("store unavailable")})
			continue
		}
		pass = append(pass, id)
	}

	passed, err := r.MarkRepository.BatchUpdateStatus(ctx, pass, from, to)
	return append(passed, results...), err
}

type testEnv struct {
	db          *gorm.DB
	marks       repository.MarkRepository
	assignments repository.AssignmentRepository
	contacts    repository.ContactRepository
	deliveries  repository.PushDeliveryRepository
	gateway     *recordingGateway
	validate    *validator.Validate
	now         time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupServiceDB(t)
	return &testEnv{
		db:          db,
		marks:       repository.NewMarkRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		contacts:    repository.NewContactRepository(db),
		deliveries:  repository.NewPushDeliveryRepository(db),
		gateway:     &recordingGateway{},
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) fanout() NotificationFanout {
	return NewNotificationFanout(e.contacts, e.deliveries, e.gateway, testLogger())
}

func (e *testEnv) engine(policy QuorumPolicy, marks repository.MarkRepository, opts ...EngineOption) PublicationEngine {
	if marks == nil {
		marks = e.marks
	}
	opts = append([]EngineOption{WithClock(func() time.Time { return e.now })}, opts...)
	return NewPublicationEngine(
		NewQuorumEvaluator(marks, e.assignments, policy, testLogger()),
		NewPublicationService(marks, policy, testLogger()),
		e.fanout(),
		NewLocalCycleLock(),
		testLogger(),
		opts...,
	)
}

func (e *testEnv) assign(t *testing.T, className string, subjects ...string) {
	t.Helper()
	for _, subject := range subjects {
		require.NoError(t, e.assignments.Create(context.Background(), &models.Assignment{ClassName: className, Subject: subject, TeacherID: "teacher-1"}))
	}
}

func (e *testEnv) guardian(t *testing.T, studentID, contactID, token string) {
	t.Helper()
	ctx := context.Background()
	contact := models.Contact{ID: contactID, Name: contactID, Role: models.ContactRoleParent}
	if token != "" {
		contact.DeviceToken = &token
	}
	require.NoError(t, e.db.Where("id = ?", contactID).FirstOrCreate(&contact).Error)
	require.NoError(t, e.contacts.LinkGuardian(ctx, studentID, contactID))
}

func (e *testEnv) mark(t *testing.T, mark models.Mark) models.Mark {
	t.Helper()
	if mark.ExamType == "" {
		mark.ExamType = "Unit Test"
	}
	if mark.ClassName == "" {
		mark.ClassName = "Class-5"
	}
	if mark.Status == "" {
		mark.Status = models.MarkStatusSubmitted
	}
	if mark.MaxScore == 0 {
		mark.MaxScore = 100
	}
	if mark.SubmittingTeacherID == "" {
		mark.SubmittingTeacherID = "teacher-1"
	}
	require.NoError(t, e.marks.Create(context.Background(), &mark))
	return mark
}

func (e *testEnv) status(t *testing.T, id string) models.MarkStatus {
	t.Helper()
	mark, err := e.marks.GetByID(context.Background(), id)
	require.NoError(t, err)
	return mark.Status
}

func timePtr(value time.Time) *time.Time {
	return &value
}
