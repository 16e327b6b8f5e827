package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.Migratable()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func seedUser(t *testing.T, db *gorm.DB, user models.User) models.User {
	t.Helper()
	if user.Email == "" {
		user.Email = uuid.NewString() + "@example.com"
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedEligibleTutor(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	return seedUser(t, db, models.User{
		FullName:          name,
		Role:              models.RoleTutor,
		CompletedSessions: 100,
		Rating:            4.6,
		ProfileCompletion: 92,
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) snapshot() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return "memory://" + name, nil
}

type upgradeFixture struct {
	db           *gorm.DB
	applications repository.UpgradeApplicationRepository
	activity     ActivityService
	events       *recordingPublisher
	storage      *memoryStorage
	workflow     UpgradeApplicationService
	queue        UpgradeReviewQueueService
}

func newUpgradeFixture(t *testing.T) *upgradeFixture {
	t.Helper()

	db := setupServiceDB(t)
	applications := repository.NewUpgradeApplicationRepository(db)
	activity := NewActivityService(repository.NewActivityLogRepository(db), testLogger())
	events := &recordingPublisher{}
	storage := newMemoryStorage()

	workflow := NewUpgradeApplicationService(UpgradeApplicationDeps{
		Applications: applications,
		Documents:    repository.NewApplicationDocumentRepository(db),
		Metrics:      repository.NewTutorMetricsRepository(db),
		Users:        repository.NewUserRepository(db),
		Storage:      storage,
		Activity:     activity,
		Events:       events,
		Requirements: models.DefaultEligibilityRequirements(),
		MaxUploadMB:  1,
	}, NewValidator(), testLogger())

	queue := NewUpgradeReviewQueueService(applications, workflow, activity, NewValidator(), testLogger())

	return &upgradeFixture{
		db:           db,
		applications: applications,
		activity:     activity,
		events:       events,
		storage:      storage,
		workflow:     workflow,
		queue:        queue,
	}
}

func validSubmitRequest() dto.UpgradeApplicationSubmitRequest {
	return dto.UpgradeApplicationSubmitRequest{
		SubjectExpertise: []string{"Algebra", "Calculus"},
		Qualifications: dto.QualificationsPayload{
			CollegeDegree:      "BSc Mathematics",
			TeachingExperience: "Three years of private tutoring",
			StandardizedTests:  []string{"SAT Math"},
		},
		Motivation: "I want to mentor students preparing for AP exams",
	}
}

func approveRequest(notes string) dto.UpgradeReviewRequest {
	return dto.UpgradeReviewRequest{Status: "approved", ReviewNotes: notes}
}

func strPtr(value string) *string {
	return &value
}

func ptrUint(v uint) *uint {
	return &v
}

// formFile builds a multipart file header the way fiber hands it to handlers.
func formFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(int64(len(content)) + 1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
