package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
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

func createUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()
	user := models.User{FullName: name, Email: uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestUpgradeApplicationTransitionIsConditional(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUpgradeApplicationRepository(db)
	tutor := createUser(t, db, "Tia", models.RoleTutor)
	ctx := context.Background()

	application := models.UpgradeApplication{
		TutorID:            tutor.ID,
		CollegeDegree:      "BA",
		TeachingExperience: "2 years",
		Motivation:         "growth",
		Status:             models.ApplicationStatusPending,
		ApplicationDate:    time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, &application))

	updated, err := repo.Transition(ctx, application.ID, models.ApplicationStatusPending, map[string]interface{}{
		"status":       models.ApplicationStatusApproved,
		"review_notes": "ok",
	})
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusApproved, updated.Status)
	require.Equal(t, "Tia", updated.Tutor.FullName)

	_, err = repo.Transition(ctx, application.ID, models.ApplicationStatusPending, map[string]interface{}{
		"status": models.ApplicationStatusRejected,
	})
	require.True(t, errors.Is(err, ErrStaleTransition))

	stored, err := repo.GetByID(ctx, application.ID)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusApproved, stored.Status)
	require.Equal(t, "ok", *stored.ReviewNotes)

	_, err = repo.GetByID(ctx, 12345)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func pendingApplication(tutorID uint) models.UpgradeApplication {
	return models.UpgradeApplication{
		TutorID:            tutorID,
		SubjectExpertise:   []string{"Biology"},
		CollegeDegree:      "BA",
		TeachingExperience: "2 years",
		Motivation:         "growth",
		Status:             models.ApplicationStatusPending,
		ApplicationDate:    time.Now().UTC(),
	}
}

func TestUpgradeApplicationCreateAllowsOnePendingPerTutor(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUpgradeApplicationRepository(db)
	tutor := createUser(t, db, "Uma", models.RoleTutor)
	other := createUser(t, db, "Vic", models.RoleTutor)
	ctx := context.Background()

	first := pendingApplication(tutor.ID)
	require.NoError(t, repo.Create(ctx, &first))

	second := pendingApplication(tutor.ID)
	require.ErrorIs(t, repo.Create(ctx, &second), ErrPendingApplicationExists)

	otherPending := pendingApplication(other.ID)
	require.NoError(t, repo.Create(ctx, &otherPending))

	_, err := repo.Transition(ctx, first.ID, models.ApplicationStatusPending, map[string]interface{}{
		"status": models.ApplicationStatusRejected,
	})
	require.NoError(t, err)

	again := pendingApplication(tutor.ID)
	require.NoError(t, repo.Create(ctx, &again))

	rejected := pendingApplication(tutor.ID)
	rejected.Status = models.ApplicationStatusRejected
	require.NoError(t, repo.Create(ctx, &rejected))
}

func TestUpgradeApplicationListSearchIsLiteral(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUpgradeApplicationRepository(db)
	ctx := context.Background()

	for _, name := range []string{"Alice Stone", "Bob_Ray"} {
		application := pendingApplication(createUser(t, db, name, models.RoleTutor).ID)
		require.NoError(t, repo.Create(ctx, &application))
	}

	cases := map[string]int{
		"%":     0,
		"_":     1,
		"b_r":   1,
		"bob%":  0,
		`\`:    0,
		"alice": 1,
		"":      2,
	}
	for search, expected := range cases {
		items, total, err := repo.List(ctx, UpgradeApplicationFilter{Search: search})
		require.NoError(t, err)
		require.Len(t, items, expected, "search %q", search)
		require.EqualValues(t, expected, total, "search %q", search)
	}
}

func TestTutorAssignmentTransitionIsConditional(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTutorAssignmentRepository(db)
	teacher := createUser(t, db, "Teacher", models.RoleTeacher)
	tutor := createUser(t, db, "Tutor", models.RoleTutor)
	ctx := context.Background()

	referral := models.StudentReferral{TeacherID: teacher.ID, StudentName: "Kim"}
	require.NoError(t, NewStudentReferralRepository(db).Create(ctx, &referral))

	assignment := models.TutorAssignment{
		TeacherID:              teacher.ID,
		StudentReferralID:      referral.ID,
		ProviderID:             tutor.ID,
		AssignmentType:         models.AssignmentTypeTutoring,
		Subjects:               []string{"Physics"},
		Frequency:              models.FrequencyWeekly,
		SessionDurationMinutes: 45,
		StartDate:              time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:                time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Status:                 models.AssignmentStatusPending,
		AssignedAt:             time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, &assignment))

	accepted, err := repo.Transition(ctx, assignment.ID, models.AssignmentStatusPending, map[string]interface{}{
		"status": models.AssignmentStatusAccepted,
	})
	require.NoError(t, err)
	require.Equal(t, models.AssignmentStatusAccepted, accepted.Status)
	require.Equal(t, "Kim", accepted.StudentReferral.StudentName)
	require.Equal(t, []string{"Physics"}, []string(accepted.Subjects))

	_, err = repo.Transition(ctx, assignment.ID, models.AssignmentStatusPending, map[string]interface{}{
		"status": models.AssignmentStatusDeclined,
	})
	require.True(t, errors.Is(err, ErrStaleTransition))

	byProvider, err := repo.ListByProvider(ctx, tutor.ID)
	require.NoError(t, err)
	require.Len(t, byProvider, 1)

	byTeacher, err := repo.ListByTeacher(ctx, tutor.ID)
	require.NoError(t, err)
	require.Empty(t, byTeacher)
}

func TestTutorMetricsSnapshot(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTutorMetricsRepository(db)
	ctx := context.Background()

	tutor := models.User{FullName: "Sky", Email: "sky@example.com", Role: models.RoleTutor, CompletedSessions: 120, Rating: 4.7, ProfileCompletion: 88}
	require.NoError(t, db.Create(&tutor).Error)

	snapshot, err := repo.GetSnapshot(ctx, tutor.ID)
	require.NoError(t, err)
	require.Equal(t, 120, snapshot.CompletedSessions)
	require.InDelta(t, 4.7, snapshot.AverageRating, 0.0001)
	require.Equal(t, 88, snapshot.ProfileCompletion)
	require.False(t, snapshot.HasActiveApplication)
	require.Nil(t, snapshot.LastRejectionDate)

	older := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	for _, reviewed := range []time.Time{older, newer} {
		reviewedAt := reviewed
		require.NoError(t, NewUpgradeApplicationRepository(db).Create(ctx, &models.UpgradeApplication{
			TutorID:            tutor.ID,
			CollegeDegree:      "BA",
			TeachingExperience: "x",
			Motivation:         "y",
			Status:             models.ApplicationStatusRejected,
			ApplicationDate:    reviewed.Add(-24 * time.Hour),
			ReviewedDate:       &reviewedAt,
		}))
	}
	require.NoError(t, NewUpgradeApplicationRepository(db).Create(ctx, &models.UpgradeApplication{
		TutorID:            tutor.ID,
		CollegeDegree:      "BA",
		TeachingExperience: "x",
		Motivation:         "y",
		Status:             models.ApplicationStatusPending,
		ApplicationDate:    time.Now().UTC(),
	}))

	snapshot, err = repo.GetSnapshot(ctx, tutor.ID)
	require.NoError(t, err)
	require.True(t, snapshot.HasActiveApplication)
	require.NotNil(t, snapshot.LastRejectionDate)
	require.True(t, snapshot.LastRejectionDate.Equal(newer))

	counselor := createUser(t, db, "Cal", models.RoleCounselor)
	_, err = repo.GetSnapshot(ctx, counselor.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestTutorMetricsSnapshotWithoutRejectionLogsNothing(t *testing.T) {
	db := setupTestDB(t)
	tutor := createUser(t, db, "Wes", models.RoleTutor)

	var logged bytes.Buffer
	quiet := db.Session(&gorm.Session{Logger: gormlogger.New(log.New(&logged, "", 0), gormlogger.Config{
		LogLevel: gormlogger.Warn,
	})})

	snapshot, err := NewTutorMetricsRepository(quiet).GetSnapshot(context.Background(), tutor.ID)
	require.NoError(t, err)
	require.Nil(t, snapshot.LastRejectionDate)
	require.Empty(t, logged.String())
}

func TestUserRepositoryProviders(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createUser(t, db, "Zed", models.RoleTutor)
	createUser(t, db, "Amy", models.RoleCounselor)
	createUser(t, db, "Ben", models.RoleStudent)

	providers, err := repo.ListProviders(ctx, "")
	require.NoError(t, err)
	require.Len(t, providers, 2)
	require.Equal(t, "Amy", providers[0].FullName)

	tutors, err := repo.ListProviders(ctx, " TUTOR ")
	require.NoError(t, err)
	require.Len(t, tutors, 1)

	require.NoError(t, repo.SetAdvanced(ctx, tutors[0].ID, true))
	promoted, err := repo.GetByID(ctx, tutors[0].ID)
	require.NoError(t, err)
	require.True(t, promoted.Advanced)

	require.True(t, errors.Is(repo.SetAdvanced(ctx, 999, true), gorm.ErrRecordNotFound))
}

func TestActivityLogRepositoryFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	one, two := uint(1), uint(2)
	for _, entry := range []models.ActivityLog{
		{ActorID: 5, ActorRole: "admin", Action: "upgrade_application.review", EntityType: "upgrade_application", EntityID: &one},
		{ActorID: 6, ActorRole: "tutor", Action: "assignment.accept", EntityType: "assignment", EntityID: &one},
		{ActorID: 5, ActorRole: "admin", Action: "upgrade_application.review", EntityType: "upgrade_application", EntityID: &two},
	} {
		item := entry
		require.NoError(t, repo.Create(ctx, &item))
	}

	entries, err := repo.List(ctx, ActivityLogFilter{EntityType: "upgrade_application", EntityID: &one})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	actor := uint(5)
	entries, err = repo.List(ctx, ActivityLogFilter{ActorID: &actor, Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, &one, entries[0].EntityID)
}
