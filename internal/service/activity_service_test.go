package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
	err     error
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	if m.err != nil {
		return m.err
	}
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, error) {
	result := make([]models.ActivityLog, 0, len(m.entries))
	for _, entry := range m.entries {
		if filter.EntityType != "" && entry.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != nil && (entry.EntityID == nil || *entry.EntityID != *filter.EntityID) {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func TestActivityServiceRecordMasksSensitiveMetadata(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	entry, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    1,
		ActorRole:  "Admin",
		Action:     "Upgrade_Application.Review",
		EntityType: EntityUpgradeApplication,
		EntityID:   ptrUint(5),
		Metadata: map[string]interface{}{
			"tutor_email":  "tutor@example.com",
			"access_token": "abc",
			"status":       "approved",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["tutor_email"])
	require.Equal(t, "***", entry.Metadata["access_token"])
	require.Equal(t, "approved", entry.Metadata["status"])
	require.Equal(t, "admin", entry.ActorRole)
	require.Equal(t, "upgrade_application.review", entry.Action)
	require.Equal(t, uint(1), entry.ActorID)
}

func TestActivityServiceRecordDefaultsRoleAndCorrelation(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())

	ctx := middleware.ContextWithCorrelation(context.Background(), "req-42")
	_, err := svc.Record(ctx, ActivityEntry{Action: "assignment.create", EntityType: EntityAssignment})
	require.NoError(t, err)

	require.Len(t, repo.entries, 1)
	require.Equal(t, "system", repo.entries[0].ActorRole)
	require.Equal(t, "req-42", repo.entries[0].CorrelationID)
}

func TestActivityServiceRecordRequiresActionAndEntity(t *testing.T) {
	svc := NewActivityService(&memoryActivityRepo{}, testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: EntityAssignment})
	require.Error(t, err)

	_, err = svc.Record(context.Background(), ActivityEntry{Action: "assignment.create"})
	require.Error(t, err)
}

func TestActivityServiceHistoryFiltersByEntity(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testLogger())
	ctx := context.Background()

	for _, id := range []uint{1, 2, 1} {
		_, err := svc.Record(ctx, ActivityEntry{
			ActorID:    9,
			ActorRole:  models.RoleAdmin,
			Action:     "upgrade_application.review",
			EntityType: EntityUpgradeApplication,
			EntityID:   ptrUint(id),
		})
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, EntityUpgradeApplication, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, item := range history {
		require.Equal(t, uint(1), *item.EntityID)
	}
}

func TestRecordActivitySwallowsFailures(t *testing.T) {
	svc := NewActivityService(&memoryActivityRepo{err: errors.New("disk full")}, testLogger())

	require.NotPanics(t, func() {
		recordActivity(context.Background(), svc, zerolog.Nop(), ActivityEntry{Action: "x", EntityType: "y"})
		recordActivity(context.Background(), nil, zerolog.Nop(), ActivityEntry{Action: "x", EntityType: "y"})
	})
}
