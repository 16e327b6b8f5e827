package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/config"
	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/router"
	"github.com/noah-isme/tutorhub-api/internal/service"
)

type testApp struct {
	app    *fiber.App
	db     *gorm.DB
	broker *service.EventBroker
}

type discardStorage struct{}

func (discardStorage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	return "https://files.test/" + name, nil
}

// headerAuth stands in for JWT validation and trusts the test identity headers.
func headerAuth(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Get("X-Test-User"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "missing token"})
	}
	c.Locals("user_id", uint(id))
	c.Locals("user_role", c.Get("X-Test-Role"))
	return c.Next()
}

func setupApp(t *testing.T, probes map[string]handler.HealthProbe) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.Migratable()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zerolog.Nop()
	validate := service.NewValidator()
	requirements := models.DefaultEligibilityRequirements()
	broker := service.NewEventBroker(logger)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	users := repository.NewUserRepository(db)
	applications := repository.NewUpgradeApplicationRepository(db)
	metrics := repository.NewTutorMetricsRepository(db)

	eligibility := service.NewEligibilityService(metrics, requirements, nil, 0, logger)
	workflow := service.NewUpgradeApplicationService(service.UpgradeApplicationDeps{
		Applications: applications,
		Documents:    repository.NewApplicationDocumentRepository(db),
		Metrics:      metrics,
		Users:        users,
		Storage:      discardStorage{},
		Activity:     activity,
		Events:       broker,
		Requirements: requirements,
		MaxUploadMB:  2,
	}, validate, logger)
	queue := service.NewUpgradeReviewQueueService(applications, workflow, activity, validate, logger)
	assignments := service.NewTutorAssignmentService(
		repository.NewTutorAssignmentRepository(db),
		repository.NewStudentReferralRepository(db),
		users,
		activity,
		broker,
		validate,
		logger,
	)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "tutorhub-api", AppEnv: "test"}, router.Dependencies{
		TutorUpgradeHandler:    handler.NewTutorUpgradeHandler(eligibility, workflow, logger),
		AdminUpgradeHandler:    handler.NewAdminUpgradeHandler(queue, workflow, logger),
		UpgradeEventsHandler:   handler.NewUpgradeEventsHandler(broker, logger),
		TutorAssignmentHandler: handler.NewTutorAssignmentHandler(assignments, logger),
		HealthProbes:           probes,
		JWTMiddleware:          headerAuth,
	})

	return &testApp{app: app, db: db, broker: broker}
}

func (a *testApp) seedUser(t *testing.T, user models.User) models.User {
	t.Helper()
	if user.Email == "" {
		user.Email = uuid.NewString() + "@example.com"
	}
	require.NoError(t, a.db.Create(&user).Error)
	return user
}

func (a *testApp) seedEligibleTutor(t *testing.T, name string) models.User {
	t.Helper()
	return a.seedUser(t, models.User{
		FullName:          name,
		Role:              models.RoleTutor,
		CompletedSessions: 100,
		Rating:            4.6,
		ProfileCompletion: 92,
	})
}

type apiResult struct {
	status int
	header http.Header
	raw    []byte
	body   map[string]interface{}
}

func (r apiResult) data() map[string]interface{} {
	data, _ := r.body["data"].(map[string]interface{})
	return data
}

func (r apiResult) detailFields() []string {
	details, _ := r.body["details"].([]interface{})
	fields := make([]string, 0, len(details))
	for _, item := range details {
		if entry, ok := item.(map[string]interface{}); ok {
			field, _ := entry["field"].(string)
			fields = append(fields, field)
		}
	}
	return fields
}

func (a *testApp) call(t *testing.T, method, path string, payload interface{}, user models.User) apiResult {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user.ID != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(user.ID), 10))
		req.Header.Set("X-Test-Role", user.Role)
	}

	return a.send(t, req)
}

func (a *testApp) send(t *testing.T, req *http.Request) apiResult {
	t.Helper()

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	result := apiResult{status: resp.StatusCode, header: resp.Header, raw: raw}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &result.body))
	}
	return result
}

func requireSchema(t *testing.T, name string, raw []byte) {
	t.Helper()

	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + schemaPath)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NoError(t, schema.Validate(payload))
}

func submitPayload() map[string]interface{} {
	return map[string]interface{}{
		"subject_expertise": []string{"Algebra", "Statistics"},
		"qualifications": map[string]interface{}{
			"college_degree":      "BSc Mathematics",
			"teaching_experience": "Four years at a learning center",
			"certifications":      []string{"Certified Tutor Level II"},
		},
		"motivation": "I want to take on AP level students",
	}
}
