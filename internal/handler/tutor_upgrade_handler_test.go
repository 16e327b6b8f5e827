package handler_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func uploadRequest(t *testing.T, path string, user models.User, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, writer.WriteField("note", "no file attached"))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(user.ID), 10))
	req.Header.Set("X-Test-Role", user.Role)
	return req
}

func TestTutorUpgradeEligibility(t *testing.T) {
	app := setupApp(t, nil)
	eligible := app.seedEligibleTutor(t, "Nadia Ross")
	novice := app.seedUser(t, models.User{FullName: "Omar", Role: models.RoleTutor, CompletedSessions: 12, Rating: 4.9, ProfileCompletion: 95})

	result := app.call(t, http.MethodGet, "/api/v1/tutor/upgrade/eligibility", nil, eligible)
	require.Equal(t, http.StatusOK, result.status)
	require.Equal(t, "eligibility evaluated", result.body["message"])
	requireSchema(t, "eligibility.schema.json", result.raw)
	require.Equal(t, true, result.data()["is_eligible"])
	require.Empty(t, result.data()["missing_requirements"])

	result = app.call(t, http.MethodGet, "/api/v1/tutor/upgrade/eligibility", nil, novice)
	require.Equal(t, http.StatusOK, result.status)
	requireSchema(t, "eligibility.schema.json", result.raw)
	require.Equal(t, false, result.data()["is_eligible"])
	missing, ok := result.data()["missing_requirements"].([]interface{})
	require.True(t, ok)
	require.Len(t, missing, 1)
	require.Contains(t, missing[0], "88 more")
}

func TestTutorUpgradeSubmitAndRead(t *testing.T) {
	app := setupApp(t, nil)
	tutor := app.seedEligibleTutor(t, "Priya Shah")
	other := app.seedEligibleTutor(t, "Quinn Adams")

	result := app.call(t, http.MethodPost, "/api/v1/tutor/upgrade/applications", submitPayload(), tutor)
	require.Equal(t, http.StatusCreated, result.status)
	require.Equal(t, "upgrade application submitted", result.body["message"])
	requireSchema(t, "upgrade_application.schema.json", result.raw)
	require.Equal(t, "pending", result.data()["status"])
	id := uint(result.data()["id"].(float64))

	duplicate := app.call(t, http.MethodPost, "/api/v1/tutor/upgrade/applications", submitPayload(), tutor)
	require.Equal(t, http.StatusBadRequest, duplicate.status)
	requireSchema(t, "envelope_error.schema.json", duplicate.raw)
	require.Contains(t, duplicate.detailFields(), "application")

	list := app.call(t, http.MethodGet, "/api/v1/tutor/upgrade/applications", nil, tutor)
	require.Equal(t, http.StatusOK, list.status)
	items, ok := list.body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)

	path := fmt.Sprintf("/api/v1/tutor/upgrade/applications/%d", id)
	own := app.call(t, http.MethodGet, path, nil, tutor)
	require.Equal(t, http.StatusOK, own.status)
	requireSchema(t, "upgrade_application.schema.json", own.raw)

	foreign := app.call(t, http.MethodGet, path, nil, other)
	require.Equal(t, http.StatusNotFound, foreign.status)
	requireSchema(t, "envelope_error.schema.json", foreign.raw)

	invalid := app.call(t, http.MethodGet, "/api/v1/tutor/upgrade/applications/abc", nil, tutor)
	require.Equal(t, http.StatusBadRequest, invalid.status)
	require.Equal(t, "invalid identifier", invalid.body["message"])
}

func TestTutorUpgradeSubmitReportsEveryField(t *testing.T) {
	app := setupApp(t, nil)
	tutor := app.seedEligibleTutor(t, "Rosa Lin")

	result := app.call(t, http.MethodPost, "/api/v1/tutor/upgrade/applications", map[string]interface{}{
		"subject_expertise": []string{},
		"qualifications":    map[string]interface{}{},
		"motivation":        "   ",
	}, tutor)
	require.Equal(t, http.StatusBadRequest, result.status)
	require.Equal(t, "validation failed", result.body["message"])
	requireSchema(t, "envelope_error.schema.json", result.raw)

	fields := result.detailFields()
	for _, field := range []string{
		"subject_expertise",
		"qualifications.college_degree",
		"qualifications.teaching_experience",
		"motivation",
	} {
		require.Contains(t, fields, field)
	}
}

func TestTutorUpgradeSubmitRejectsIneligibleTutor(t *testing.T) {
	app := setupApp(t, nil)
	tutor := app.seedUser(t, models.User{FullName: "Sam", Role: models.RoleTutor, CompletedSessions: 100, Rating: 4.1, ProfileCompletion: 92})

	result := app.call(t, http.MethodPost, "/api/v1/tutor/upgrade/applications", submitPayload(), tutor)
	require.Equal(t, http.StatusBadRequest, result.status)
	require.Contains(t, result.detailFields(), "eligibility")
}

func TestTutorUpgradeSubmitRejectsMalformedBody(t *testing.T) {
	app := setupApp(t, nil)
	tutor := app.seedEligibleTutor(t, "Tom")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tutor/upgrade/applications", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(tutor.ID), 10))
	req.Header.Set("X-Test-Role", tutor.Role)

	result := app.send(t, req)
	require.Equal(t, http.StatusBadRequest, result.status)
	require.Equal(t, "invalid request body", result.body["message"])
}

func TestTutorUpgradeAttachDocument(t *testing.T) {
	app := setupApp(t, nil)
	tutor := app.seedEligibleTutor(t, "Uma Cole")

	created := app.call(t, http.MethodPost, "/api/v1/tutor/upgrade/applications", submitPayload(), tutor)
	require.Equal(t, http.StatusCreated, created.status)
	path := fmt.Sprintf("/api/v1/tutor/upgrade/applications/%d/documents", uint(created.data()["id"].(float64)))

	result := app.send(t, uploadRequest(t, path, tutor, "file", "degree.png", pngHeader))
	require.Equal(t, http.StatusCreated, result.status)
	require.Equal(t, "document attached", result.body["message"])
	require.Equal(t, "degree.png", result.data()["original_name"])
	require.Equal(t, "image/png", result.data()["mime_type"])
	require.Contains(t, result.data()["url"], "https://files.test/")

	missing := app.send(t, uploadRequest(t, path, tutor, "", "", nil))
	require.Equal(t, http.StatusBadRequest, missing.status)
	require.Equal(t, []string{"file"}, missing.detailFields())

	rejected := app.send(t, uploadRequest(t, path, tutor, "file", "notes.txt", []byte("plain text notes")))
	require.Equal(t, http.StatusBadRequest, rejected.status)
	require.Equal(t, []string{"file"}, rejected.detailFields())

	detail := app.call(t, http.MethodGet, fmt.Sprintf("/api/v1/tutor/upgrade/applications/%d", uint(created.data()["id"].(float64))), nil, tutor)
	documents, ok := detail.data()["documents"].([]interface{})
	require.True(t, ok)
	require.Len(t, documents, 1)
}

func TestTutorUpgradeRoutesRequireTutorRole(t *testing.T) {
	app := setupApp(t, nil)
	teacher := app.seedUser(t, models.User{FullName: "Vera", Role: models.RoleTeacher})

	result := app.call(t, http.MethodGet, "/api/v1/tutor/upgrade/eligibility", nil, teacher)
	require.Equal(t, http.StatusForbidden, result.status)
	require.Equal(t, "insufficient permissions", result.body["message"])

	anonymous := app.call(t, http.MethodGet, "/api/v1/tutor/upgrade/eligibility", nil, models.User{})
	require.Equal(t, http.StatusUnauthorized, anonymous.status)
}
