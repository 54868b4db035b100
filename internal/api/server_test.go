package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disktools/diskwatch/internal/config"
	"github.com/disktools/diskwatch/internal/models"
)

func testService(t *testing.T) *Service {
	t.Helper()
	return NewService(&config.Settings{Version: "0.1.0"})
}

func testReport() *models.Report {
	passed := false
	return &models.Report{
		GeneratedAt: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		Devices: []models.DeviceRecord{
			{Device: "/dev/sda", Status: models.StatusOK, SmartPassed: &passed, Smart: models.AbsentSection()},
			{DriveID: "wdc-drive", Status: models.StatusUnavailable, Error: "no mounted block device", Smart: models.AbsentSection()},
		},
		Breaches: []models.MetricBreach{
			{Device: "/dev/sda", Metric: "smart_status.passed", Observed: false, Severity: models.SeverityCritical, Message: "/dev/sda FAILED"},
		},
	}
}

func doRequest(t *testing.T, s *Service, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthDegradedBeforeFirstRun(t *testing.T) {
	s := testService(t)

	rec := doRequest(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Nil(t, resp.LastRun)
}

func TestHealthAfterRun(t *testing.T) {
	s := testService(t)
	s.SetReport(testReport())

	rec := doRequest(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 2, resp.Devices)
	require.NotNil(t, resp.LastRun)
}

func TestReportJSONNotReady(t *testing.T) {
	rec := doRequest(t, testService(t), "/api/v1/report")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReportJSON(t *testing.T) {
	s := testService(t)
	s.SetReport(testReport())

	rec := doRequest(t, s, "/api/v1/report")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Devices, 2)
	assert.Len(t, got.Breaches, 1)
}

func TestReportHTML(t *testing.T) {
	s := testService(t)
	s.SetReport(testReport())

	rec := doRequest(t, s, "/report")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/dev/sda")
}

func TestDevices(t *testing.T) {
	s := testService(t)
	s.SetReport(testReport())

	rec := doRequest(t, s, "/api/v1/devices")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestDeviceLookup(t *testing.T) {
	s := testService(t)
	s.SetReport(testReport())

	// Lookup by bare device name and by drive id both resolve.
	rec := doRequest(t, s, "/api/v1/devices/sda")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, "/api/v1/devices/wdc-drive")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, "/api/v1/devices/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBreaches(t *testing.T) {
	s := testService(t)
	s.SetReport(testReport())

	rec := doRequest(t, s, "/api/v1/breaches")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count    int `json:"count"`
		Critical int `json:"critical"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 1, resp.Critical)
}
