package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan-session-service/config"
	"scan-session-service/middleware"
	"scan-session-service/models"
	"scan-session-service/session"
)

// stubDetector satisfies the detector contract without a sidecar.
type stubDetector struct {
	result models.DetectionResult
}

func (d stubDetector) Detect(ctx context.Context, imageBytes []byte) models.DetectionResult {
	return d.result
}

func testRouter(t *testing.T) (*gin.Engine, *session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		MaxFrameBytes:      1024 * 1024,
		FrameLogInterval:   20,
		InternalAdminToken: "test-secret",
	}
	store := session.NewStore()
	h := NewHandlers(cfg, store, stubDetector{}, nil, nil)

	router := gin.New()
	router.GET("/ws/scan", h.ScanStream)
	api := router.Group("/api/v1/scan")
	{
		api.GET("/session/:id", h.GetSession)
		api.POST("/session/:id/finalize", h.FinalizeSession)
		api.GET("/session/:id/retrieve", h.RetrieveSession)
	}
	internal := router.Group("/internal")
	internal.Use(middleware.InternalAdminToken(cfg.InternalAdminToken))
	{
		internal.GET("/sessions", h.ActiveSessions)
	}
	router.GET("/health", h.HealthCheck)

	return router, store
}

func seedSession(t *testing.T, store *session.Store, frames int) string {
	t.Helper()
	id, err := store.Create("")
	require.NoError(t, err)

	for i := 0; i < frames; i++ {
		result := models.DetectionResult{
			Success:   true,
			Objects:   []models.DetectedObject{{Class: "bed", Confidence: 0.9}},
			Amenities: []string{"bedroom"},
			RoomType:  "bedroom",
		}
		_, err := store.AppendFrame(id, result, "", false)
		require.NoError(t, err)
	}
	return id
}

func doRequest(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetSessionNotFound(t *testing.T) {
	router, _ := testRouter(t)

	w := doRequest(router, "GET", "/api/v1/scan/session/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSessionReturnsView(t *testing.T) {
	router, store := testRouter(t)
	id := seedSession(t, store, 3)

	w := doRequest(router, "GET", "/api/v1/scan/session/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool               `json:"success"`
		Data    models.SessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, id, body.Data.SessionID)
	assert.Equal(t, 3, body.Data.FrameCount)
	assert.Equal(t, []string{"bedroom"}, body.Data.Amenities)
}

func TestFinalizeKeepsSession(t *testing.T) {
	router, store := testRouter(t)
	id := seedSession(t, store, 2)

	w := doRequest(router, "POST", "/api/v1/scan/session/"+id+"/finalize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The session survives finalize for a later decoupled retrieval.
	w = doRequest(router, "POST", "/api/v1/scan/session/"+id+"/finalize", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.Len())
}

func TestFinalizeNotFound(t *testing.T) {
	router, _ := testRouter(t)

	w := doRequest(router, "POST", "/api/v1/scan/session/unknown/finalize", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRetrieveConsumesSession(t *testing.T) {
	router, store := testRouter(t)
	id := seedSession(t, store, 2)

	w := doRequest(router, "GET", "/api/v1/scan/session/"+id+"/retrieve", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                 `json:"success"`
		Data    models.FinalizedScan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Data.Summary.TotalFramesProcessed)
	assert.Equal(t, "Entire apartment", body.Data.Summary.PropertyType)

	// One-shot: the session is gone afterwards.
	assert.Equal(t, 0, store.Len())
	w = doRequest(router, "GET", "/api/v1/scan/session/"+id+"/retrieve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActiveSessionsRequiresToken(t *testing.T) {
	router, store := testRouter(t)
	seedSession(t, store, 1)

	w := doRequest(router, "GET", "/internal/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, "GET", "/internal/sessions", map[string]string{"X-Internal-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, "GET", "/internal/sessions", map[string]string{"X-Internal-Admin-Token": "test-secret"})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count    int                   `json:"count"`
		Sessions []*models.SessionView `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestHealthCheck(t *testing.T) {
	router, _ := testRouter(t)

	w := doRequest(router, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "scan-session-service", body["service"])

	_, err := time.Parse(time.RFC3339, body["time"].(string))
	assert.NoError(t, err)
}
