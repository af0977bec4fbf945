package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan-session-service/config"
	"scan-session-service/models"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestDetector(url string) *RemoteDetector {
	return NewRemoteDetector(&config.Config{
		DetectorURL:        url,
		DetectorConfidence: 0.45,
		DetectorTimeout:    2 * time.Second,
	})
}

func TestDetectFiltersLowConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		json.NewEncoder(w).Encode(inferenceResponse{Objects: []models.DetectedObject{
			{Class: "bed", Confidence: 0.92, BBox: [4]int{0, 0, 100, 100}},
			{Class: "chair", Confidence: 0.30, BBox: [4]int{10, 10, 50, 50}},
		}})
	}))
	defer server.Close()

	result := newTestDetector(server.URL).Detect(context.Background(), tinyPNG(t))

	assert.True(t, result.Success)
	require.Len(t, result.Objects, 1)
	assert.Equal(t, "bed", result.Objects[0].Class)
	assert.Equal(t, "bedroom", result.RoomType)
}

func TestDetectRejectsUndecodableImage(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	result := newTestDetector(server.URL).Detect(context.Background(), []byte("definitely not an image"))

	assert.False(t, result.Success)
	assert.Equal(t, "invalid image data", result.Error)
	assert.Empty(t, result.Objects)
	assert.False(t, called, "undecodable frames must not reach the sidecar")
}

func TestDetectSidecarFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result := newTestDetector(server.URL).Detect(context.Background(), tinyPNG(t))

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Objects)
	assert.Equal(t, models.RoomGeneralSpace, result.RoomType)
}

func TestDetectSidecarUnreachable(t *testing.T) {
	result := newTestDetector("http://127.0.0.1:1").Detect(context.Background(), tinyPNG(t))

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
