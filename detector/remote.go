package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"

	// Registered decoders for validating inbound frame bytes.
	_ "image/jpeg"
	_ "image/png"

	"github.com/apex/log"

	"scan-session-service/config"
	"scan-session-service/models"
)

// RemoteDetector runs object detection against an inference sidecar over
// HTTP and classifies the raw detections locally.
type RemoteDetector struct {
	url        string
	confidence float64
	client     *http.Client
}

// inferenceResponse is the sidecar's raw output: unfiltered boxes.
type inferenceResponse struct {
	Objects []models.DetectedObject `json:"objects"`
}

// NewRemoteDetector creates a detector backed by the configured sidecar.
func NewRemoteDetector(cfg *config.Config) *RemoteDetector {
	return &RemoteDetector{
		url:        cfg.DetectorURL,
		confidence: cfg.DetectorConfidence,
		client:     &http.Client{Timeout: cfg.DetectorTimeout},
	}
}

// Detect validates the frame bytes, fetches raw detections from the sidecar,
// drops low-confidence boxes and derives the classified frame result. All
// failures come back as a well-formed error result.
func (d *RemoteDetector) Detect(ctx context.Context, imageBytes []byte) models.DetectionResult {
	if _, _, err := image.DecodeConfig(bytes.NewReader(imageBytes)); err != nil {
		return ErrorResult("invalid image data")
	}

	objects, err := d.infer(ctx, imageBytes)
	if err != nil {
		log.Errorf("Detector inference failed: %v", err)
		return ErrorResult(err.Error())
	}

	kept := make([]models.DetectedObject, 0, len(objects))
	for _, obj := range objects {
		if obj.Confidence >= d.confidence {
			obj.Confidence = round2(obj.Confidence)
			kept = append(kept, obj)
		}
	}

	return Classify(kept)
}

func (d *RemoteDetector) infer(ctx context.Context, imageBytes []byte) ([]models.DetectedObject, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", d.url+"/detect", bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned %d", resp.StatusCode)
	}

	var parsed inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse inference response: %w", err)
	}

	return parsed.Objects, nil
}
