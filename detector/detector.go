package detector

import (
	"context"

	"scan-session-service/models"
)

// Detector turns raw frame bytes into a structured detection result.
// Implementations never fail out-of-band: decode and inference errors are
// reported inside the result so callers can fold the frame regardless.
type Detector interface {
	Detect(ctx context.Context, imageBytes []byte) models.DetectionResult
}

// ErrorResult builds the well-formed result for a frame that could not be
// analyzed. The room type is the general-space sentinel so the frame never
// contributes to a session's room histogram.
func ErrorResult(errMsg string) models.DetectionResult {
	return models.DetectionResult{
		Success:   false,
		Error:     errMsg,
		Objects:   []models.DetectedObject{},
		Amenities: []string{},
		RoomType:  models.RoomGeneralSpace,
		Guidance:  "Error occurred",
		Stats:     models.DetectionStats{},
	}
}
