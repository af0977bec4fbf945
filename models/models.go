package models

import "time"

// RoomGeneralSpace is the sentinel room type for frames that could not be
// attributed to a specific room. It is never counted in room histograms.
const RoomGeneralSpace = "general_space"

// DetectedObject is a single object found in one frame.
type DetectedObject struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
}

// DetectionStats summarizes one frame's detections.
type DetectionStats struct {
	TotalObjects  int     `json:"total_objects"`
	UniqueObjects int     `json:"unique_objects"`
	ConfidenceAvg float64 `json:"confidence_avg"`
}

// DetectionResult is the frame detector's output for one frame. Failures are
// reported in-band: Success is false, Error is set and the detection lists are
// empty, so a failed frame can still be folded into its session.
type DetectionResult struct {
	Success   bool             `json:"success"`
	Error     string           `json:"error,omitempty"`
	Objects   []DetectedObject `json:"objects"`
	Amenities []string         `json:"amenities"`
	RoomType  string           `json:"room_type"`
	Guidance  string           `json:"guidance"`
	Stats     DetectionStats   `json:"stats"`
}

// FrameRecord is the lightweight per-frame record retained by a session.
type FrameRecord struct {
	FrameNumber int             `json:"frame_number"`
	Timestamp   time.Time       `json:"timestamp"`
	Detection   DetectionResult `json:"detection"`
}

// CapturedImage is a frame whose encoded image payload was explicitly kept.
type CapturedImage struct {
	FrameNumber     int       `json:"frame_number"`
	Timestamp       time.Time `json:"timestamp"`
	Image           string    `json:"image"`
	RoomType        string    `json:"room_type"`
	ObjectsDetected int       `json:"objects_detected"`
}

// SessionView is the lightweight read model of an in-progress session.
type SessionView struct {
	SessionID      string         `json:"session_id"`
	FrameCount     int            `json:"frame_count"`
	Amenities      []string       `json:"amenities"`
	RoomDetections map[string]int `json:"room_detections"`
	ImagesCaptured int            `json:"images_captured"`
}

// ScanSummary is the derived summary block of a finalized scan.
type ScanSummary struct {
	TotalFramesProcessed int    `json:"total_frames_processed"`
	ImagesCaptured       int    `json:"images_captured"`
	PropertyType         string `json:"property_type"`
	Bedrooms             int    `json:"bedrooms"`
	Bathrooms            int    `json:"bathrooms"`
	HasKitchen           bool   `json:"has_kitchen"`
	HasLivingRoom        bool   `json:"has_living_room"`
}

// FinalizedScan is the full result derived from a session's accumulated state.
// ObjectsDetected holds only the 20 most frequent classes and LastFrames only
// the 20 most recent frame records, to bound response size.
type FinalizedScan struct {
	SessionID       string          `json:"session_id"`
	CreatedAt       time.Time       `json:"created_at"`
	FinalizedAt     time.Time       `json:"finalized_at"`
	Summary         ScanSummary     `json:"summary"`
	Amenities       []string        `json:"amenities"`
	ObjectsDetected map[string]int  `json:"objects_detected"`
	RoomBreakdown   map[string]int  `json:"room_breakdown"`
	Images          []CapturedImage `json:"images"`
	LastFrames      []FrameRecord   `json:"all_frames"`
}

// ScanFinalizedEvent is published when a finalized scan is consumed, for
// downstream listing-creation pipelines.
type ScanFinalizedEvent struct {
	Type        string      `json:"type"`
	SessionID   string      `json:"session_id"`
	FinalizedAt time.Time   `json:"finalized_at"`
	Summary     ScanSummary `json:"summary"`
	Amenities   []string    `json:"amenities"`
}
