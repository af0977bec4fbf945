package session

import (
	"sort"
	"time"

	"scan-session-service/models"
)

const (
	// topObjectsLimit bounds the object frequency table in finalized results.
	topObjectsLimit = 20

	// lastFramesLimit bounds the diagnostic frame tail in finalized results.
	lastFramesLimit = 20
)

// fold applies one frame's detection result to the session state. The caller
// must hold the session mutex. Object classes are compacted into a running
// frequency table rather than retained as raw labels, so long scans do not
// grow without bound.
func (sess *scanSession) fold(result models.DetectionResult, imagePayload string, storeImage bool, now time.Time) int {
	sess.frameCount++
	sess.frames = append(sess.frames, models.FrameRecord{
		FrameNumber: sess.frameCount,
		Timestamp:   now,
		Detection:   result,
	})

	for _, amenity := range result.Amenities {
		sess.amenities[amenity] = struct{}{}
	}

	for _, obj := range result.Objects {
		sess.objectCounts[obj.Class]++
	}

	if result.RoomType != "" && result.RoomType != models.RoomGeneralSpace {
		sess.roomDetections[result.RoomType]++
	}

	// Failed frames never contribute an image, even when flagged.
	if storeImage && imagePayload != "" && result.Success {
		sess.images = append(sess.images, models.CapturedImage{
			FrameNumber:     sess.frameCount,
			Timestamp:       now,
			Image:           imagePayload,
			RoomType:        result.RoomType,
			ObjectsDetected: len(result.Objects),
		})
	}

	return sess.frameCount
}

// view builds the lightweight read model. The caller must hold the session
// mutex.
func (sess *scanSession) view() *models.SessionView {
	return &models.SessionView{
		SessionID:      sess.id,
		FrameCount:     sess.frameCount,
		Amenities:      sess.sortedAmenities(),
		RoomDetections: copyCounts(sess.roomDetections),
		ImagesCaptured: len(sess.images),
	}
}

// finalize derives the aggregated scan result from the accumulated state
// without mutating it. The caller must hold the session mutex.
func (sess *scanSession) finalize(now time.Time) *models.FinalizedScan {
	bedrooms := sess.roomDetections["bedroom"]
	bathrooms := sess.roomDetections["bathroom"]
	hasKitchen := sess.roomDetections["kitchen"] > 0
	hasLivingRoom := sess.roomDetections["living_room"] > 0

	images := make([]models.CapturedImage, len(sess.images))
	copy(images, sess.images)

	lastFrames := sess.frames
	if len(lastFrames) > lastFramesLimit {
		lastFrames = lastFrames[len(lastFrames)-lastFramesLimit:]
	}
	frames := make([]models.FrameRecord, len(lastFrames))
	copy(frames, lastFrames)

	return &models.FinalizedScan{
		SessionID:   sess.id,
		CreatedAt:   sess.createdAt,
		FinalizedAt: now,
		Summary: models.ScanSummary{
			TotalFramesProcessed: sess.frameCount,
			ImagesCaptured:       len(sess.images),
			PropertyType:         inferPropertyType(bedrooms, bathrooms, hasKitchen),
			Bedrooms:             bedrooms,
			Bathrooms:            bathrooms,
			HasKitchen:           hasKitchen,
			HasLivingRoom:        hasLivingRoom,
		},
		Amenities:       sess.sortedAmenities(),
		ObjectsDetected: topObjects(sess.objectCounts, topObjectsLimit),
		RoomBreakdown:   copyCounts(sess.roomDetections),
		Images:          images,
		LastFrames:      frames,
	}
}

func (sess *scanSession) sortedAmenities() []string {
	amenities := make([]string, 0, len(sess.amenities))
	for amenity := range sess.amenities {
		amenities = append(amenities, amenity)
	}
	sort.Strings(amenities)
	return amenities
}

// inferPropertyType maps the room histogram to a listing property type.
// Thresholds are evaluated in precedence order; the first match wins.
func inferPropertyType(bedrooms, bathrooms int, hasKitchen bool) string {
	switch {
	case bedrooms >= 3 && bathrooms >= 2:
		return "Entire house"
	case bedrooms >= 2:
		return "Entire apartment"
	case bedrooms == 1 && hasKitchen:
		return "Studio apartment"
	case bedrooms == 1:
		return "Private room"
	default:
		return "Property"
	}
}

// topObjects keeps the n most frequent object classes. Ties are broken by
// class name so repeated finalize calls produce identical tables.
func topObjects(counts map[string]int, n int) map[string]int {
	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool {
		if counts[classes[i]] != counts[classes[j]] {
			return counts[classes[i]] > counts[classes[j]]
		}
		return classes[i] < classes[j]
	})

	if len(classes) > n {
		classes = classes[:n]
	}

	top := make(map[string]int, len(classes))
	for _, class := range classes {
		top[class] = counts[class]
	}
	return top
}

func copyCounts(counts map[string]int) map[string]int {
	copied := make(map[string]int, len(counts))
	for key, value := range counts {
		copied[key] = value
	}
	return copied
}
