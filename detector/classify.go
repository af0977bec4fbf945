package detector

import (
	"math"
	"sort"
	"strings"

	"scan-session-service/models"
)

// amenityMap maps detected object classes to listing amenities.
// A class may contribute zero, one or several amenities.
var amenityMap = map[string][]string{
	// Furniture
	"bed":          {"bedroom", "sleeping area"},
	"couch":        {"living room", "seating area"},
	"chair":        {"seating"},
	"dining table": {"dining area"},

	// Kitchen
	"refrigerator": {"full kitchen", "modern appliances"},
	"oven":         {"full kitchen", "cooking facilities"},
	"microwave":    {"kitchen appliances"},
	"sink":         {"kitchen"},

	// Electronics
	"tv":     {"TV", "entertainment"},
	"laptop": {"workspace", "work-from-home ready"},

	// Bathroom
	"toilet": {"bathroom"},

	// Decor & quality indicators
	"potted plant": {"plants", "well-decorated"},
	"vase":         {"tasteful decor"},
	"book":         {"reading materials", "thoughtful decor"},
	"wine glass":   {"glassware", "entertainment-ready"},

	// Outdoor
	"bench":    {"outdoor seating"},
	"umbrella": {"patio/deck"},
	"bicycle":  {"bike storage"},
	"car":      {"parking"},
}

// roomRule names the primary indicator classes for a room type and how many
// of them must be present in a frame for the room to qualify.
type roomRule struct {
	room       string
	indicators []string
	minPrimary int
}

// roomRules is evaluated in order; the order breaks ties between rooms with
// equal indicator matches.
var roomRules = []roomRule{
	{room: "bedroom", indicators: []string{"bed"}, minPrimary: 1},
	{room: "bathroom", indicators: []string{"toilet", "sink"}, minPrimary: 1},
	{room: "kitchen", indicators: []string{"refrigerator", "oven", "microwave"}, minPrimary: 1},
	{room: "living_room", indicators: []string{"couch", "tv"}, minPrimary: 1},
	{room: "dining_room", indicators: []string{"dining table", "chair"}, minPrimary: 1},
}

// Classify derives the full frame result from a set of confidence-filtered
// detections: amenities, room type, user guidance and summary stats.
func Classify(objects []models.DetectedObject) models.DetectionResult {
	classes := make([]string, 0, len(objects))
	for _, obj := range objects {
		classes = append(classes, obj.Class)
	}

	amenities := extractAmenities(classes)
	roomType := inferRoomType(classes)

	avgConfidence := 0.0
	if len(objects) > 0 {
		for _, obj := range objects {
			avgConfidence += obj.Confidence
		}
		avgConfidence = round2(avgConfidence / float64(len(objects)))
	}

	unique := make(map[string]struct{}, len(classes))
	for _, class := range classes {
		unique[class] = struct{}{}
	}

	if objects == nil {
		objects = []models.DetectedObject{}
	}

	return models.DetectionResult{
		Success:   true,
		Objects:   objects,
		Amenities: amenities,
		RoomType:  roomType,
		Guidance:  guidance(roomType, len(objects)),
		Stats: models.DetectionStats{
			TotalObjects:  len(objects),
			UniqueObjects: len(unique),
			ConfidenceAvg: avgConfidence,
		},
	}
}

// extractAmenities converts detected classes to a sorted, de-duplicated
// amenity list, including count-based and combination amenities.
func extractAmenities(classes []string) []string {
	counts := make(map[string]int, len(classes))
	for _, class := range classes {
		counts[class]++
	}

	amenities := make(map[string]struct{})
	for _, class := range classes {
		for _, amenity := range amenityMap[class] {
			amenities[amenity] = struct{}{}
		}
	}

	// Count-based amenities
	if counts["bed"] >= 2 {
		amenities["multiple bedrooms"] = struct{}{}
	}
	if counts["chair"] >= 4 {
		amenities["dining area (seats 4+)"] = struct{}{}
	}

	// Combination amenities
	if counts["couch"] > 0 && counts["tv"] > 0 {
		amenities["entertainment center"] = struct{}{}
	}
	if counts["desk"] > 0 && counts["chair"] > 0 {
		amenities["home office"] = struct{}{}
	}

	result := make([]string, 0, len(amenities))
	for amenity := range amenities {
		result = append(result, amenity)
	}
	sort.Strings(result)
	return result
}

// inferRoomType picks the room whose primary indicators match the detected
// classes best, provided its minimum is met; otherwise the general-space
// sentinel is returned.
func inferRoomType(classes []string) string {
	present := make(map[string]struct{}, len(classes))
	for _, class := range classes {
		present[class] = struct{}{}
	}

	best := models.RoomGeneralSpace
	bestMatches := 0
	for _, rule := range roomRules {
		matches := 0
		for _, indicator := range rule.indicators {
			if _, ok := present[indicator]; ok {
				matches++
			}
		}
		if matches >= rule.minPrimary && matches > bestMatches {
			best = rule.room
			bestMatches = matches
		}
	}
	return best
}

// guidance produces the real-time hint shown to the scanning user.
func guidance(roomType string, objectCount int) string {
	switch {
	case objectCount == 0:
		return "No objects detected - move closer or improve lighting"
	case objectCount < 3:
		return "Keep scanning - need more detail"
	case roomType == models.RoomGeneralSpace:
		return "Keep moving - scanning property"
	default:
		return "Good! " + titleWords(strings.ReplaceAll(roomType, "_", " ")) + " captured"
	}
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
