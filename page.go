package valentine

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// PageImageCount is the fixed number of photographs on every valentine page.
const PageImageCount = 6

// Zoom factors stored on a page are clamped to this range.
const (
	MinZoom = 0.5
	MaxZoom = 3.0
)

// DefaultPosition is the legacy "no repositioning" value for an image slot.
const DefaultPosition = "center center"

// DefaultZoom is the scale factor for an untouched image slot.
const DefaultZoom = 1.0

// PageRecord is the persisted document describing one valentine page.
// The three slices are parallel-indexed and always hold exactly
// PageImageCount entries; SavePage refuses anything else.
type PageRecord struct {
	Slug              string    `json:"slug"`
	Images            []string  `json:"images"`
	ImagePositions    []string  `json:"imagePositions"`
	ImageZooms        []float64 `json:"imageZooms"`
	RelationshipYears string    `json:"relationshipYears"`
	YouTubeURL        string    `json:"youtubeUrl,omitempty"`
	CreatedAt         string    `json:"createdAt"`
}

// PageSummary is the listing view of a page: just enough to link to it.
type PageSummary struct {
	Slug      string `json:"slug"`
	CreatedAt string `json:"createdAt"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidSlug reports whether s is a usable page slug: lowercase letters,
// digits, and hyphens only, at least one character.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// NormalizePositions decodes the optional imagePositions form field. The
// field is lenient by contract: if it is absent, not a JSON string array,
// or the wrong length for n images, every slot falls back to
// DefaultPosition instead of failing the request.
func NormalizePositions(raw string, n int) []string {
	var positions []string
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &positions); err != nil {
			positions = nil
		}
	}
	if len(positions) != n {
		positions = make([]string, n)
		for i := range positions {
			positions[i] = DefaultPosition
		}
		return positions
	}
	for i, p := range positions {
		if strings.TrimSpace(p) == "" {
			positions[i] = DefaultPosition
		}
	}
	return positions
}

// NormalizeZooms decodes the optional imageZooms form field with the same
// leniency as NormalizePositions: any malformed or mis-sized input becomes
// n copies of DefaultZoom. Well-formed entries are clamped to the allowed
// zoom range so an out-of-range record can never reach the store.
func NormalizeZooms(raw string, n int) []float64 {
	var zooms []float64
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &zooms); err != nil {
			zooms = nil
		}
	}
	if len(zooms) != n {
		zooms = make([]float64, n)
		for i := range zooms {
			zooms[i] = DefaultZoom
		}
		return zooms
	}
	for i, z := range zooms {
		zooms[i] = clampZoom(z)
	}
	return zooms
}

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// nowRFC3339 stamps record creation times. Overwriting a slug replaces the
// whole record, createdAt included; nothing is merged from the old one.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
