// Package geo provides coordinate parsing, formatting, and viewport helpers
// for bench locations.
package geo

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Messages surfaced for the free-text location field.
const (
	MsgEmptyInput    = "Enter coordinates as latitude, longitude."
	MsgInvalidFormat = "Invalid coordinates. Use decimal degrees like 52.520008, 13.404954."
)

var (
	disallowed = regexp.MustCompile(`[^0-9.,\-\s]`)
	separators = regexp.MustCompile(`[,\s]+`)
)

// ParsedLocation is the result of parsing and canonicalizing free-text input.
type ParsedLocation struct {
	Lat       float64
	Lng       float64
	Formatted string
}

// ParseCoordinates extracts a (lat, lng) pair from free-text input. It keeps
// only digits, dots, commas, minus signs and whitespace, splits on comma or
// whitespace runs, and takes the first two numeric tokens. Returns ok=false
// for fewer than two tokens, non-numeric tokens, or out-of-range values
// (lat outside [-90, 90], lng outside [-180, 180]).
func ParseCoordinates(text string) (lat, lng float64, ok bool) {
	cleaned := disallowed.ReplaceAllString(text, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, 0, false
	}

	tokens := separators.Split(cleaned, -1)
	var nums []string
	for _, tok := range tokens {
		if tok != "" {
			nums = append(nums, tok)
		}
	}
	if len(nums) < 2 {
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(nums[0], 64)
	if err != nil || math.IsNaN(lat) {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(nums[1], 64)
	if err != nil || math.IsNaN(lng) {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}

// FormatCoordinates renders a coordinate pair in canonical form: six decimal
// places, comma-joined, no spaces.
func FormatCoordinates(lat, lng float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lng)
}

// Validate returns an empty string for parseable input, a hint message for
// empty input, and a generic invalid-format message otherwise.
func Validate(text string) string {
	if strings.TrimSpace(text) == "" {
		return MsgEmptyInput
	}
	if _, _, ok := ParseCoordinates(text); !ok {
		return MsgInvalidFormat
	}
	return ""
}

// ParseAndFormat parses free-text input and returns the pair along with its
// canonical formatting.
func ParseAndFormat(text string) (*ParsedLocation, bool) {
	lat, lng, ok := ParseCoordinates(text)
	if !ok {
		return nil, false
	}
	return &ParsedLocation{Lat: lat, Lng: lng, Formatted: FormatCoordinates(lat, lng)}, true
}
