package errors

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// identifierRegex matches layer ids, knot ids and camera references.
// They end up as file names and URL query values, so the alphabet is narrow.
var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateIdentifier validates a layer id, knot id or camera reference.
//
// Validation rules:
//   - Not empty, at most 128 characters
//   - No control characters or null bytes
//   - No path traversal sequences (..) or separators
//   - Starts with a letter or digit; then letters, digits, '.', '_' or '-'
func ValidateIdentifier(kind, id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "%s id cannot be empty", kind)
	}
	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "%s id too long (max 128 characters)", kind)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "%s id contains invalid control characters", kind)
		}
	}
	if strings.Contains(id, "..") {
		return New(ErrCodeInvalidInput, "%s id cannot contain path traversal sequences (..)", kind)
	}
	if !identifierRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid %s id: %q", kind, id)
	}
	return nil
}

// ValidateBbox checks a filter box [minX, minY, maxX, maxY]. An empty box
// is valid and means no filter.
func ValidateBbox(bbox []float64) error {
	if len(bbox) == 0 {
		return nil
	}
	if len(bbox) != 4 {
		return New(ErrCodeInvalidInput, "filter box needs 4 values, got %d", len(bbox))
	}
	for _, v := range bbox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return New(ErrCodeInvalidInput, "filter box %v has a non-finite bound", bbox)
		}
	}
	if bbox[0] > bbox[2] || bbox[1] > bbox[3] {
		return New(ErrCodeInvalidInput, "filter box %v has min greater than max", bbox)
	}
	return nil
}

// ValidateURL validates a data-server base URL.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	return nil
}
