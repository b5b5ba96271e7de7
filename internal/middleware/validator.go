package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

var toolSlug = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// ValidateToolSlug checks the shape of a tool slug; existence is checked by the catalog.
func ValidateToolSlug(slug string) error {
	if !toolSlug.MatchString(slug) {
		return fmt.Errorf("invalid tool slug %q (lowercase letters, digits and dash, max 64 chars)", slug)
	}
	return nil
}

// ValidateSessionID accepts UUIDs only.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateImage sniffs the upload and checks it against the tool's accepted
// content types. It returns the sniffed type.
func ValidateImage(data []byte, accept []string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image is empty")
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("upload is not an image (%s)", ct)
	}
	if len(accept) == 0 {
		return ct, nil
	}
	for _, a := range accept {
		if strings.EqualFold(a, ct) {
			return ct, nil
		}
	}
	return "", fmt.Errorf("image type %s not accepted (allowed: %s)", ct, strings.Join(accept, ", "))
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7 // default
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}
