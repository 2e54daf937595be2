package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

var caseIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateCaseID allows alphanumeric, dash, underscore (max 64 chars)
func ValidateCaseID(caseID string) error {
	if caseID == "" {
		return fmt.Errorf("case ID cannot be empty")
	}
	if !caseIDPattern.MatchString(caseID) {
		return fmt.Errorf("invalid case ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateTaskID expects the uuid the collector assigned
func ValidateTaskID(taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if _, err := uuid.Parse(taskID); err != nil {
		return fmt.Errorf("invalid task ID format")
	}
	return nil
}

// SanitizeFilename keeps only the base name of a client supplied filename
func SanitizeFilename(name string) string {
	name = SanitizeString(strings.ReplaceAll(name, `\`, "/"))
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
