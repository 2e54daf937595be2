package middleware

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateCaseID(t *testing.T) {
	assert.NoError(t, ValidateCaseID("case-2024_001"))
	assert.Error(t, ValidateCaseID(""))
	assert.Error(t, ValidateCaseID("../etc"))
	assert.Error(t, ValidateCaseID(strings.Repeat("a", 65)))
}

func TestValidateTaskID(t *testing.T) {
	assert.NoError(t, ValidateTaskID(uuid.NewString()))
	assert.Error(t, ValidateTaskID(""))
	assert.Error(t, ValidateTaskID("not-a-uuid"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "left-cc.dcm", SanitizeFilename("left-cc.dcm"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "scan.png", SanitizeFilename(`C:\Users\rad\scan.png`))
	assert.Equal(t, "ab.png", SanitizeFilename("a\x00b.png"))
	assert.Equal(t, "", SanitizeFilename(""))
	assert.Equal(t, "", SanitizeFilename(".."))
}
