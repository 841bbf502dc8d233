package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("qa.lead@plant.example.com"))
	assert.Error(t, ValidateEmail("qa.lead"))
	assert.Error(t, ValidateEmail("a@b"))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("secret", 6))
	assert.Error(t, ValidatePassword("short", 6))
	assert.NoError(t, ValidatePassword("pässwö", 6), "length counts characters, not bytes")
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "line1\nline2\ttab", SanitizeString("line1\nline2\ttab\x00\x07"))
}
