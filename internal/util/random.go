// Package util provides utility functions for the DocFlow application.
package util

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Not suitable for secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateSessionID returns a new conversation session ID (UUIDv4).
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateTurnID generates a turn ID with "t_" prefix.
func GenerateTurnID() string {
	return GenerateRandomID("t_", 24)
}

// GenerateQuestionID generates a synthesized question ID with the given prefix.
func GenerateQuestionID(prefix string) string {
	return GenerateRandomID(prefix+"_", 8)
}
