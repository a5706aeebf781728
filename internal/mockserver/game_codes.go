package mockserver

import (
	"errors"
	"math/rand"
	"strings"
)

// GenerateGameID returns a random code not present in usedCodes.
func GenerateGameID(usedCodes map[string]bool) string {
	for {
		code := make([]byte, 6)
		for i := range code {
			code[i] = 'A' + byte(rand.Intn(26))
		}
		gameID := string(code)

		if !usedCodes[gameID] {
			return gameID
		}
	}
}

// ValidateGameID checks a normalized game code.
func ValidateGameID(code string) error {
	if len(code) != 6 {
		return errors.New("Game id must be exactly 6 characters")
	}

	for _, ch := range strings.ToUpper(code) {
		if ch < 'A' || ch > 'Z' {
			return errors.New("Game id must contain only letters A-Z")
		}
	}

	return nil
}

// NormalizeGameID trims and upper-cases a user supplied code.
func NormalizeGameID(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
