package validator

import (
	"strings"
	"unicode/utf8"
)

// MaxMemoLength bounds the free-text memo on a transfer request.
const MaxMemoLength = 1024

func ValidateRequired(value string) bool {
	return strings.TrimSpace(value) != ""
}

func ValidateMemo(memo string) bool {
	return utf8.ValidString(memo) && utf8.RuneCountInString(memo) <= MaxMemoLength
}

func ValidateJWT(token string) bool {
	if token == "" {
		return false
	}

	// JWT token harus memiliki 3 bagian yang dipisahkan oleh titik
	parts := strings.Split(token, ".")
	return len(parts) == 3
}
