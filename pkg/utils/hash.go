package utils

import (
	"crypto/sha256"
	"fmt"
)

func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash)
}

func Truncate(input string, max int) string {
	r := []rune(input)
	if max <= 0 || len(r) <= max {
		return input
	}
	return string(r[:max]) + "..."
}
