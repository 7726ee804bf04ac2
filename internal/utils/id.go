package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// ConnPrefix tags connection ids in logs.
const ConnPrefix = "conn-"

// NewID returns a best-effort unique connection identifier.
func NewID() string {
	const size = 8

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err == nil {
		return ConnPrefix + hex.EncodeToString(buf)
	}

	// Fallback to timestamp if crypto/rand is unavailable.
	return ConnPrefix + strconv.FormatInt(time.Now().UnixNano(), 36)
}
