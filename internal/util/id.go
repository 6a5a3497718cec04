package util

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// TimeSuffix returns a short base36 uniqueness suffix for derived slugs.
func TimeSuffix() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 36)
}
