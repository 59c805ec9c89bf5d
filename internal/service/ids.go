package service

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// nowFunc is swapped in tests that need a fixed clock.
var nowFunc = time.Now

func newID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
