package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random, collision-resistant identifier such as
// "order_3f0c9c1e6a7b4b0e9d1f2a3b4c5d6e7f".
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
