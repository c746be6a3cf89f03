package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag derives a weak validator from a document id and its last update.
func GenerateETag(id primitive.ObjectID, updatedAt time.Time, extra ...any) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%d", id.Hex(), updatedAt.UnixNano())
	for _, e := range extra {
		fmt.Fprintf(h, "|%v", e)
	}
	return `W/"` + hex.EncodeToString(h.Sum(nil)[:12]) + `"`
}
