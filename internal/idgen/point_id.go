package idgen

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// pointIDLen is the length of the base58 prefix kept from the hash.
const pointIDLen = 16

// PointID computes a deterministic metric point identifier using SHA256.
// Formula: SHA256(timestamp_ms|revenue|active_users|engagement_rate),
// base58-encoded and truncated to 16 characters.
func PointID(ts time.Time, revenue float64, activeUsers int64, engagementRate float64) string {
	data := fmt.Sprintf("%d|%.2f|%d|%.2f",
		ts.UnixMilli(),
		revenue,
		activeUsers,
		engagementRate,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])[:pointIDLen]
}
