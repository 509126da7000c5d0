package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewToken mints an opaque session token of the form
// "<userID>-<unix millis>-<32 hex chars>". Nothing on the server records or
// verifies it; clients use it to remember a recent login.
func NewToken(userID int64, now time.Time) string {
	entropy := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d-%d-%s", userID, now.UnixMilli(), entropy)
}
