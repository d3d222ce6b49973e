package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hseops/fieldsafe/internal/common"
)

// NewInspectionID returns a client-generated inspection id. The millisecond
// timestamp keeps ids roughly ordered by creation time; the uuid fragment
// guards against two devices creating a document in the same millisecond.
func NewInspectionID() string {
	return fmt.Sprintf("ins_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// UserID returns the deterministic id of a user document, so the same account
// maps to the same document on every device.
func UserID(username string) string {
	return "user_" + username
}

// NewRev mints an opaque revision token. The generation prefix exists only so
// a store can mint a successor token; callers must never order revisions by it.
func NewRev(generation int64) (string, error) {
	suffix, err := common.MakeRandHexString(6)
	if err != nil {
		return "", fmt.Errorf("generating revision: %w", err)
	}
	return fmt.Sprintf("%d-%s", generation, suffix), nil
}

// RevGeneration extracts the generation prefix of a revision token, or 0 for
// an empty or foreign-format token.
func RevGeneration(rev string) int64 {
	head, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
