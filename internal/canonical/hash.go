package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// TransactionHash derives the content identity of a transaction from
// its canonical fields. It deliberately excludes the user id: the same
// statement re-uploaded by the same user hashes identically, which is
// what makes cross-batch dedup work. Uniqueness is additionally scoped
// by user id at the storage layer, so cross-user collisions on
// identical values are acceptable.
func TransactionHash(postedDate string, amountMinor int64, normalizedMerchant string) string {
	return digest(postedDate, fmt.Sprintf("%d", amountMinor), normalizedMerchant)
}

// TransactionID derives a storage primary key that is unique per
// extraction attempt. BatchID separates re-extractions of the same
// statement and lineNo breaks ties between exact duplicates inside one
// statement, so re-running extraction never produces a key collision.
func TransactionID(userID, batchID, postedDate string, amountMinor int64, normalizedMerchant string, lineNo int) string {
	return digest(userID, batchID, postedDate, fmt.Sprintf("%d", amountMinor), normalizedMerchant, fmt.Sprintf("%d", lineNo))
}

// digest joins the fields with an unambiguous separator and returns the
// hex SHA-256. The separator keeps ("ab","c") and ("a","bc") distinct.
func digest(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}
