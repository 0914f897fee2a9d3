package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"reward-ledger/internal/domain"
)

// ComputeEventTransactionID computes a transaction id from the ledger's own
// event identity, which stays the same across fetches.
// Formula: SHA256(kind|tx_digest|event_seq)
// Returns hex-encoded hash (64 characters).
func ComputeEventTransactionID(kind domain.Kind, txDigest, eventSeq string) string {
	data := fmt.Sprintf("%s|%s|%s", string(kind), txDigest, eventSeq)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTransactionID computes a fallback transaction id for events that
// carry no ledger identity.
// Formula: SHA256(kind|source_id|ordinal)
// The ordinal is the event's position in its fetched batch, which keeps two
// events sharing a source id (e.g. repeated usage of one pool) apart. It shifts
// when newer events arrive, so it is only stable within one batch.
// Returns hex-encoded hash (64 characters).
func ComputeTransactionID(kind domain.Kind, sourceID string, ordinal int) string {
	data := fmt.Sprintf("%s|%s|%d", string(kind), sourceID, ordinal)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
