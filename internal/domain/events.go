package domain

// RawContributionEvent is emitted by the ledger when an actor registers a dataset.
// Field values are taken as-is from the event payload; zero values mean the field
// was absent or could not be decoded.
type RawContributionEvent struct {
	ContributionID string `json:"contributionId"`
	BlobRef        string `json:"blobRef"`
	Contributor    string `json:"contributor"` // actor id
	PoolID         string `json:"poolId"`
	OccurredAt     int64  `json:"occurredAt"` // unix seconds
	IntegrityHash  string `json:"integrityHash"`
	TruthScore     int    `json:"truthScore"` // 0-100
	TxDigest       string `json:"txDigest,omitempty"`
	EventSeq       string `json:"eventSeq,omitempty"`

	// Undecodable lists required payload fields that were absent or could
	// not be decoded. Such an event is malformed.
	Undecodable []string `json:"-"`
}

// RawUsageEvent is emitted by the ledger when a consumer runs inference against a pool.
type RawUsageEvent struct {
	PoolID     string `json:"poolId"`
	Version    uint64 `json:"version"`
	Tokens     uint64 `json:"tokens"`
	Fee        uint64 `json:"fee"`
	Requester  string `json:"requester"` // actor id
	OccurredAt int64  `json:"occurredAt"` // unix seconds
	TxDigest   string `json:"txDigest,omitempty"`
	EventSeq   string `json:"eventSeq,omitempty"`

	// Undecodable lists required payload fields that were absent or could
	// not be decoded. Such an event is malformed.
	Undecodable []string `json:"-"`
}
