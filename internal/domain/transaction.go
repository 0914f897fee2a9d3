package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the canonical reward record derived from one ledger event.
// Values are never mutated after normalization.
type Transaction struct {
	ID           string          `json:"id"`
	Kind         Kind            `json:"kind"`
	Actor        string          `json:"actor"`
	Amount       decimal.Decimal `json:"amount"` // >= 0
	OccurredAt   time.Time       `json:"occurredAt"`
	DatasetLabel string          `json:"datasetLabel,omitempty"` // contributions only
	Tokens       *uint64         `json:"tokens,omitempty"`       // usage only
	SourceRef    string          `json:"sourceRef,omitempty"`
}
