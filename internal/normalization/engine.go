package normalization

import (
	"fmt"
	"strings"
	"time"

	"reward-ledger/internal/domain"
	"reward-ledger/internal/idhash"
	"reward-ledger/internal/sui"
)

const (
	datasetLabelPrefixLen = 8
	maxTruthScore         = 100
)

// SkippedEvent records a raw event dropped during normalization.
type SkippedEvent struct {
	Kind    domain.Kind
	Ordinal int // position in its input batch
	Err     error
}

// Result is the output of one normalization pass.
type Result struct {
	Transactions []domain.Transaction // OccurredAt DESC
	Skipped      []SkippedEvent
}

// Normalizer maps raw ledger events into canonical transactions.
type Normalizer struct {
	policy Policy
}

// NewNormalizer creates a normalizer applying the given reward policy.
func NewNormalizer(policy Policy) (*Normalizer, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{policy: policy}, nil
}

// Normalize converts contribution and usage events into one transaction list.
// When actor is non-empty, only that actor's transactions are kept.
// Malformed events are skipped and reported in Result.Skipped.
// The output is deterministic for identical input.
func (n *Normalizer) Normalize(contribs []domain.RawContributionEvent, usages []domain.RawUsageEvent, actor string) *Result {
	res := &Result{
		Transactions: make([]domain.Transaction, 0, len(contribs)+len(usages)),
	}

	for i, c := range contribs {
		if err := validateContribution(c); err != nil {
			res.Skipped = append(res.Skipped, SkippedEvent{Kind: domain.KindContribution, Ordinal: i, Err: err})
			continue
		}
		if actor != "" && c.Contributor != actor {
			continue
		}
		res.Transactions = append(res.Transactions, n.fromContribution(c, i))
	}

	for i, u := range usages {
		if err := validateUsage(u); err != nil {
			res.Skipped = append(res.Skipped, SkippedEvent{Kind: domain.KindUsage, Ordinal: i, Err: err})
			continue
		}
		if actor != "" && u.Requester != actor {
			continue
		}
		res.Transactions = append(res.Transactions, n.fromUsage(u, i))
	}

	SortTransactions(res.Transactions)
	return res
}

func (n *Normalizer) fromContribution(c domain.RawContributionEvent, ordinal int) domain.Transaction {
	return domain.Transaction{
		ID:    transactionID(domain.KindContribution, c.TxDigest, c.EventSeq, c.ContributionID, ordinal),
		Kind:  domain.KindContribution,
		Actor: c.Contributor,
		Amount: n.policy.Amount(EventView{
			Kind:       domain.KindContribution,
			TruthScore: c.TruthScore,
		}),
		OccurredAt:   time.Unix(c.OccurredAt, 0).UTC(),
		DatasetLabel: DatasetLabel(c.BlobRef),
		SourceRef:    sourceRef(c.TxDigest, c.ContributionID),
	}
}

func (n *Normalizer) fromUsage(u domain.RawUsageEvent, ordinal int) domain.Transaction {
	tokens := u.Tokens
	return domain.Transaction{
		ID:    transactionID(domain.KindUsage, u.TxDigest, u.EventSeq, u.PoolID, ordinal),
		Kind:  domain.KindUsage,
		Actor: u.Requester,
		Amount: n.policy.Amount(EventView{
			Kind:   domain.KindUsage,
			Tokens: u.Tokens,
			Fee:    u.Fee,
		}),
		OccurredAt: time.Unix(u.OccurredAt, 0).UTC(),
		Tokens:     &tokens,
		SourceRef:  sourceRef(u.TxDigest, u.PoolID),
	}
}

// transactionID keys a transaction on its ledger event identity so the same
// event maps to the same ID on every fetch. Events without a digest fall back
// to their source id and batch position.
func transactionID(kind domain.Kind, txDigest, eventSeq, sourceID string, ordinal int) string {
	if txDigest != "" {
		return idhash.ComputeEventTransactionID(kind, txDigest, eventSeq)
	}
	return idhash.ComputeTransactionID(kind, sourceID, ordinal)
}

// DatasetLabel derives a display label from the first characters of a blob reference.
func DatasetLabel(blobRef string) string {
	if blobRef == "" {
		return ""
	}
	r := []rune(blobRef)
	if len(r) > datasetLabelPrefixLen {
		r = r[:datasetLabelPrefixLen]
	}
	return "Dataset " + string(r) + "..."
}

// sourceRef prefers the ledger transaction digest and falls back to the event's own id.
func sourceRef(txDigest, fallback string) string {
	if sui.ValidDigest(txDigest) {
		return txDigest
	}
	return fallback
}

func validateContribution(c domain.RawContributionEvent) error {
	switch {
	case len(c.Undecodable) > 0:
		return fmt.Errorf("%w: undecodable %s", ErrMalformedEvent, strings.Join(c.Undecodable, ", "))
	case c.ContributionID == "":
		return fmt.Errorf("%w: missing contribution id", ErrMalformedEvent)
	case c.Contributor == "":
		return fmt.Errorf("%w: missing contributor", ErrMalformedEvent)
	case c.OccurredAt <= 0:
		return fmt.Errorf("%w: missing timestamp", ErrMalformedEvent)
	case c.TruthScore < 0 || c.TruthScore > maxTruthScore:
		return fmt.Errorf("%w: truth score %d out of range", ErrMalformedEvent, c.TruthScore)
	}
	return nil
}

func validateUsage(u domain.RawUsageEvent) error {
	switch {
	case len(u.Undecodable) > 0:
		return fmt.Errorf("%w: undecodable %s", ErrMalformedEvent, strings.Join(u.Undecodable, ", "))
	case u.PoolID == "":
		return fmt.Errorf("%w: missing pool id", ErrMalformedEvent)
	case u.Requester == "":
		return fmt.Errorf("%w: missing requester", ErrMalformedEvent)
	case u.OccurredAt <= 0:
		return fmt.Errorf("%w: missing timestamp", ErrMalformedEvent)
	}
	return nil
}
