package domain

// Kind represents the ledger event class a transaction was derived from.
type Kind string

const (
	KindContribution Kind = "contribution"
	KindUsage        Kind = "usage"
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k Kind) IsValid() bool {
	return k == KindContribution || k == KindUsage
}
