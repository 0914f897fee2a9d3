package normalization

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"reward-ledger/internal/domain"
)

// Reward constants applied by DefaultPolicy.
var (
	DefaultBaseReward = decimal.RequireFromString("0.1")
	DefaultTokenRate  = decimal.RequireFromString("0.0001")
)

// EventView is the subset of a raw event visible to reward rules.
type EventView struct {
	Kind       domain.Kind
	Tokens     uint64
	Fee        uint64
	TruthScore int
}

// AmountFunc derives the reward amount for one event.
type AmountFunc func(EventView) decimal.Decimal

// Policy maps each event kind to its reward rule. Rewards are platform policy
// and are not read from the ledger.
type Policy map[domain.Kind]AmountFunc

// DefaultPolicy returns the platform's standard reward table.
func DefaultPolicy() Policy {
	return NewPolicy(DefaultBaseReward, DefaultTokenRate)
}

// NewPolicy builds a policy paying baseReward per contribution and
// tokenRate per usage token.
func NewPolicy(baseReward, tokenRate decimal.Decimal) Policy {
	return Policy{
		domain.KindContribution: FixedReward(baseReward),
		domain.KindUsage:        PerTokenReward(tokenRate),
	}
}

// FixedReward pays the same amount for every event.
func FixedReward(amount decimal.Decimal) AmountFunc {
	return func(EventView) decimal.Decimal {
		return amount
	}
}

// PerTokenReward pays rate × tokens.
func PerTokenReward(rate decimal.Decimal) AmountFunc {
	return func(v EventView) decimal.Decimal {
		return rate.Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(v.Tokens), 0))
	}
}

// Validate checks that every kind has a rule.
func (p Policy) Validate() error {
	for _, k := range []domain.Kind{domain.KindContribution, domain.KindUsage} {
		if p[k] == nil {
			return fmt.Errorf("%w %s", ErrIncompletePolicy, k)
		}
	}
	return nil
}

// Amount applies the rule for v.Kind.
func (p Policy) Amount(v EventView) decimal.Decimal {
	return p[v.Kind](v)
}
