package oracle

import (
	"errors"
	"sync"
)

// The risk oracle prices loan terms from a borrower cohort's reputation
// levels. Identity tiering itself is an external concern; callers supply
// each member's level and credential flags.

var (
	ErrNoMembers        = errors.New("empty member list")
	ErrNoTiers          = errors.New("no leverage tiers configured")
	ErrInvalidTier      = errors.New("invalid tier parameters")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Member is one cohort participant as reported by the identity service.
type Member struct {
	ID            string `json:"id"`
	Level         int64  `json:"level"`
	HasCredential bool   `json:"has_credential"`
	Stained       bool   `json:"stained"`
}

// Tier maps a minimum average cohort level to a leverage multiplier (in
// hundredths, 150 = 1.5x) and an annual interest rate in basis points.
type Tier struct {
	MinLevel   int64 `json:"min_level"`
	Multiplier int64 `json:"multiplier"`
	RateBps    int64 `json:"rate_bps"`
}

// Terms is a tier lookup result.
type Terms struct {
	Multiplier int64 `json:"multiplier"`
	RateBps    int64 `json:"rate_bps"`
}

const (
	baseWeight      = 100
	weightPerLevel  = 10
	defaultMaxLever = 5
)

// Oracle holds the tier table. Tiers are append-only; the selection rule
// makes ordering significant (see TierForLevel).
type Oracle struct {
	mu          sync.RWMutex
	maxLeverage int64 // whole multiples, cap on Multiplier/100
	tiers       []Tier
}

// New creates an oracle with the default tier table:
// level 1+ gets 1.5x at 12%, 3+ gets 3x at 10%, 5+ gets 5x at 8%.
func New() *Oracle {
	return &Oracle{
		maxLeverage: defaultMaxLever,
		tiers: []Tier{
			{MinLevel: 1, Multiplier: 150, RateBps: 1200},
			{MinLevel: 3, Multiplier: 300, RateBps: 1000},
			{MinLevel: 5, Multiplier: 500, RateBps: 800},
		},
	}
}

// AddTier appends a tier. A tier added later shadows an earlier tier with
// the same MinLevel.
func (o *Oracle) AddTier(t Tier) error {
	if t.MinLevel < 0 || t.Multiplier <= 0 || t.RateBps < 0 {
		return ErrInvalidTier
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.tiers = append(o.tiers, t)
	return nil
}

// SetMaxLeverage updates the leverage cap in whole multiples.
func (o *Oracle) SetMaxLeverage(max int64) error {
	if max <= 0 {
		return ErrInvalidParameter
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.maxLeverage = max
	return nil
}

// Tiers returns a copy of the tier table in insertion order.
func (o *Oracle) Tiers() []Tier {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Tier, len(o.tiers))
	copy(out, o.tiers)
	return out
}

// AllEligible reports whether every member may participate. Credit mode
// requires a credential, level 1 or higher, and a clean record; savings mode
// requires only the credential.
func AllEligible(members []Member, creditMode bool) bool {
	for _, m := range members {
		if !Eligible(m, creditMode) {
			return false
		}
	}
	return true
}

// Eligible is the per-member eligibility rule.
func Eligible(m Member, creditMode bool) bool {
	if !m.HasCredential {
		return false
	}
	if !creditMode {
		return true
	}
	return m.Level >= 1 && !m.Stained
}

// AverageLevel is the cohort's mean reputation level, floored. Members
// without a credential contribute zero to the sum but still count in the
// divisor.
func AverageLevel(members []Member) (int64, error) {
	if len(members) == 0 {
		return 0, ErrNoMembers
	}

	var total int64
	for _, m := range members {
		if !m.HasCredential {
			continue
		}
		total += m.Level
	}
	return total / int64(len(members)), nil
}

// TierForLevel selects lending terms for an average level: among tiers with
// MinLevel <= level, the greatest MinLevel wins, and on equal MinLevel the
// last-inserted tier wins. When no tier qualifies the first tier is the
// fallback. The multiplier is capped at the configured max leverage.
func (o *Oracle) TierForLevel(level int64) (Terms, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if len(o.tiers) == 0 {
		return Terms{}, ErrNoTiers
	}

	best := 0
	var bestMin int64
	for i, t := range o.tiers {
		if level >= t.MinLevel && t.MinLevel >= bestMin {
			best = i
			bestMin = t.MinLevel
		}
	}

	terms := Terms{
		Multiplier: o.tiers[best].Multiplier,
		RateBps:    o.tiers[best].RateBps,
	}
	if limit := o.maxLeverage * 100; terms.Multiplier > limit {
		terms.Multiplier = limit
	}
	return terms, nil
}

// LeverageFor resolves a cohort straight to lending terms.
func (o *Oracle) LeverageFor(members []Member) (Terms, error) {
	avg, err := AverageLevel(members)
	if err != nil {
		return Terms{}, err
	}
	return o.TierForLevel(avg)
}

// Weights returns the draw weight per member for cohort lotteries:
// 100 base plus 10 per level, flat 100 for uncredentialed members.
func Weights(members []Member) []int64 {
	weights := make([]int64, len(members))
	for i, m := range members {
		w := int64(baseWeight)
		if m.HasCredential {
			w += m.Level * weightPerLevel
		}
		weights[i] = w
	}
	return weights
}
