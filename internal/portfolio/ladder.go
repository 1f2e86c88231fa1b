package portfolio

import "math"

// minRecoveryTarget is the smallest quote-currency amount worth placing an
// order for. A tier-1 target below it is merged with one more recovery
// unit instead of producing a dust order.
const minRecoveryTarget = 5.05

// Tier is one (price, amount) sell target.
type Tier struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// Ladder is the five-tier take-profit plan for one asset. Status marks a
// tier as covered (1) once realized sales reach its cumulative recovery
// target. The ladder is always rebuilt whole, never patched tier by tier.
type Ladder struct {
	Asset  string  `json:"asset"`
	Tiers  [5]Tier `json:"tiers"`
	Status [5]int  `json:"status"`
}

// LadderInput carries everything BuildLadder needs; all figures are in
// quote-currency units except Balance and AverageEntryPrice.
type LadderInput struct {
	Asset             string
	Balance           float64
	MaxExposure       float64
	Multiplier        float64
	TotalBought       float64
	TotalSold         float64
	AverageEntryPrice float64
}

// BuildLadder derives the five sell targets. Degenerate inputs (no
// position, zero exposure) yield zero tiers rather than an error; a tier
// with non-positive amount always carries price 0 so callers can tell it
// is not applicable.
func BuildLadder(in LadderInput) Ladder {
	balance := in.Balance
	if balance < 0 {
		balance = 0
	}
	maxExposure := in.MaxExposure
	if maxExposure < 0 {
		maxExposure = 0
	}

	recoveryUnit := round2(maxExposure * in.Multiplier * 0.5)

	// Tier 1 either claws back the exposure overshoot at the average entry
	// price, or chases the next recovery-unit boundary past what was sold.
	var target, price float64
	if maxExposure < in.TotalBought && in.TotalBought > in.TotalSold+maxExposure {
		target = in.TotalBought - in.TotalSold - maxExposure
		price = in.AverageEntryPrice
	} else {
		if recoveryUnit > 0 {
			target = recoveryUnit - math.Mod(in.TotalSold, recoveryUnit)
		}
		if balance > 0 {
			price = (2 * recoveryUnit * in.Multiplier) / balance
		}
	}

	// Minimum-order-size correction, tier 1 only.
	if target < minRecoveryTarget {
		target += recoveryUnit
		price *= 2 * in.Multiplier
	}

	var amount float64
	if price > 0 {
		amount = target / price
	}
	if amount > balance {
		// Never sell more than is held; reprice to keep the target.
		amount = balance
		if balance > 0 {
			price = target / balance
		}
	}
	if amount <= 0 {
		amount, price = 0, 0
	}

	ladder := Ladder{Asset: in.Asset}
	ladder.Tiers[0] = Tier{Price: price, Amount: amount}

	// Tiers 2-5 each take half of whatever remains, priced so every tier
	// recovers one more recovery unit.
	remaining := balance - amount
	for k := 1; k < 5; k++ {
		amt := remaining / 2
		var p float64
		if amt > 0 {
			p = recoveryUnit / amt
		} else {
			amt = 0
		}
		ladder.Tiers[k] = Tier{Price: p, Amount: amt}
		remaining -= amt
	}

	// Tier k is covered once total sales reach its cumulative target.
	cumulative := target
	for k := 0; k < 5; k++ {
		if cumulative > 0 && in.TotalSold >= cumulative {
			ladder.Status[k] = 1
		}
		cumulative += recoveryUnit
	}

	return ladder
}
