package portfolio

import "fmt"

// Strategy selects how aggressively the take-profit ladder is priced.
// The set is closed: adding a strategy means adding a constant and
// extending the switches below, which the compiler and tests will catch.
type Strategy int

const (
	StrategyConservative Strategy = iota
	StrategyBalanced
	StrategyAggressive
	StrategyTurbo
)

// ParseStrategy resolves a configured strategy name. An unknown name is a
// configuration error surfaced to the caller, never silently defaulted.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "conservative":
		return StrategyConservative, nil
	case "balanced":
		return StrategyBalanced, nil
	case "aggressive":
		return StrategyAggressive, nil
	case "turbo":
		return StrategyTurbo, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", name)
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyConservative:
		return "conservative"
	case StrategyBalanced:
		return "balanced"
	case StrategyAggressive:
		return "aggressive"
	case StrategyTurbo:
		return "turbo"
	default:
		return "unknown"
	}
}

// Multiplier returns the numeric factor the ladder math scales with.
func (s Strategy) Multiplier() float64 {
	switch s {
	case StrategyConservative:
		return 1
	case StrategyBalanced:
		return 2
	case StrategyAggressive:
		return 3
	case StrategyTurbo:
		return 5
	default:
		return 0
	}
}
