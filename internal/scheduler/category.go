package scheduler

// Category identifies one refreshable data set. The set is closed; adding
// a category means adding a constant here and registering its fetch
// routine, both compile-time-visible changes.
type Category int

const (
	CategoryBalances Category = iota
	CategoryTrades
	CategoryOrders
	CategoryTickers
)

func (c Category) String() string {
	switch c {
	case CategoryBalances:
		return "balances"
	case CategoryTrades:
		return "trades"
	case CategoryOrders:
		return "orders"
	case CategoryTickers:
		return "tickers"
	default:
		return "unknown"
	}
}

// AllCategories returns every refreshable category in refresh order.
func AllCategories() []Category {
	return []Category{CategoryBalances, CategoryTrades, CategoryOrders, CategoryTickers}
}
