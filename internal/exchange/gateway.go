package exchange

import "context"

// Ticker is the latest traded price for a symbol.
type Ticker struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Timestamp int64   `json:"timestamp"`
}

// AssetBalance is the free balance of one asset as reported by a platform.
type AssetBalance struct {
	Asset  string  `json:"asset"`
	Amount float64 `json:"amount"`
}

// Order is a resting order as reported by a platform.
type Order struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	StopPrice float64 `json:"stop_price"`
}

// TradeRecord is one fill from a platform's trade history.
type TradeRecord struct {
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Price       float64 `json:"price"`
	Amount      float64 `json:"amount"`
	Fee         float64 `json:"fee"`
	FeeCurrency string  `json:"fee_currency"`
	Timestamp   int64   `json:"timestamp"`
}

// Gateway wraps one exchange's native API behind a uniform surface.
// Symbols passed in are already in the platform's native spelling; use
// FormatSymbol with the gateway's style to build them.
type Gateway interface {
	// Name returns the platform identifier, e.g. "binance".
	Name() string

	// Style returns the platform's symbol spelling.
	Style() SymbolStyle

	// FetchTicker returns the latest price for a symbol.
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)

	// FetchBalances returns the non-zero free balances of the account.
	FetchBalances(ctx context.Context) ([]AssetBalance, error)

	// FetchMyTrades returns the account's trade history for a symbol.
	FetchMyTrades(ctx context.Context, symbol string) ([]TradeRecord, error)

	// FetchOpenOrders returns the resting orders for a symbol.
	FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error)

	// CancelOrders cancels all resting orders for a symbol in one call.
	CancelOrders(ctx context.Context, symbol string) error

	// PlaceStopOrder places a stop order for the given amount.
	PlaceStopOrder(ctx context.Context, symbol, side string, amount, stopPrice float64) (*Order, error)
}
