package exchange

import "strings"

// SymbolStyle selects how a platform spells its trading pairs.
type SymbolStyle string

const (
	SymbolStyleCompact    SymbolStyle = "compact"    // BTCUSDT
	SymbolStyleDash       SymbolStyle = "dash"       // BTC-USDT
	SymbolStyleUnderscore SymbolStyle = "underscore" // btc_usdt
)

// knownQuotes lets compact symbols be split without a separator.
var knownQuotes = []string{"USDT", "USDC", "BUSD", "TUSD", "EUR", "BTC", "ETH", "BNB"}

// FormatSymbol renders a base/quote pair in the platform's native spelling.
func FormatSymbol(style SymbolStyle, base, quote string) string {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" {
		return ""
	}
	switch style {
	case SymbolStyleDash:
		return base + "-" + quote
	case SymbolStyleUnderscore:
		return strings.ToLower(base) + "_" + strings.ToLower(quote)
	default:
		return base + quote
	}
}

// ParseSymbol splits a platform-native symbol back into base and quote.
// Separator-less symbols are matched against the known quote currencies.
// Returns empty strings when the symbol cannot be split.
func ParseSymbol(raw string) (base, quote string) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", ""
	}
	for _, sep := range []string{"-", "_", "/"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return parts[0], parts[1]
		}
	}
	for _, q := range knownQuotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], q
		}
	}
	return "", ""
}
