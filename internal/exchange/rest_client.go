package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"portfolio-tracker-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	recvWindow    = "5000" // How long a request is valid in milliseconds
	OrderTypeStop = "STOP_LOSS_LIMIT"
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// RestGateway is a Gateway backed by a binance-compatible REST API.
// The base URL, credentials and symbol spelling come from the platform
// config, so several exchanges can share this one implementation.
type RestGateway struct {
	name      string
	style     SymbolStyle
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

// ensure RestGateway implements the interface
var _ Gateway = (*RestGateway)(nil)

// NewRestGateway creates a gateway for one configured platform.
func NewRestGateway(name string, cfg config.Platform, logger *zap.Logger) *RestGateway {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// rate.Limit is requests per second.
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 10
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 5
	}
	limiter := rate.NewLimiter(rate.Limit(rateLimit), burst)

	style := SymbolStyle(cfg.SymbolStyle)
	if style == "" {
		style = SymbolStyleCompact
	}

	return &RestGateway{
		name:      name,
		style:     style,
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger.With(zap.String("platform", name)),
		limiter:   limiter,
	}
}

func (g *RestGateway) Name() string { return g.name }

func (g *RestGateway) Style() SymbolStyle { return g.style }

// sign creates a HMAC-SHA256 signature for the request.
func (g *RestGateway) sign(data string) string {
	h := hmac.New(sha256.New, []byte(g.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// signedParams appends timestamp, recvWindow and the signature to a query.
func (g *RestGateway) signedParams(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)
	queryString := params.Encode()
	params.Set("signature", g.sign(queryString))
	return params.Encode()
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (g *RestGateway) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		g.logger.Debug("Executing request", zap.String("method", method), zap.String("url", g.client.BaseURL+url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		g.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// tickerResponse is the wire shape of the ticker endpoint.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// FetchTicker fetches the latest price for a symbol.
func (g *RestGateway) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	req := g.client.R().
		SetQueryParam("symbol", symbol).
		SetResult(&tickerResponse{}).
		SetHeader("Content-Type", "application/json")

	resp, err := g.doRequest(ctx, "GET", "/ticker/price", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker for %s: %w", symbol, err)
	}

	result := resp.Result().(*tickerResponse)
	last, err := strconv.ParseFloat(result.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ticker price %q for %s: %w", result.Price, symbol, err)
	}

	return &Ticker{
		Symbol:    symbol,
		Last:      last,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// accountResponse is the wire shape of the account endpoint.
type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

// FetchBalances fetches the non-zero free balances of the account.
func (g *RestGateway) FetchBalances(ctx context.Context) ([]AssetBalance, error) {
	query := g.signedParams(url.Values{})

	req := g.client.R().
		SetHeader("X-MBX-APIKEY", g.apiKey).
		SetQueryString(query).
		SetResult(&accountResponse{})

	resp, err := g.doRequest(ctx, "GET", "/account", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get account balances: %w", err)
	}

	result := resp.Result().(*accountResponse)
	balances := make([]AssetBalance, 0, len(result.Balances))
	for _, b := range result.Balances {
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil || free <= 0 {
			continue
		}
		balances = append(balances, AssetBalance{Asset: b.Asset, Amount: free})
	}
	return balances, nil
}

// myTradeResponse is the wire shape of one entry of the myTrades endpoint.
type myTradeResponse struct {
	Symbol          string `json:"symbol"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
}

// FetchMyTrades fetches the account's trade history for a symbol.
func (g *RestGateway) FetchMyTrades(ctx context.Context, symbol string) ([]TradeRecord, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	query := g.signedParams(params)

	var fills []myTradeResponse
	req := g.client.R().
		SetHeader("X-MBX-APIKEY", g.apiKey).
		SetQueryString(query).
		SetResult(&fills)

	resp, err := g.doRequest(ctx, "GET", "/myTrades", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades for %s: %w", symbol, err)
	}

	result := *resp.Result().(*[]myTradeResponse)
	trades := make([]TradeRecord, 0, len(result))
	for _, f := range result {
		price, _ := strconv.ParseFloat(f.Price, 64)
		amount, _ := strconv.ParseFloat(f.Qty, 64)
		fee, _ := strconv.ParseFloat(f.Commission, 64)
		side := "sell"
		if f.IsBuyer {
			side = "buy"
		}
		trades = append(trades, TradeRecord{
			Symbol:      f.Symbol,
			Side:        side,
			Price:       price,
			Amount:      amount,
			Fee:         fee,
			FeeCurrency: f.CommissionAsset,
			Timestamp:   f.Time,
		})
	}
	return trades, nil
}

// orderResponse is the wire shape of one resting order.
type orderResponse struct {
	OrderID   int64  `json:"orderId"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	OrigQty   string `json:"origQty"`
	StopPrice string `json:"stopPrice"`
}

func (o orderResponse) toOrder() Order {
	amount, _ := strconv.ParseFloat(o.OrigQty, 64)
	stop, _ := strconv.ParseFloat(o.StopPrice, 64)
	return Order{
		ID:        strconv.FormatInt(o.OrderID, 10),
		Symbol:    o.Symbol,
		Side:      o.Side,
		Type:      o.Type,
		Amount:    amount,
		StopPrice: stop,
	}
}

// FetchOpenOrders fetches the resting orders for a symbol.
func (g *RestGateway) FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	query := g.signedParams(params)

	var raw []orderResponse
	req := g.client.R().
		SetHeader("X-MBX-APIKEY", g.apiKey).
		SetQueryString(query).
		SetResult(&raw)

	resp, err := g.doRequest(ctx, "GET", "/openOrders", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders for %s: %w", symbol, err)
	}

	result := *resp.Result().(*[]orderResponse)
	orders := make([]Order, 0, len(result))
	for _, o := range result {
		orders = append(orders, o.toOrder())
	}
	return orders, nil
}

// CancelOrders cancels all resting orders for a symbol in one bunched call.
func (g *RestGateway) CancelOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	query := g.signedParams(params)

	req := g.client.R().
		SetHeader("X-MBX-APIKEY", g.apiKey).
		SetQueryString(query)

	if _, err := g.doRequest(ctx, "DELETE", "/openOrders", req); err != nil {
		return fmt.Errorf("failed to cancel orders for %s: %w", symbol, err)
	}

	g.logger.Info("Cancelled all open orders", zap.String("symbol", symbol))
	return nil
}

// PlaceStopOrder places a stop order for the given amount.
func (g *RestGateway) PlaceStopOrder(ctx context.Context, symbol, side string, amount, stopPrice float64) (*Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", OrderTypeStop)
	params.Set("quantity", strconv.FormatFloat(amount, 'f', -1, 64))
	params.Set("stopPrice", strconv.FormatFloat(stopPrice, 'f', -1, 64))
	params.Set("price", strconv.FormatFloat(stopPrice, 'f', -1, 64))
	params.Set("timeInForce", "GTC")
	body := g.signedParams(params)

	req := g.client.R().
		SetHeader("X-MBX-APIKEY", g.apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(body).
		SetResult(&orderResponse{})

	resp, err := g.doRequest(ctx, "POST", "/order", req)
	if err != nil {
		g.logger.Error("Failed to place stop order",
			zap.Error(err),
			zap.String("symbol", symbol),
		)
		return nil, fmt.Errorf("failed to place stop order: %w", err)
	}

	result := resp.Result().(*orderResponse)
	order := result.toOrder()
	g.logger.Info("Successfully placed stop order",
		zap.String("symbol", symbol),
		zap.Float64("amount", amount),
		zap.Float64("stop_price", stopPrice),
	)
	return &order, nil
}
