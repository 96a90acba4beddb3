// Package market implements the price feed port against a
// CoinGecko-compatible API.
package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Naveen-807/Franky-Docs-sub000/transport"
)

// symbolIDs maps the ticker symbols commands use to API asset ids.
var symbolIDs = map[string]string{
	"ETH":  "ethereum",
	"STX":  "blockstack",
	"USDC": "usd-coin",
	"BTC":  "bitcoin",
}

// Client implements ports.MarketData.
type Client struct {
	http    *transport.Client
	apiBase string
}

// New builds a client against a CoinGecko-compatible base URL.
func New(http *transport.Client, apiBase string) *Client {
	return &Client{http: http, apiBase: strings.TrimRight(apiBase, "/")}
}

// Price implements ports.MarketData.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	id, ok := symbolIDs[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("unknown symbol: %s", symbol)
	}

	u := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd",
		c.apiBase, url.QueryEscape(id))

	var resp map[string]map[string]float64
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return 0, fmt.Errorf("price lookup failed: %w", err)
	}
	quote, ok := resp[id]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", symbol)
	}
	price, ok := quote["usd"]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("no usd quote for %s", symbol)
	}
	return price, nil
}

// Supported reports whether a symbol has a price feed.
func Supported(symbol string) bool {
	_, ok := symbolIDs[strings.ToUpper(symbol)]
	return ok
}
