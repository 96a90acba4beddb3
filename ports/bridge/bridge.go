// Package bridge implements the cross-chain bridge port against a
// REST bridge aggregator.
package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/Naveen-807/Franky-Docs-sub000/ports"
	"github.com/Naveen-807/Franky-Docs-sub000/transport"
)

// Client implements ports.BridgeClient.
type Client struct {
	http    *transport.Client
	apiBase string
}

// New builds a client against the aggregator base URL.
func New(http *transport.Client, apiBase string) *Client {
	return &Client{http: http, apiBase: strings.TrimRight(apiBase, "/")}
}

type quoteResponse struct {
	AmountOut  string  `json:"amount_out"`
	FeePercent float64 `json:"fee_percent"`
	ETASeconds int     `json:"eta_seconds"`
}

// Quote implements ports.BridgeClient.
func (c *Client) Quote(ctx context.Context, fromAsset, toAsset, amount string) (*ports.BridgeQuote, error) {
	u := fmt.Sprintf("%s/v1/quote?from=%s&to=%s&amount=%s", c.apiBase, fromAsset, toAsset, amount)
	var resp quoteResponse
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("bridge quote failed: %w", err)
	}
	return &ports.BridgeQuote{
		FromAsset:  fromAsset,
		ToAsset:    toAsset,
		AmountIn:   amount,
		AmountOut:  resp.AmountOut,
		FeePercent: resp.FeePercent,
		ETASeconds: resp.ETASeconds,
	}, nil
}

type initiateRequest struct {
	SenderKey   string `json:"sender_key"`
	FromAsset   string `json:"from_asset"`
	ToAsset     string `json:"to_asset"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
}

type initiateResponse struct {
	TxHash      string `json:"tx_hash"`
	ExplorerURL string `json:"explorer_url"`
	Error       string `json:"error,omitempty"`
}

// Initiate implements ports.BridgeClient.
func (c *Client) Initiate(ctx context.Context, privKeyHex, fromAsset, toAsset, amount, destination string) (*ports.TxResult, error) {
	req := initiateRequest{
		SenderKey:   privKeyHex,
		FromAsset:   fromAsset,
		ToAsset:     toAsset,
		Amount:      amount,
		Destination: destination,
	}
	var resp initiateResponse
	if err := c.http.PostJSON(ctx, c.apiBase+"/v1/bridge", req, &resp); err != nil {
		return nil, fmt.Errorf("bridge transfer failed: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("bridge transfer rejected: %s", resp.Error)
	}
	if resp.TxHash == "" {
		return nil, fmt.Errorf("bridge returned no transaction hash")
	}
	return &ports.TxResult{TxHash: resp.TxHash, ExplorerURL: resp.ExplorerURL}, nil
}
