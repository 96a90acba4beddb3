// Package faucet implements the testnet faucet port used to seed fresh
// demo wallets.
package faucet

import (
	"context"
	"fmt"
	"strings"

	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/transport"
)

// Client implements ports.FaucetClient.
type Client struct {
	http    *transport.Client
	apiBase string
}

// New builds a client against the faucet base URL.
func New(http *transport.Client, apiBase string) *Client {
	return &Client{http: http, apiBase: strings.TrimRight(apiBase, "/")}
}

type fundResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Fund implements ports.FaucetClient. Faucet failures for one chain do
// not abort funding of the other; the joined error reports both.
func (c *Client) Fund(ctx context.Context, evmAddr, stacksAddr string) error {
	var errs []string
	for chain, addr := range map[string]string{"evm": evmAddr, "stacks": stacksAddr} {
		if addr == "" {
			continue
		}
		req := map[string]string{"chain": chain, "address": addr}
		var resp fundResponse
		if err := c.http.PostJSON(ctx, c.apiBase+"/v1/fund", req, &resp); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", chain, err))
			continue
		}
		if !resp.Success {
			errs = append(errs, fmt.Sprintf("%s: %s", chain, resp.Error))
			continue
		}
		common.Logger.WithField("chain", chain).WithField("address", addr).Info("faucet funding requested")
	}
	if len(errs) > 0 {
		return fmt.Errorf("faucet funding failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
