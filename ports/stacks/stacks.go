// Package stacks implements the Stacks chain port. Reads go straight to
// a Hiro-compatible API node. Transaction signing has no maintained Go
// SDK, so sends are delegated to a signer sidecar that accepts the
// transfer parameters and returns the broadcast txid.
package stacks

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Naveen-807/Franky-Docs-sub000/ports"
	"github.com/Naveen-807/Franky-Docs-sub000/transport"
)

// Client implements ports.StacksClient.
type Client struct {
	http         *transport.Client
	apiBase      string
	signerBase   string
	explorerBase string
}

// New builds a client. apiBase is a Hiro-compatible node; signerBase is
// the signer sidecar, empty to disable sends.
func New(http *transport.Client, apiBase, signerBase, explorerBase string) *Client {
	return &Client{
		http:         http,
		apiBase:      strings.TrimRight(apiBase, "/"),
		signerBase:   strings.TrimRight(signerBase, "/"),
		explorerBase: strings.TrimRight(explorerBase, "/"),
	}
}

type stxBalanceResponse struct {
	Balance string `json:"balance"`
	Locked  string `json:"locked"`
}

// Balance implements ports.StacksClient.
func (c *Client) Balance(ctx context.Context, addr string) (*big.Int, error) {
	var resp stxBalanceResponse
	url := fmt.Sprintf("%s/extended/v1/address/%s/stx", c.apiBase, addr)
	if err := c.http.GetJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("failed to read STX balance: %w", err)
	}
	n, ok := new(big.Int).SetString(resp.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("unexpected balance value: %q", resp.Balance)
	}
	return n, nil
}

type transferRequest struct {
	SenderKey string `json:"sender_key"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Memo      string `json:"memo,omitempty"`
}

type transferResponse struct {
	TxID  string `json:"txid"`
	Error string `json:"error,omitempty"`
}

// Send implements ports.StacksClient.
func (c *Client) Send(ctx context.Context, privKeyHex, to string, microSTX *big.Int, memo string) (*ports.TxResult, error) {
	if c.signerBase == "" {
		return nil, ports.ErrDisabled
	}

	req := transferRequest{
		SenderKey: privKeyHex,
		Recipient: to,
		Amount:    microSTX.String(),
		Memo:      memo,
	}
	var resp transferResponse
	if err := c.http.PostJSON(ctx, c.signerBase+"/v1/transfer", req, &resp); err != nil {
		return nil, fmt.Errorf("STX transfer failed: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("STX transfer rejected: %s", resp.Error)
	}
	if resp.TxID == "" {
		return nil, fmt.Errorf("signer returned no txid")
	}

	txid := resp.TxID
	if !strings.HasPrefix(txid, "0x") {
		txid = "0x" + txid
	}
	result := &ports.TxResult{TxHash: txid}
	if c.explorerBase != "" {
		result.ExplorerURL = c.explorerBase + "/txid/" + txid
	}
	return result, nil
}

type txResponse struct {
	TxStatus string `json:"tx_status"`
}

// TxStatus implements ports.StacksClient. A pending transaction reports
// unconfirmed without error.
func (c *Client) TxStatus(ctx context.Context, txID string) (bool, bool, error) {
	var resp txResponse
	url := fmt.Sprintf("%s/extended/v1/tx/%s", c.apiBase, txID)
	if err := c.http.GetJSON(ctx, url, &resp); err != nil {
		if se, ok := err.(*transport.StatusError); ok && se.StatusCode == 404 {
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to read transaction: %w", err)
	}
	switch resp.TxStatus {
	case "success":
		return true, true, nil
	case "pending", "":
		return false, false, nil
	default:
		return true, false, nil
	}
}
