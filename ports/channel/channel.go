// Package channel implements the payment channel port against a state
// channel node's REST API.
package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/Naveen-807/Franky-Docs-sub000/ports"
	"github.com/Naveen-807/Franky-Docs-sub000/transport"
)

// Client implements ports.StateChannel.
type Client struct {
	http    *transport.Client
	apiBase string
}

// New builds a client against the channel node base URL.
func New(http *transport.Client, apiBase string) *Client {
	return &Client{http: http, apiBase: strings.TrimRight(apiBase, "/")}
}

type channelResponse struct {
	ChannelID string `json:"channel_id"`
	Peer      string `json:"peer"`
	Balance   string `json:"balance"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}

func (r *channelResponse) info() (*ports.ChannelInfo, error) {
	if r.Error != "" {
		return nil, fmt.Errorf("channel operation rejected: %s", r.Error)
	}
	if r.ChannelID == "" {
		return nil, fmt.Errorf("channel node returned no channel id")
	}
	return &ports.ChannelInfo{
		ChannelID: r.ChannelID,
		Peer:      r.Peer,
		Balance:   r.Balance,
		State:     r.State,
	}, nil
}

// Open implements ports.StateChannel.
func (c *Client) Open(ctx context.Context, privKeyHex, peer, deposit string) (*ports.ChannelInfo, error) {
	req := map[string]string{"key": privKeyHex, "peer": peer, "deposit": deposit}
	var resp channelResponse
	if err := c.http.PostJSON(ctx, c.apiBase+"/v1/channels", req, &resp); err != nil {
		return nil, fmt.Errorf("channel open failed: %w", err)
	}
	return resp.info()
}

// Pay implements ports.StateChannel.
func (c *Client) Pay(ctx context.Context, privKeyHex, channelID, amount string) (*ports.ChannelInfo, error) {
	req := map[string]string{"key": privKeyHex, "amount": amount}
	var resp channelResponse
	if err := c.http.PostJSON(ctx, c.apiBase+"/v1/channels/"+channelID+"/pay", req, &resp); err != nil {
		return nil, fmt.Errorf("channel payment failed: %w", err)
	}
	return resp.info()
}

type closeResponse struct {
	TxHash      string `json:"tx_hash"`
	ExplorerURL string `json:"explorer_url"`
	Error       string `json:"error,omitempty"`
}

// Close implements ports.StateChannel.
func (c *Client) Close(ctx context.Context, privKeyHex, channelID string) (*ports.TxResult, error) {
	req := map[string]string{"key": privKeyHex}
	var resp closeResponse
	if err := c.http.PostJSON(ctx, c.apiBase+"/v1/channels/"+channelID+"/close", req, &resp); err != nil {
		return nil, fmt.Errorf("channel close failed: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("channel close rejected: %s", resp.Error)
	}
	return &ports.TxResult{TxHash: resp.TxHash, ExplorerURL: resp.ExplorerURL}, nil
}

// Status implements ports.StateChannel.
func (c *Client) Status(ctx context.Context, channelID string) (*ports.ChannelInfo, error) {
	var resp channelResponse
	if err := c.http.GetJSON(ctx, c.apiBase+"/v1/channels/"+channelID, &resp); err != nil {
		return nil, fmt.Errorf("channel status failed: %w", err)
	}
	return resp.info()
}
