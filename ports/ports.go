// Package ports defines the outbound capability interfaces the engine
// executes commands through. Each integration lives in its own
// subpackage; a deployment wires only the ports it has credentials for,
// and commands touching an unwired port fail cleanly with ErrDisabled.
package ports

import (
	"context"
	"errors"
	"math/big"
)

// ErrDisabled is returned when a command needs an integration that is
// not configured for this deployment.
var ErrDisabled = errors.New("integration not configured")

// TxResult is the outcome of a submitted transaction.
type TxResult struct {
	TxHash      string
	ExplorerURL string
}

// EVMClient covers the EVM chain surface: native and ERC-20 transfers,
// balances, arbitrary contract calls, and receipt lookups.
type EVMClient interface {
	// NativeBalance returns the balance of addr in wei.
	NativeBalance(ctx context.Context, addr string) (*big.Int, error)

	// TokenBalance returns the ERC-20 balance of addr in the token's
	// smallest unit, plus the token's decimals.
	TokenBalance(ctx context.Context, token, addr string) (*big.Int, uint8, error)

	// SendNative transfers wei from the key's address to another.
	SendNative(ctx context.Context, privKeyHex, to string, wei *big.Int) (*TxResult, error)

	// SendToken transfers an ERC-20 amount in the token's smallest unit.
	SendToken(ctx context.Context, privKeyHex, token, to string, amount *big.Int) (*TxResult, error)

	// CallContract submits a state-changing contract call. Args are
	// already ABI-typed values matching the method signature.
	CallContract(ctx context.Context, privKeyHex, contract, signature string, args []string) (*TxResult, error)

	// ReadContract performs an eth_call and renders the results.
	ReadContract(ctx context.Context, contract, signature string, args []string) ([]string, error)

	// TxStatus reports whether a transaction is mined and succeeded.
	TxStatus(ctx context.Context, txHash string) (confirmed bool, success bool, err error)

	// EstimateFee returns the projected fee in wei for a plain native
	// transfer, used for balance preflight.
	EstimateFee(ctx context.Context) (*big.Int, error)
}

// StacksClient covers the Stacks chain surface.
type StacksClient interface {
	// Balance returns the STX balance of addr in microSTX.
	Balance(ctx context.Context, addr string) (*big.Int, error)

	// Send transfers microSTX with an optional memo.
	Send(ctx context.Context, privKeyHex, to string, microSTX *big.Int, memo string) (*TxResult, error)

	// TxStatus reports whether a transaction is anchored and succeeded.
	TxStatus(ctx context.Context, txID string) (confirmed bool, success bool, err error)
}

// BridgeQuote is a cross-chain transfer estimate.
type BridgeQuote struct {
	FromAsset  string
	ToAsset    string
	AmountIn   string
	AmountOut  string
	FeePercent float64
	ETASeconds int
}

// BridgeClient moves value between the two chains.
type BridgeClient interface {
	Quote(ctx context.Context, fromAsset, toAsset, amount string) (*BridgeQuote, error)
	Initiate(ctx context.Context, privKeyHex, fromAsset, toAsset, amount, destination string) (*TxResult, error)
}

// MarketData supplies spot prices.
type MarketData interface {
	// Price returns the USD spot price for a symbol such as "ETH" or
	// "STX".
	Price(ctx context.Context, symbol string) (float64, error)
}

// ChannelInfo describes one payment channel.
type ChannelInfo struct {
	ChannelID string
	Peer      string
	Balance   string
	State     string
}

// StateChannel is the off-chain payment channel surface.
type StateChannel interface {
	Open(ctx context.Context, privKeyHex, peer, deposit string) (*ChannelInfo, error)
	Pay(ctx context.Context, privKeyHex, channelID, amount string) (*ChannelInfo, error)
	Close(ctx context.Context, privKeyHex, channelID string) (*TxResult, error)
	Status(ctx context.Context, channelID string) (*ChannelInfo, error)
}

// FaucetClient requests testnet funds for a fresh wallet.
type FaucetClient interface {
	Fund(ctx context.Context, evmAddr, stacksAddr string) error
}

// Set bundles the wired integrations. Nil fields are unconfigured.
type Set struct {
	EVM     EVMClient
	Stacks  StacksClient
	Bridge  BridgeClient
	Market  MarketData
	Channel StateChannel
	Faucet  FaucetClient

	// MarketFallback is consulted when Market fails or returns zero.
	MarketFallback MarketData

	// USDCContract is the ERC-20 contract address used by the USDC
	// operations. Empty disables them.
	USDCContract string
}

// RequireEVM returns the EVM client or ErrDisabled.
func (s *Set) RequireEVM() (EVMClient, error) {
	if s == nil || s.EVM == nil {
		return nil, ErrDisabled
	}
	return s.EVM, nil
}

// RequireStacks returns the Stacks client or ErrDisabled.
func (s *Set) RequireStacks() (StacksClient, error) {
	if s == nil || s.Stacks == nil {
		return nil, ErrDisabled
	}
	return s.Stacks, nil
}

// RequireBridge returns the bridge client or ErrDisabled.
func (s *Set) RequireBridge() (BridgeClient, error) {
	if s == nil || s.Bridge == nil {
		return nil, ErrDisabled
	}
	return s.Bridge, nil
}

// RequireChannel returns the state channel client or ErrDisabled.
func (s *Set) RequireChannel() (StateChannel, error) {
	if s == nil || s.Channel == nil {
		return nil, ErrDisabled
	}
	return s.Channel, nil
}

// RequireUSDC returns the EVM client and USDC contract, or ErrDisabled
// when either is missing.
func (s *Set) RequireUSDC() (EVMClient, string, error) {
	evm, err := s.RequireEVM()
	if err != nil {
		return nil, "", err
	}
	if s.USDCContract == "" {
		return nil, "", ErrDisabled
	}
	return evm, s.USDCContract, nil
}
