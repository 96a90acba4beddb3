// Package evm implements the EVM chain port on go-ethereum's ethclient.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/ports"
)

const nativeTransferGas = 21000

// Client implements ports.EVMClient against a JSON-RPC endpoint.
type Client struct {
	eth          *ethclient.Client
	chainID      *big.Int
	explorerBase string
}

// Dial connects to the RPC endpoint and caches the chain id.
func Dial(ctx context.Context, rpcURL, explorerBase string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial EVM RPC: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	common.Logger.WithField("chain_id", chainID.String()).Info("connected to EVM RPC")
	return &Client{eth: eth, chainID: chainID, explorerBase: strings.TrimRight(explorerBase, "/")}, nil
}

// NativeBalance implements ports.EVMClient.
func (c *Client) NativeBalance(ctx context.Context, addr string) (*big.Int, error) {
	if !gethcommon.IsHexAddress(addr) {
		return nil, fmt.Errorf("invalid EVM address: %s", addr)
	}
	return c.eth.BalanceAt(ctx, gethcommon.HexToAddress(addr), nil)
}

// TokenBalance implements ports.EVMClient.
func (c *Client) TokenBalance(ctx context.Context, token, addr string) (*big.Int, uint8, error) {
	out, err := c.call(ctx, token, "decimals()(uint8)", nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read token decimals: %w", err)
	}
	decimals := out[0].(uint8)

	out, err = c.call(ctx, token, "balanceOf(address)(uint256)", []string{addr})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read token balance: %w", err)
	}
	return out[0].(*big.Int), decimals, nil
}

// SendNative implements ports.EVMClient.
func (c *Client) SendNative(ctx context.Context, privKeyHex, to string, wei *big.Int) (*ports.TxResult, error) {
	if !gethcommon.IsHexAddress(to) {
		return nil, fmt.Errorf("invalid recipient address: %s", to)
	}
	key, from, err := parseKey(privKeyHex)
	if err != nil {
		return nil, err
	}

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gas price: %w", err)
	}

	toAddr := gethcommon.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &toAddr,
		Value:    wei,
		Gas:      nativeTransferGas,
		GasPrice: gasPrice,
	})
	return c.signAndSend(ctx, key, tx)
}

// SendToken implements ports.EVMClient.
func (c *Client) SendToken(ctx context.Context, privKeyHex, token, to string, amount *big.Int) (*ports.TxResult, error) {
	return c.CallContract(ctx, privKeyHex, token, "transfer(address,uint256)",
		[]string{to, amount.String()})
}

// CallContract implements ports.EVMClient.
func (c *Client) CallContract(ctx context.Context, privKeyHex, contract, signature string, args []string) (*ports.TxResult, error) {
	if !gethcommon.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid contract address: %s", contract)
	}
	key, from, err := parseKey(privKeyHex)
	if err != nil {
		return nil, err
	}
	data, _, err := packCall(signature, args)
	if err != nil {
		return nil, err
	}

	contractAddr := gethcommon.HexToAddress(contract)
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &contractAddr, Data: data})
	if err != nil {
		return nil, fmt.Errorf("gas estimation failed: %w", err)
	}
	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contractAddr,
		Gas:      gas + gas/5,
		GasPrice: gasPrice,
		Data:     data,
	})
	return c.signAndSend(ctx, key, tx)
}

// ReadContract implements ports.EVMClient.
func (c *Client) ReadContract(ctx context.Context, contract, signature string, args []string) ([]string, error) {
	out, err := c.call(ctx, contract, signature, args)
	if err != nil {
		return nil, err
	}
	rendered := make([]string, len(out))
	for i, v := range out {
		rendered[i] = renderValue(v)
	}
	return rendered, nil
}

// TxStatus implements ports.EVMClient.
func (c *Client) TxStatus(ctx context.Context, txHash string) (bool, bool, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, gethcommon.HexToHash(txHash))
	if err == ethereum.NotFound {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read receipt: %w", err)
	}
	return true, receipt.Status == types.ReceiptStatusSuccessful, nil
}

// EstimateFee implements ports.EVMClient.
func (c *Client) EstimateFee(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gas price: %w", err)
	}
	return new(big.Int).Mul(gasPrice, big.NewInt(nativeTransferGas)), nil
}

func (c *Client) call(ctx context.Context, contract, signature string, args []string) ([]interface{}, error) {
	if !gethcommon.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid contract address: %s", contract)
	}
	data, outputs, err := packCall(signature, args)
	if err != nil {
		return nil, err
	}

	contractAddr := gethcommon.HexToAddress(contract)
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contractAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}
	if len(outputs) == 0 {
		return []interface{}{gethcommon.Bytes2Hex(raw)}, nil
	}
	values, err := outputs.Unpack(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode contract result: %w", err)
	}
	return values, nil
}

func (c *Client) signAndSend(ctx context.Context, key *keyPair, tx *types.Transaction) (*ports.TxResult, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), key.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	common.Logger.WithField("tx", hash).Info("broadcast EVM transaction")
	return &ports.TxResult{TxHash: hash, ExplorerURL: c.explorerURL(hash)}, nil
}

func (c *Client) explorerURL(txHash string) string {
	if c.explorerBase == "" {
		return ""
	}
	return c.explorerBase + "/tx/" + txHash
}

type keyPair struct {
	priv *ecdsa.PrivateKey
}

// parseKey decodes a hex private key and derives its address.
func parseKey(privKeyHex string) (*keyPair, gethcommon.Address, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privKeyHex, "0x"))
	if err != nil {
		return nil, gethcommon.Address{}, fmt.Errorf("invalid private key: %w", err)
	}
	return &keyPair{priv: priv}, crypto.PubkeyToAddress(priv.PublicKey), nil
}
