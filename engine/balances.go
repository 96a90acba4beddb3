package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dustin/go-humanize"

	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/docs"
	"github.com/Naveen-807/Franky-Docs-sub000/ports"
	"github.com/Naveen-807/Franky-Docs-sub000/vault"
)

// balanceLine is one row of the Balances table.
type balanceLine struct {
	Location string
	Asset    string
	Amount   string
	USD      float64
}

func (b balanceLine) display() string {
	s := fmt.Sprintf("%s %s", b.Amount, b.Asset)
	if b.USD > 0 {
		s += fmt.Sprintf(" ($%s)", humanize.CommafWithDigits(b.USD, 2))
	}
	return s
}

func (b balanceLine) row() docs.Row {
	amount := b.Amount
	if b.USD > 0 {
		amount += fmt.Sprintf(" ($%s)", humanize.CommafWithDigits(b.USD, 2))
	}
	return docs.Row{b.Location, b.Asset, amount}
}

// runBalances refreshes the Balances table of every document that has a
// wallet. The table is replaced atomically so partial states never show.
func (e *Engine) runBalances(ctx context.Context) error {
	tracked, err := e.store.ListDocs()
	if err != nil {
		return err
	}
	for i := range tracked {
		docID := tracked[i].DocID
		if !e.store.HasSecrets(docID) {
			continue
		}
		secrets, err := e.secretsFor(docID)
		if err != nil {
			common.DocLogger("balances", docID).Errorf("failed to open secrets: %v", err)
			continue
		}

		lines := e.collectBalances(ctx, docID, secrets)
		if len(lines) == 0 {
			continue
		}
		rows := make([]docs.Row, len(lines))
		for j, l := range lines {
			rows[j] = l.row()
		}
		if err := e.backend.ReplaceRows(ctx, docID, docs.TableBalances, rows); err != nil {
			common.DocLogger("balances", docID).Warnf("failed to replace balances: %v", err)
		}
	}
	return nil
}

// collectBalances queries every wired port. A failing port contributes
// nothing; the others still render.
func (e *Engine) collectBalances(ctx context.Context, docID string, secrets *vault.Secrets) []balanceLine {
	log := common.DocLogger("balances", docID)
	var lines []balanceLine

	if evm, err := e.ports.RequireEVM(); err == nil {
		if wei, err := evm.NativeBalance(ctx, secrets.EVM.Address); err != nil {
			log.Warnf("EVM balance failed: %v", err)
		} else {
			lines = append(lines, balanceLine{
				Location: "EVM",
				Asset:    "ETH",
				Amount:   ports.FromBaseUnits(wei, ports.EthDecimals),
				USD:      e.usdValue(ctx, "ETH", wei, ports.EthDecimals),
			})
		}
	}

	if evm, contract, err := e.ports.RequireUSDC(); err == nil {
		if units, decimals, err := evm.TokenBalance(ctx, contract, secrets.EVM.Address); err != nil {
			log.Warnf("USDC balance failed: %v", err)
		} else {
			lines = append(lines, balanceLine{
				Location: "EVM",
				Asset:    "USDC",
				Amount:   ports.FromBaseUnits(units, int(decimals)),
				USD:      e.usdValue(ctx, "USDC", units, int(decimals)),
			})
		}
	}

	if stx, err := e.ports.RequireStacks(); err == nil && secrets.Stacks != nil {
		if micro, err := stx.Balance(ctx, secrets.Stacks.Address); err != nil {
			log.Warnf("STX balance failed: %v", err)
		} else {
			lines = append(lines, balanceLine{
				Location: "STACKS",
				Asset:    "STX",
				Amount:   ports.FromBaseUnits(micro, ports.StxDecimals),
				USD:      e.usdValue(ctx, "STX", micro, ports.StxDecimals),
			})
		}
	}
	return lines
}

// usdValue converts a base-unit amount via the cached price; zero when
// no price is known.
func (e *Engine) usdValue(ctx context.Context, symbol string, units *big.Int, decimals int) float64 {
	snap, err := e.cachedPrice(symbol)
	if err != nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(units).Float64()
	scale := 1.0
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	return f / scale * snap.Mid
}
