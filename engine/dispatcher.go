package engine

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Naveen-807/Franky-Docs-sub000/command"
	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/docs"
	"github.com/Naveen-807/Franky-Docs-sub000/ports"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
	"github.com/Naveen-807/Franky-Docs-sub000/vault"
)

// Result is a successful command execution.
type Result struct {
	Text  string
	TxRef string
}

const (
	cfgKeyAutoRebalance  = "AUTO_REBALANCE"
	cfgKeyChannelSession = "CHANNEL_SESSION"
	cfgKeyTreasuryAddr   = "TREASURY_ADDRESS"
	cfgKeyStatus         = "STATUS"
	cfgKeyEVMAddress     = "EVM_ADDRESS"
	cfgKeyStxAddress     = "STX_ADDRESS"
	alertKeyPrefix       = "ALERT_"

	faucetWait = 20 * time.Second
)

// Execute runs one parsed command against the integration ports and
// returns its result text. It never mutates command state in the
// repository; the calling tick owns the status transitions. Secrets may
// be nil; arms that need a wallet either provision one (setup, balance
// queries) or fail with a precondition error.
func (e *Engine) Execute(ctx context.Context, docID, cmdID string, p *command.Parsed, secrets *vault.Secrets) (*Result, error) {
	switch p.Kind {
	case command.KindSetup:
		return e.execSetup(ctx, docID)
	case command.KindStatus:
		return e.execStatus(ctx, docID)
	case command.KindTreasury:
		return e.execTreasury(ctx, docID, secrets)
	case command.KindHelp:
		return &Result{Text: helpText}, nil

	case command.KindPrice, command.KindEvmPrice:
		return e.execPrice(ctx, "ETH")
	case command.KindStxPrice:
		return e.execPrice(ctx, "STX")

	case command.KindBalance:
		return e.execTreasury(ctx, docID, secrets)
	case command.KindEvmBalance:
		return e.execEvmBalance(ctx, docID, p.Address, secrets)
	case command.KindUsdcBalance:
		return e.execUsdcBalance(ctx, docID, p.Address, secrets)
	case command.KindStxBalance:
		return e.execStxBalance(ctx, docID, p.Address, secrets)

	case command.KindHistory, command.KindEvmHistory, command.KindStxHistory:
		return e.execHistory(docID, p.Limit)

	case command.KindEvmSend:
		return e.execEvmSend(ctx, docID, p, secrets)
	case command.KindEvmTxStatus:
		return e.execEvmTxStatus(ctx, p.TxID)
	case command.KindStxTxStatus:
		return e.execStxTxStatus(ctx, p.TxID)

	case command.KindContractCall:
		return e.execContractCall(ctx, p, secrets)
	case command.KindContractRead:
		return e.execContractRead(ctx, p)

	case command.KindUsdcSend:
		return e.execUsdcSend(ctx, p, secrets)
	case command.KindUsdcApprove:
		return e.execUsdcApprove(ctx, p, secrets)

	case command.KindStxSend:
		return e.execStxSend(ctx, p, secrets)

	case command.KindPayout:
		return e.execPayout(ctx, p, secrets)

	case command.KindBridge:
		return e.execBridge(ctx, p, secrets)
	case command.KindRebalance:
		return e.execRebalance(ctx, docID, p.TargetPct, secrets)
	case command.KindAutoRebalance:
		return e.execAutoRebalance(ctx, docID, p.Enabled)

	case command.KindStopLoss, command.KindTakeProfit:
		return e.execArmOrder(ctx, docID, p)
	case command.KindCancelOrder:
		return e.execCancelOrder(ctx, docID, p.ID)
	case command.KindListOrders:
		return e.execListOrders(docID)

	case command.KindSchedule:
		return e.execSchedule(docID, p)
	case command.KindCancelSchedule:
		return e.execCancelSchedule(docID, p.ID)
	case command.KindListSchedules:
		return e.execListSchedules(docID)

	case command.KindAlertThreshold:
		return e.execAlertThreshold(docID, p)
	case command.KindAlerts:
		return e.execAlerts(docID)

	case command.KindChannelOpen:
		return e.execChannelOpen(ctx, docID, p.Amount, secrets)
	case command.KindChannelPay:
		return e.execChannelPay(ctx, docID, p.Amount, secrets)
	case command.KindChannelClose:
		return e.execChannelClose(ctx, docID, secrets)
	case command.KindChannelStatus:
		return e.execChannelStatus(ctx, docID)

	case command.KindFaucet:
		return e.execFaucet(ctx, docID, secrets)
	}
	return nil, fmt.Errorf("unhandled command kind %q", p.Kind)
}

const helpText = "Commands: DW SETUP | STATUS | TREASURY | PRICE | BALANCE | HISTORY [n] | " +
	"EVM_SEND <addr> <amt> | USDC_SEND <addr> <amt> | STX_SEND <addr> <microstx> | " +
	"PAYOUT <amt> <asset> TO <addr> | BRIDGE <from> <to> <amt> <addr> | " +
	"STOP_LOSS <base> <qty> <price> | TAKE_PROFIT <base> <qty> <price> | " +
	"SCHEDULE EVERY <N>h: <cmd> | ALERT_THRESHOLD <coin> <price> | " +
	"CHANNEL_OPEN <amt> | CHANNEL_PAY <amt> | FAUCET | HELP"

// execSetup provisions the wallet bundle, publishes the addresses to the
// Config table, and in demo mode requests faucet funding with a bounded
// wait.
func (e *Engine) execSetup(ctx context.Context, docID string) (*Result, error) {
	secrets, err := e.provisionSecrets(ctx, docID)
	if err != nil {
		return nil, err
	}
	stacksAddr := ""
	if secrets.Stacks != nil {
		stacksAddr = secrets.Stacks.Address
	}

	if err := e.setConfigValue(ctx, docID, cfgKeyEVMAddress, secrets.EVM.Address); err != nil {
		return nil, fmt.Errorf("failed to publish EVM address: %w", err)
	}
	if stacksAddr != "" {
		if err := e.setConfigValue(ctx, docID, cfgKeyStxAddress, stacksAddr); err != nil {
			return nil, fmt.Errorf("failed to publish STX address: %w", err)
		}
	}
	if err := e.setConfigValue(ctx, docID, cfgKeyStatus, "READY"); err != nil {
		return nil, fmt.Errorf("failed to publish status: %w", err)
	}

	if e.cfg.Engine.DemoMode && e.ports.Faucet != nil {
		fctx, cancel := context.WithTimeout(ctx, faucetWait)
		if err := e.ports.Faucet.Fund(fctx, secrets.EVM.Address, stacksAddr); err != nil {
			common.DocLogger("executor", docID).Warnf("faucet funding failed: %v", err)
		} else {
			e.audit(docID, "faucet funding requested for fresh wallet")
		}
		cancel()
	}

	text := fmt.Sprintf("EVM=%s", secrets.EVM.Address)
	if stacksAddr != "" {
		text += fmt.Sprintf(" STX=%s", stacksAddr)
	}
	return &Result{Text: text}, nil
}

func (e *Engine) execStatus(ctx context.Context, docID string) (*Result, error) {
	doc, err := e.store.Doc(docID)
	if err != nil {
		return nil, err
	}
	queued, err := e.store.ListQueuedCommands(docID)
	if err != nil {
		return nil, err
	}
	recent, err := e.store.ListRecentCommands(docID, 50)
	if err != nil {
		return nil, err
	}
	var waiting, executed, failed int
	for i := range recent {
		switch recent[i].Status {
		case repo.StatusPendingApproval:
			waiting++
		case repo.StatusExecuted:
			executed++
		case repo.StatusFailed:
			failed++
		}
	}

	var sb strings.Builder
	if doc.PrimaryAddress == "" {
		sb.WriteString("wallet: not set up (run DW SETUP)")
	} else {
		fmt.Fprintf(&sb, "wallet: EVM=%s", doc.PrimaryAddress)
		if doc.SecondaryAddress != "" {
			fmt.Fprintf(&sb, " STX=%s", doc.SecondaryAddress)
		}
	}
	fmt.Fprintf(&sb, " | awaiting approval=%d queued=%d executed=%d failed=%d",
		waiting, len(queued), executed, failed)
	if len(queued) > 0 {
		fmt.Fprintf(&sb, " next=%s", queued[0].CmdID)
	}
	return &Result{Text: sb.String()}, nil
}

// execTreasury renders every reachable balance with USD equivalents from
// the cached prices. A wallet is provisioned on demand so the read never
// fails on a fresh document.
func (e *Engine) execTreasury(ctx context.Context, docID string, secrets *vault.Secrets) (*Result, error) {
	var err error
	if secrets == nil {
		secrets, err = e.provisionSecrets(ctx, docID)
		if err != nil {
			return nil, err
		}
	}

	lines := e.collectBalances(ctx, docID, secrets)
	if len(lines) == 0 {
		return &Result{Text: "no integrations configured"}, nil
	}
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.display()
	}
	return &Result{Text: strings.Join(parts, " | ")}, nil
}

func (e *Engine) execPrice(ctx context.Context, symbol string) (*Result, error) {
	snap, err := e.fetchPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("%s = $%s (%s)", symbol, humanize.CommafWithDigits(snap.Mid, 4), snap.Source)}, nil
}

func (e *Engine) execEvmBalance(ctx context.Context, docID, addr string, secrets *vault.Secrets) (*Result, error) {
	evm, err := e.ports.RequireEVM()
	if err != nil {
		return nil, err
	}
	addr, err = e.resolveEVMAddr(ctx, docID, addr, secrets)
	if err != nil {
		return nil, err
	}
	wei, err := evm.NativeBalance(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("%s ETH (%s)", ports.FromBaseUnits(wei, ports.EthDecimals), addr)}, nil
}

func (e *Engine) execUsdcBalance(ctx context.Context, docID, addr string, secrets *vault.Secrets) (*Result, error) {
	evm, contract, err := e.ports.RequireUSDC()
	if err != nil {
		return nil, err
	}
	addr, err = e.resolveEVMAddr(ctx, docID, addr, secrets)
	if err != nil {
		return nil, err
	}
	units, decimals, err := evm.TokenBalance(ctx, contract, addr)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("%s USDC (%s)", ports.FromBaseUnits(units, int(decimals)), addr)}, nil
}

func (e *Engine) execStxBalance(ctx context.Context, docID, addr string, secrets *vault.Secrets) (*Result, error) {
	stx, err := e.ports.RequireStacks()
	if err != nil {
		return nil, err
	}
	if addr == "" {
		var err error
		if secrets == nil {
			secrets, err = e.provisionSecrets(ctx, docID)
			if err != nil {
				return nil, err
			}
		}
		if secrets.Stacks == nil {
			return nil, fmt.Errorf("no STX wallet for this document")
		}
		addr = secrets.Stacks.Address
	}
	micro, err := stx.Balance(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("%s STX (%s)", ports.FromBaseUnits(micro, ports.StxDecimals), addr)}, nil
}

// execHistory renders the document's own transaction history from the
// recent-activity records.
func (e *Engine) execHistory(docID string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	acts, err := e.store.ListActivity(docID, limit)
	if err != nil {
		return nil, err
	}
	if len(acts) == 0 {
		return &Result{Text: "no activity yet"}, nil
	}
	parts := make([]string, len(acts))
	for i, a := range acts {
		parts[i] = fmt.Sprintf("%s %s %s", a.Timestamp, a.Type, a.Details)
		if a.TxRef != "" {
			parts[i] += " " + a.TxRef
		}
	}
	return &Result{Text: strings.Join(parts, " ; ")}, nil
}

// execEvmSend transfers native currency after a gas pre-flight: the
// wallet must hold the amount plus the projected fee.
func (e *Engine) execEvmSend(ctx context.Context, docID string, p *command.Parsed, secrets *vault.Secrets) (*Result, error) {
	evm, err := e.ports.RequireEVM()
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, fmt.Errorf("wallet not set up; run DW SETUP first")
	}
	wei, err := ports.ToBaseUnits(p.Amount, ports.EthDecimals)
	if err != nil {
		return nil, err
	}

	if err := e.gasPreflight(ctx, evm, secrets.EVM.Address, wei); err != nil {
		return nil, err
	}
	res, err := evm.SendNative(ctx, secrets.EVM.PrivateKey, p.To, wei)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("sent %s ETH to %s", p.Amount, p.To), TxRef: res.TxHash}, nil
}

// gasPreflight rejects a send that cannot cover amount plus fee.
func (e *Engine) gasPreflight(ctx context.Context, evm ports.EVMClient, from string, wei *big.Int) error {
	balance, err := evm.NativeBalance(ctx, from)
	if err != nil {
		return fmt.Errorf("balance pre-flight failed: %w", err)
	}
	fee, err := evm.EstimateFee(ctx)
	if err != nil {
		return fmt.Errorf("fee pre-flight failed: %w", err)
	}
	need := new(big.Int).Add(wei, fee)
	if balance.Cmp(need) < 0 {
		return fmt.Errorf("insufficient funds: have %s ETH, need %s ETH incl. gas",
			ports.FromBaseUnits(balance, ports.EthDecimals), ports.FromBaseUnits(need, ports.EthDecimals))
	}
	return nil
}

func (e *Engine) execEvmTxStatus(ctx context.Context, txID string) (*Result, error) {
	evm, err := e.ports.RequireEVM()
	if err != nil {
		return nil, err
	}
	confirmed, success, err := evm.TxStatus(ctx, txID)
	if err != nil {
		return nil, err
	}
	return &Result{Text: txStatusText(txID, confirmed, success)}, nil
}

func (e *Engine) execStxTxStatus(ctx context.Context, txID string) (*Result, error) {
	stx, err := e.ports.RequireStacks()
	if err != nil {
		return nil, err
	}
	confirmed, success, err := stx.TxStatus(ctx, txID)
	if err != nil {
		return nil, err
	}
	return &Result{Text: txStatusText(txID, confirmed, success)}, nil
}

func txStatusText(txID string, confirmed, success bool) string {
	switch {
	case !confirmed:
		return fmt.Sprintf("%s: pending", txID)
	case success:
		return fmt.Sprintf("%s: confirmed", txID)
	default:
		return fmt.Sprintf("%s: failed on chain", txID)
	}
}

func (e *Engine) execContractCall(ctx context.Context, p *command.Parsed, secrets *vault.Secrets) (*Result, error) {
	evm, err := e.ports.RequireEVM()
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, fmt.Errorf("wallet not set up; run DW SETUP first")
	}
	res, err := evm.CallContract(ctx, secrets.EVM.PrivateKey, p.Contract, p.Method, p.Args)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("called %s on %s", p.Method, p.Contract), TxRef: res.TxHash}, nil
}

func (e *Engine) execContractRead(ctx context.Context, p *command.Parsed) (*Result, error) {
	evm, err := e.ports.RequireEVM()
	if err != nil {
		return nil, err
	}
	values, err := evm.ReadContract(ctx, p.Contract, p.Method, p.Args)
	if err != nil {
		return nil, err
	}
	return &Result{Text: strings.Join(values, ", ")}, nil
}

func (e *Engine) execUsdcSend(ctx context.Context, p *command.Parsed, secrets *vault.Secrets) (*Result, error) {
	evm, contract, err := e.ports.RequireUSDC()
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, fmt.Errorf("wallet not set up; run DW SETUP first")
	}
	_, decimals, err := evm.TokenBalance(ctx, contract, secrets.EVM.Address)
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	units, err := ports.ToBaseUnits(p.Amount, int(decimals))
	if err != nil {
		return nil, err
	}
	res, err := evm.SendToken(ctx, secrets.EVM.PrivateKey, contract, p.To, units)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("sent %s USDC to %s", p.Amount, p.To), TxRef: res.TxHash}, nil
}

func (e *Engine) execUsdcApprove(ctx context.Context, p *command.Parsed, secrets *vault.Secrets) (*Result, error) {
	evm, contract, err := e.ports.RequireUSDC()
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, fmt.Errorf("wallet not set up; run DW SETUP first")
	}
	_, decimals, err := evm.TokenBalance(ctx, contract, secrets.EVM.Address)
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	units, err := ports.ToBaseUnits(p.Amount, int(decimals))
	if err != nil {
		return nil, err
	}
	res, err := evm.CallContract(ctx, secrets.EVM.PrivateKey, contract,
		"approve(address,uint256)", []string{p.To, units.String()})
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("approved %s USDC for %s", p.Amount, p.To), TxRef: res.TxHash}, nil
}

// execStxSend transfers STX. Amounts on the STX surface are microSTX.
func (e *Engine) execStxSend(ctx context.Context, p *command.Parsed, secrets *vault.Secrets) (*Result, error) {
	stx, err := e.ports.RequireStacks()
	if err != nil {
		return nil, err
	}
	if secrets == nil || secrets.Stacks == nil {
		return nil, fmt.Errorf("no STX wallet; run DW SETUP first")
	}
	micro, err := ports.ToBaseUnits(p.Amount, 0)
	if err != nil {
		return nil, fmt.Errorf("STX amounts are whole microSTX: %w", err)
	}
	res, err := stx.Send(ctx, secrets.Stacks.PrivateKey, p.To, micro, "")
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:  fmt.Sprintf("sent %s STX to %s", ports.FromBaseUnits(micro, ports.StxDecimals), p.To),
		TxRef: res.TxHash,
	}, nil
}

// execPayout routes a payout to the port matching the asset.
func (e *Engine) execPayout(ctx context.Context, p *command.Parsed, secrets *vault.Secrets) (*Result, error) {
	switch strings.ToUpper(p.Asset) {
	case "ETH":
		return e.execEvmSend(ctx, "", &command.Parsed{Kind: command.KindEvmSend, To: p.To, Amount: p.Amount}, secrets)
	case "USDC":
		return e.execUsdcSend(ctx, &command.Parsed{Kind: command.KindUsdcSend, To: p.To, Amount: p.Amount}, secrets)
	case "STX":
		micro, err := ports.ToBaseUnits(p.Amount, ports.StxDecimals)
		if err != nil {
			return nil, err
		}
		return e.execStxSend(ctx, &command.Parsed{Kind: command.KindStxSend, To: p.To, Amount: micro.String()}, secrets)
	}
	return nil, fmt.Errorf("unsupported payout asset %q", p.Asset)
}

func (e *Engine) execBridge(ctx context.Context, p *command.Parsed, secrets *vault.Secrets) (*Result, error) {
	bridge, err := e.ports.RequireBridge()
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, fmt.Errorf("wallet not set up; run DW SETUP first")
	}

	quote, err := bridge.Quote(ctx, p.FromChain, p.ToChain, p.Amount)
	if err != nil {
		return nil, err
	}
	res, err := bridge.Initiate(ctx, secrets.EVM.PrivateKey, p.FromChain, p.ToChain, p.Amount, p.To)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text: fmt.Sprintf("bridging %s %s -> %s %s (fee %.2f%%, eta %ds)",
			p.Amount, p.FromChain, quote.AmountOut, p.ToChain, quote.FeePercent, quote.ETASeconds),
		TxRef: res.TxHash,
	}, nil
}

// execRebalance compares the USD value of the two chains against the
// target split and bridges the excess. Without a bridge port it renders
// the plan only.
func (e *Engine) execRebalance(ctx context.Context, docID string, targetPct int, secrets *vault.Secrets) (*Result, error) {
	if secrets == nil {
		return nil, fmt.Errorf("wallet not set up; run DW SETUP first")
	}

	evmUSD, stxUSD, err := e.treasuryUSD(ctx, secrets)
	if err != nil {
		return nil, err
	}
	total := evmUSD + stxUSD
	if total <= 0 {
		return &Result{Text: "treasury is empty; nothing to rebalance"}, nil
	}

	wantEVM := total * float64(targetPct) / 100
	diff := evmUSD - wantEVM
	plan := fmt.Sprintf("EVM $%s / STX $%s, target %d%% EVM",
		humanize.CommafWithDigits(evmUSD, 2), humanize.CommafWithDigits(stxUSD, 2), targetPct)
	if diff > -1 && diff < 1 {
		return &Result{Text: plan + " - already balanced"}, nil
	}

	from, to := "ETH", "STX"
	move := diff
	destination := ""
	if secrets.Stacks != nil {
		destination = secrets.Stacks.Address
	}
	if diff < 0 {
		from, to = "STX", "ETH"
		move = -diff
		destination = secrets.EVM.Address
	}

	bridge, err := e.ports.RequireBridge()
	if err != nil {
		return &Result{Text: plan + fmt.Sprintf(" - would move $%s %s->%s (bridge disabled)",
			humanize.CommafWithDigits(move, 2), from, to)}, nil
	}

	price, err := e.fetchPrice(ctx, from)
	if err != nil {
		return nil, err
	}
	amount := fmt.Sprintf("%.6f", move/price.Mid)
	res, err := bridge.Initiate(ctx, secrets.EVM.PrivateKey, from, to, amount, destination)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:  plan + fmt.Sprintf(" - bridging %s %s -> %s", amount, from, to),
		TxRef: res.TxHash,
	}, nil
}

func (e *Engine) execAutoRebalance(ctx context.Context, docID string, enabled bool) (*Result, error) {
	value := "OFF"
	if enabled {
		value = "ON"
	}
	if err := e.store.SetDocConfig(docID, cfgKeyAutoRebalance, value); err != nil {
		return nil, err
	}
	return &Result{Text: "auto-rebalance " + value}, nil
}

// execArmOrder persists a conditional order and mirrors it to the
// OpenOrders table. Triggering happens in the price tick.
func (e *Engine) execArmOrder(ctx context.Context, docID string, p *command.Parsed) (*Result, error) {
	order := &repo.ConditionalOrder{
		OrderID:      newID(),
		DocID:        docID,
		Type:         repo.OrderType(p.Kind),
		Base:         p.Base,
		Quote:        p.Quote,
		TriggerPrice: p.TriggerPrice,
		Qty:          p.Qty,
		Status:       repo.OrderActive,
	}
	if err := e.store.InsertOrder(order); err != nil {
		return nil, err
	}
	row := docs.Row{
		order.OrderID, string(order.Type), order.Base + "/" + order.Quote,
		fmt.Sprintf("%g", order.TriggerPrice), order.Qty, string(order.Status),
	}
	if err := e.backend.AppendRow(ctx, docID, docs.TableOpenOrders, row); err != nil {
		common.DocLogger("executor", docID).Warnf("failed to mirror order row: %v", err)
	}
	return &Result{Text: fmt.Sprintf("order %s armed: %s %s %s @ %g",
		order.OrderID, order.Type, order.Qty, order.Base, order.TriggerPrice)}, nil
}

func (e *Engine) execCancelOrder(ctx context.Context, docID, orderID string) (*Result, error) {
	if err := e.store.CancelOrder(orderID); err != nil {
		return nil, err
	}
	e.mirrorOrderStatus(ctx, docID, orderID, string(repo.OrderCancelled))
	return &Result{Text: fmt.Sprintf("order %s cancelled", orderID)}, nil
}

func (e *Engine) execListOrders(docID string) (*Result, error) {
	orders, err := e.store.ListOrders(docID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return &Result{Text: "no orders"}, nil
	}
	parts := make([]string, len(orders))
	for i, o := range orders {
		parts[i] = fmt.Sprintf("%s %s %s %s @ %g [%s]", o.OrderID, o.Type, o.Qty, o.Base, o.TriggerPrice, o.Status)
	}
	return &Result{Text: strings.Join(parts, " ; ")}, nil
}

func (e *Engine) execSchedule(docID string, p *command.Parsed) (*Result, error) {
	sch := &repo.Schedule{
		ScheduleID:    newID(),
		DocID:         docID,
		IntervalHours: p.IntervalHours,
		InnerCommand:  p.Inner,
		NextRunAt:     e.now().Add(time.Duration(p.IntervalHours * float64(time.Hour))),
		Status:        repo.ScheduleActive,
	}
	if err := e.store.InsertSchedule(sch); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("schedule %s: every %gh run %q", sch.ScheduleID, p.IntervalHours, p.Inner)}, nil
}

func (e *Engine) execCancelSchedule(docID, scheduleID string) (*Result, error) {
	if err := e.store.CancelSchedule(scheduleID); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("schedule %s cancelled", scheduleID)}, nil
}

func (e *Engine) execListSchedules(docID string) (*Result, error) {
	schedules, err := e.store.ListSchedules(docID)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return &Result{Text: "no schedules"}, nil
	}
	parts := make([]string, len(schedules))
	for i, s := range schedules {
		parts[i] = fmt.Sprintf("%s every %gh %q runs=%d [%s]",
			s.ScheduleID, s.IntervalHours, s.InnerCommand, s.TotalRuns, s.Status)
	}
	return &Result{Text: strings.Join(parts, " ; ")}, nil
}

func (e *Engine) execAlertThreshold(docID string, p *command.Parsed) (*Result, error) {
	key := alertKeyPrefix + p.Coin
	if err := e.store.SetDocConfig(docID, key, fmt.Sprintf("%g", p.Threshold)); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("alert armed: %s @ $%g", p.Coin, p.Threshold)}, nil
}

func (e *Engine) execAlerts(docID string) (*Result, error) {
	cfg, err := e.store.ListDocConfig(docID)
	if err != nil {
		return nil, err
	}
	var parts []string
	for key, value := range cfg {
		if strings.HasPrefix(key, alertKeyPrefix) {
			parts = append(parts, fmt.Sprintf("%s @ $%s", strings.TrimPrefix(key, alertKeyPrefix), value))
		}
	}
	if len(parts) == 0 {
		return &Result{Text: "no alerts armed"}, nil
	}
	return &Result{Text: strings.Join(parts, " ; ")}, nil
}

// Channel session ids live in per-doc config; Pay auto-opens a session
// when none exists.
func (e *Engine) execChannelOpen(ctx context.Context, docID, deposit string, secrets *vault.Secrets) (*Result, error) {
	channel, err := e.ports.RequireChannel()
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, fmt.Errorf("wallet not set up; run DW SETUP first")
	}
	info, err := channel.Open(ctx, secrets.EVM.PrivateKey, "", deposit)
	if err != nil {
		return nil, err
	}
	if err := e.store.SetDocConfig(docID, cfgKeyChannelSession, info.ChannelID); err != nil {
		return nil, err
	}
	e.audit(docID, fmt.Sprintf("payment channel %s opened with deposit %s", info.ChannelID, deposit))
	return &Result{Text: fmt.Sprintf("channel %s open, balance %s", info.ChannelID, info.Balance)}, nil
}

func (e *Engine) execChannelPay(ctx context.Context, docID, amount string, secrets *vault.Secrets) (*Result, error) {
	channel, err := e.ports.RequireChannel()
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, fmt.Errorf("wallet not set up; run DW SETUP first")
	}

	session, err := e.store.GetDocConfig(docID, cfgKeyChannelSession)
	if err != nil {
		return nil, err
	}
	if session == "" {
		// Auto-open with the payment amount as deposit.
		info, err := channel.Open(ctx, secrets.EVM.PrivateKey, "", amount)
		if err != nil {
			return nil, fmt.Errorf("channel auto-open failed: %w", err)
		}
		session = info.ChannelID
		if err := e.store.SetDocConfig(docID, cfgKeyChannelSession, session); err != nil {
			return nil, err
		}
		e.audit(docID, fmt.Sprintf("payment channel %s auto-opened", session))
	}

	info, err := channel.Pay(ctx, secrets.EVM.PrivateKey, session, amount)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("paid %s via channel %s, balance %s", amount, info.ChannelID, info.Balance)}, nil
}

func (e *Engine) execChannelClose(ctx context.Context, docID string, secrets *vault.Secrets) (*Result, error) {
	channel, err := e.ports.RequireChannel()
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, fmt.Errorf("wallet not set up; run DW SETUP first")
	}
	session, err := e.store.GetDocConfig(docID, cfgKeyChannelSession)
	if err != nil {
		return nil, err
	}
	if session == "" {
		return nil, fmt.Errorf("no open channel for this document")
	}
	res, err := channel.Close(ctx, secrets.EVM.PrivateKey, session)
	if err != nil {
		return nil, err
	}
	if err := e.store.SetDocConfig(docID, cfgKeyChannelSession, ""); err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("channel %s closed", session), TxRef: res.TxHash}, nil
}

func (e *Engine) execChannelStatus(ctx context.Context, docID string) (*Result, error) {
	channel, err := e.ports.RequireChannel()
	if err != nil {
		return nil, err
	}
	session, err := e.store.GetDocConfig(docID, cfgKeyChannelSession)
	if err != nil {
		return nil, err
	}
	if session == "" {
		return &Result{Text: "no open channel"}, nil
	}
	info, err := channel.Status(ctx, session)
	if err != nil {
		return nil, err
	}
	return &Result{Text: fmt.Sprintf("channel %s [%s] balance %s", info.ChannelID, info.State, info.Balance)}, nil
}

func (e *Engine) execFaucet(ctx context.Context, docID string, secrets *vault.Secrets) (*Result, error) {
	if e.ports.Faucet == nil {
		return nil, ports.ErrDisabled
	}
	var err error
	if secrets == nil {
		secrets, err = e.provisionSecrets(ctx, docID)
		if err != nil {
			return nil, err
		}
	}
	stacksAddr := ""
	if secrets.Stacks != nil {
		stacksAddr = secrets.Stacks.Address
	}
	fctx, cancel := context.WithTimeout(ctx, faucetWait)
	defer cancel()
	if err := e.ports.Faucet.Fund(fctx, secrets.EVM.Address, stacksAddr); err != nil {
		return nil, err
	}
	return &Result{Text: "faucet funding requested"}, nil
}

// resolveEVMAddr picks the explicit address or the document's own,
// provisioning a wallet on demand for the balance read.
func (e *Engine) resolveEVMAddr(ctx context.Context, docID, explicit string, secrets *vault.Secrets) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if secrets == nil {
		var err error
		secrets, err = e.provisionSecrets(ctx, docID)
		if err != nil {
			return "", err
		}
	}
	return secrets.EVM.Address, nil
}

// treasuryUSD sums each chain's holdings in USD from cached prices.
func (e *Engine) treasuryUSD(ctx context.Context, secrets *vault.Secrets) (evmUSD, stxUSD float64, err error) {
	if evm, errEVM := e.ports.RequireEVM(); errEVM == nil {
		wei, err := evm.NativeBalance(ctx, secrets.EVM.Address)
		if err != nil {
			return 0, 0, err
		}
		if price, err := e.fetchPrice(ctx, "ETH"); err == nil {
			eth, _ := new(big.Float).SetInt(wei).Float64()
			evmUSD = eth / 1e18 * price.Mid
		}
	}
	if stx, errSTX := e.ports.RequireStacks(); errSTX == nil && secrets.Stacks != nil {
		micro, err := stx.Balance(ctx, secrets.Stacks.Address)
		if err != nil {
			return 0, 0, err
		}
		if price, err := e.fetchPrice(ctx, "STX"); err == nil {
			amt, _ := new(big.Float).SetInt(micro).Float64()
			stxUSD = amt / 1e6 * price.Mid
		}
	}
	return evmUSD, stxUSD, nil
}

func (e *Engine) mirrorOrderStatus(ctx context.Context, docID, orderID, status string) {
	tables, err := e.backend.LoadTables(ctx, docID)
	if err != nil {
		return
	}
	t := tables[docs.TableOpenOrders]
	if t == nil {
		return
	}
	for i, row := range t.Rows {
		if row.Cell(0) == orderID {
			_ = e.backend.UpdateCell(ctx, docID, docs.TableOpenOrders, i, 5, status)
			return
		}
	}
}
