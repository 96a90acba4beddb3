package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Naveen-807/Franky-Docs-sub000/command"
	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/ports"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
)

// priceSymbols are the pairs refreshed every price tick.
var priceSymbols = []string{"ETH", "STX", "USDC"}

const priceCacheTTL = 5 * time.Minute

// runPrice refreshes the cached price snapshots and evaluates active
// conditional orders against the fresh mids.
func (e *Engine) runPrice(ctx context.Context) error {
	log := common.TickLogger("price")

	for _, symbol := range priceSymbols {
		snap, err := e.livePrice(ctx, symbol)
		if err != nil {
			log.Warnf("price fetch failed for %s: %v", symbol, err)
			continue
		}
		if err := e.store.UpsertPrice(snap); err != nil {
			return err
		}
	}

	return e.evaluateOrders(ctx)
}

// livePrice queries the primary market source, falling back to the
// secondary on failure or a zero quote.
func (e *Engine) livePrice(ctx context.Context, symbol string) (*repo.PriceSnapshot, error) {
	sources := []struct {
		name string
		md   ports.MarketData
	}{
		{"primary", e.ports.Market},
		{"secondary", e.ports.MarketFallback},
	}

	var lastErr error = ports.ErrDisabled
	for _, src := range sources {
		if src.md == nil {
			continue
		}
		mid, err := src.md.Price(ctx, symbol)
		if err != nil || mid <= 0 {
			if err == nil {
				err = fmt.Errorf("zero quote")
			}
			lastErr = err
			continue
		}
		return &repo.PriceSnapshot{
			Pair:   symbol + "-USD",
			Mid:    mid,
			Bid:    mid,
			Ask:    mid,
			Source: src.name,
		}, nil
	}
	return nil, lastErr
}

// cachedPrice returns a recent snapshot for a symbol.
func (e *Engine) cachedPrice(symbol string) (*repo.PriceSnapshot, error) {
	snap, err := e.store.Price(symbol + "-USD")
	if err != nil {
		return nil, err
	}
	if e.now().Sub(snap.UpdatedAt) > priceCacheTTL {
		return nil, fmt.Errorf("price for %s is stale", symbol)
	}
	return snap, nil
}

// fetchPrice serves from the cache and falls through to a live query.
func (e *Engine) fetchPrice(ctx context.Context, symbol string) (*repo.PriceSnapshot, error) {
	if snap, err := e.cachedPrice(symbol); err == nil {
		return snap, nil
	}
	snap, err := e.livePrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	_ = e.store.UpsertPrice(snap)
	return snap, nil
}

// evaluateOrders fires every active conditional order whose trigger is
// crossed. Triggering is atomic with spawning the approved command, so
// an order never fires twice; the spawned command is then executed
// inline when its preconditions hold.
func (e *Engine) evaluateOrders(ctx context.Context) error {
	orders, err := e.store.ListActiveOrders("")
	if err != nil {
		return err
	}

	for i := range orders {
		order := &orders[i]
		snap, err := e.cachedPrice(order.Base)
		if err != nil {
			continue
		}
		if !orderTriggered(order, snap.Mid) {
			continue
		}
		e.fireOrder(ctx, order, snap.Mid)
	}
	return nil
}

func orderTriggered(order *repo.ConditionalOrder, mid float64) bool {
	switch order.Type {
	case repo.OrderStopLoss:
		return mid <= order.TriggerPrice
	case repo.OrderTakeProfit:
		return mid >= order.TriggerPrice
	}
	return false
}

// fireOrder spawns the liquidation command for a crossed order and
// attempts inline execution.
func (e *Engine) fireOrder(ctx context.Context, order *repo.ConditionalOrder, mid float64) {
	log := common.DocLogger("price", order.DocID).WithField("order", order.OrderID)

	raw, err := e.liquidationCommand(order)
	if err != nil {
		log.Warnf("cannot build liquidation command: %v", err)
		return
	}
	parsed, err := command.Parse(raw)
	if err != nil {
		log.Errorf("liquidation command does not parse: %v", err)
		return
	}

	cmd := &repo.Command{
		CmdID:      newID(),
		DocID:      order.DocID,
		Raw:        raw,
		ParsedJSON: marshalParsed(parsed),
		Status:     repo.StatusApproved,
	}
	if err := e.store.TriggerOrderWithCommand(order.OrderID, cmd); err != nil {
		// Lost the race to another evaluation; the order fired once.
		log.Debugf("order not triggered: %v", err)
		return
	}

	e.audit(order.DocID, fmt.Sprintf("order %s triggered at %g, spawned %s", order.OrderID, mid, cmd.CmdID))
	e.appendCommandRow(ctx, cmd, raw)
	e.mirrorOrderStatus(ctx, order.DocID, order.OrderID, string(repo.OrderTriggered))
	log.WithField("cmd", cmd.CmdID).Infof("order triggered at %g", mid)

	e.inlineExecute(ctx, cmd)
}

// liquidationCommand converts the order's position into a transfer to
// the document's treasury address.
func (e *Engine) liquidationCommand(order *repo.ConditionalOrder) (string, error) {
	doc, err := e.store.Doc(order.DocID)
	if err != nil {
		return "", err
	}
	treasury, err := e.store.GetDocConfig(order.DocID, cfgKeyTreasuryAddr)
	if err != nil {
		return "", err
	}

	switch order.Base {
	case "STX":
		to := treasury
		if to == "" {
			to = doc.SecondaryAddress
		}
		if to == "" {
			return "", fmt.Errorf("no treasury or wallet address for STX liquidation")
		}
		micro, err := ports.ToBaseUnits(order.Qty, ports.StxDecimals)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("DW STX_SEND %s %s", to, micro.String()), nil
	case "ETH":
		to := treasury
		if to == "" {
			to = doc.PrimaryAddress
		}
		if to == "" {
			return "", fmt.Errorf("no treasury or wallet address for ETH liquidation")
		}
		return fmt.Sprintf("DW EVM_SEND %s %s", to, order.Qty), nil
	}
	return "", fmt.Errorf("unsupported order base %q", order.Base)
}

// inlineExecute runs a just-spawned command without waiting for the
// executor tick. Preconditions are checked before the EXECUTING claim:
// once a dispatch may have had side effects the command must terminate,
// so only a precondition failure leaves it APPROVED for the executor.
func (e *Engine) inlineExecute(ctx context.Context, cmd *repo.Command) {
	log := common.DocLogger("price", cmd.DocID).WithField("cmd", cmd.CmdID)

	_, err := e.secretsFor(cmd.DocID)
	if err != nil {
		log.Debug("inline execution skipped: no secrets; left for executor")
		return
	}
	parsed, err := parsedOf(cmd)
	if err != nil {
		log.Debugf("inline execution skipped: %v", err)
		return
	}
	if parsed.Kind == command.KindStxSend && e.ports.Stacks == nil {
		log.Debug("inline execution skipped: stacks port disabled")
		return
	}
	if parsed.Kind == command.KindEvmSend && e.ports.EVM == nil {
		log.Debug("inline execution skipped: EVM port disabled")
		return
	}

	e.claimAndExecute(ctx, cmd)
}
