package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders the canonical `DW <VERB> ...` string for a parsed
// command. Format and Parse round-trip on canonical input.
func Format(p *Parsed) string {
	verb := string(p.Kind)

	switch p.Kind {
	case KindSetup, KindStatus, KindTreasury, KindPrice, KindHelp,
		KindBalance, KindEvmPrice, KindStxPrice, KindListOrders,
		KindListSchedules, KindAlerts, KindChannelClose,
		KindChannelStatus, KindFaucet:
		return join(verb)

	case KindHistory, KindEvmHistory, KindStxHistory:
		return join(verb, strconv.Itoa(p.Limit))

	case KindEvmSend, KindUsdcSend, KindUsdcApprove, KindStxSend:
		return join(verb, p.To, p.Amount)

	case KindEvmBalance, KindUsdcBalance, KindStxBalance:
		if p.Address == "" {
			return join(verb)
		}
		return join(verb, p.Address)

	case KindEvmTxStatus, KindStxTxStatus:
		return join(verb, p.TxID)

	case KindContractCall, KindContractRead:
		parts := append([]string{verb, p.Contract, p.Method}, p.Args...)
		return join(parts...)

	case KindBridge:
		return join(verb, p.FromChain, p.ToChain, p.Amount, p.To)

	case KindRebalance:
		return join(verb, strconv.Itoa(p.TargetPct))

	case KindAutoRebalance:
		if p.Enabled {
			return join(verb, "ON")
		}
		return join(verb, "OFF")

	case KindPayout:
		return join(verb, p.Amount, p.Asset, "TO", p.To)

	case KindStopLoss, KindTakeProfit:
		return join(verb, p.Base, p.Qty, trimFloat(p.TriggerPrice))

	case KindCancelOrder, KindCancelSchedule:
		return join(verb, p.ID)

	case KindSchedule:
		return fmt.Sprintf("%s %s EVERY %sh: %s", Prefix, verb, trimFloat(p.IntervalHours), p.Inner)

	case KindAlertThreshold:
		return join(verb, p.Coin, trimFloat(p.Threshold))

	case KindChannelOpen, KindChannelPay:
		return join(verb, p.Amount)
	}

	return join(verb)
}

func join(parts ...string) string {
	return Prefix + " " + strings.Join(parts, " ")
}

// trimFloat renders a float without a trailing ".0" run so canonical
// strings stay stable across a parse/format cycle.
func trimFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	return s
}
