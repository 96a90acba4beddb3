package command

import "strings"

// defaultAutoApprove is the built-in set of command kinds that skip the
// PENDING_APPROVAL step: read-only queries, configuration, setup, and
// schedule/order/alert management. Everything moving funds needs an
// explicit approval.
var defaultAutoApprove = map[Kind]bool{
	KindSetup:    true,
	KindStatus:   true,
	KindTreasury: true,
	KindPrice:    true,
	KindHelp:     true,
	KindBalance:  true,
	KindHistory:  true,

	KindEvmBalance:   true,
	KindEvmPrice:     true,
	KindEvmHistory:   true,
	KindEvmTxStatus:  true,
	KindUsdcBalance:  true,
	KindStxBalance:   true,
	KindStxPrice:     true,
	KindStxHistory:   true,
	KindStxTxStatus:  true,
	KindContractRead: true,

	KindSchedule:       true,
	KindCancelSchedule: true,
	KindListSchedules:  true,
	KindStopLoss:       true,
	KindTakeProfit:     true,
	KindCancelOrder:    true,
	KindListOrders:     true,
	KindAlertThreshold: true,
	KindAlerts:         true,
	KindAutoRebalance:  true,
	KindChannelStatus:  true,
}

// AutoApproved reports whether a command kind skips approval. A
// non-empty override list (verb names, case-insensitive) replaces the
// built-in set; demo mode is handled by the caller.
func AutoApproved(kind Kind, override []string) bool {
	if len(override) == 0 {
		return defaultAutoApprove[kind]
	}
	for _, verb := range override {
		if strings.EqualFold(verb, string(kind)) {
			return true
		}
	}
	return false
}
