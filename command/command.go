// Package command implements the docwallet command surface: the lexer
// and parser for the canonical `DW <VERB> ...` form, a best-effort
// natural-language auto-detector, the canonical formatter, and the
// auto-approve classification.
//
// Parsing is a pure function from string to a tagged variant; it never
// touches I/O. The formatter round-trips: Format(Parse(s)) == s for any
// canonical s.
package command

// Kind discriminates parsed commands.
type Kind string

const (
	KindSetup    Kind = "SETUP"
	KindStatus   Kind = "STATUS"
	KindTreasury Kind = "TREASURY"
	KindPrice    Kind = "PRICE"
	KindHelp     Kind = "HELP"
	KindBalance  Kind = "BALANCE"
	KindHistory  Kind = "HISTORY"

	KindEvmSend     Kind = "EVM_SEND"
	KindEvmBalance  Kind = "EVM_BALANCE"
	KindEvmPrice    Kind = "EVM_PRICE"
	KindEvmHistory  Kind = "EVM_HISTORY"
	KindEvmTxStatus Kind = "EVM_TX_STATUS"

	KindContractCall Kind = "CONTRACT_CALL"
	KindContractRead Kind = "CONTRACT_READ"

	KindUsdcSend    Kind = "USDC_SEND"
	KindUsdcBalance Kind = "USDC_BALANCE"
	KindUsdcApprove Kind = "USDC_APPROVE"

	KindStxSend     Kind = "STX_SEND"
	KindStxBalance  Kind = "STX_BALANCE"
	KindStxPrice    Kind = "STX_PRICE"
	KindStxHistory  Kind = "STX_HISTORY"
	KindStxTxStatus Kind = "STX_TX_STATUS"

	KindBridge        Kind = "BRIDGE"
	KindRebalance     Kind = "REBALANCE"
	KindAutoRebalance Kind = "AUTO_REBALANCE"
	KindPayout        Kind = "PAYOUT"

	KindStopLoss    Kind = "STOP_LOSS"
	KindTakeProfit  Kind = "TAKE_PROFIT"
	KindCancelOrder Kind = "CANCEL_ORDER"
	KindListOrders  Kind = "LIST_ORDERS"

	KindSchedule       Kind = "SCHEDULE"
	KindCancelSchedule Kind = "CANCEL_SCHEDULE"
	KindListSchedules  Kind = "LIST_SCHEDULES"

	KindAlertThreshold Kind = "ALERT_THRESHOLD"
	KindAlerts         Kind = "ALERTS"

	KindChannelOpen   Kind = "CHANNEL_OPEN"
	KindChannelPay    Kind = "CHANNEL_PAY"
	KindChannelClose  Kind = "CHANNEL_CLOSE"
	KindChannelStatus Kind = "CHANNEL_STATUS"

	KindFaucet Kind = "FAUCET"
)

// Parsed is the tagged variant produced by Parse. Only the fields
// relevant to Kind are populated.
type Parsed struct {
	Kind Kind `json:"type"`

	// Transfer family (EVM_SEND, USDC_SEND, USDC_APPROVE, STX_SEND,
	// PAYOUT, CHANNEL_OPEN, CHANNEL_PAY, BRIDGE).
	To     string `json:"to,omitempty"`
	Amount string `json:"amount,omitempty"`
	Asset  string `json:"asset,omitempty"`

	// Contract family.
	Contract string   `json:"contract,omitempty"`
	Method   string   `json:"method,omitempty"`
	Args     []string `json:"args,omitempty"`

	// Bridge.
	FromChain string `json:"from_chain,omitempty"`
	ToChain   string `json:"to_chain,omitempty"`

	// Conditional orders.
	Base         string  `json:"base,omitempty"`
	Quote        string  `json:"quote,omitempty"`
	TriggerPrice float64 `json:"trigger_price,omitempty"`
	Qty          string  `json:"qty,omitempty"`

	// Schedules.
	IntervalHours float64 `json:"interval_hours,omitempty"`
	Inner         string  `json:"inner,omitempty"`

	// Id-addressed management commands (CANCEL_ORDER, CANCEL_SCHEDULE).
	ID string `json:"id,omitempty"`

	// Alerts.
	Coin      string  `json:"coin,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`

	// Toggles (AUTO_REBALANCE).
	Enabled bool `json:"enabled,omitempty"`

	// Rebalance target share for the EVM side, in percent.
	TargetPct int `json:"target_pct,omitempty"`

	// Balance/history queries may name an explicit address; history
	// queries carry a row limit.
	Address string `json:"address,omitempty"`
	TxID    string `json:"txid,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}
