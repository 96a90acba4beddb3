package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	evmAddr = "0x1111111111111111111111111111111111111111"
	stxAddr = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"
)

func TestParseVerbs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Parsed
	}{
		{name: "setup", raw: "DW SETUP", want: Parsed{Kind: KindSetup}},
		{name: "lowercase verb", raw: "dw status", want: Parsed{Kind: KindStatus}},
		{name: "treasury", raw: "DW TREASURY", want: Parsed{Kind: KindTreasury}},
		{
			name: "evm send",
			raw:  "DW EVM_SEND " + evmAddr + " 0.5",
			want: Parsed{Kind: KindEvmSend, To: evmAddr, Amount: "0.5"},
		},
		{
			name: "stx send",
			raw:  "DW STX_SEND " + stxAddr + " 1000000",
			want: Parsed{Kind: KindStxSend, To: stxAddr, Amount: "1000000"},
		},
		{
			name: "usdc approve",
			raw:  "DW USDC_APPROVE " + evmAddr + " 100",
			want: Parsed{Kind: KindUsdcApprove, To: evmAddr, Amount: "100"},
		},
		{
			name: "payout",
			raw:  "DW PAYOUT 10 USDC TO " + evmAddr,
			want: Parsed{Kind: KindPayout, Amount: "10", Asset: "USDC", To: evmAddr},
		},
		{
			name: "stop loss",
			raw:  "DW STOP_LOSS STX 10 0.8",
			want: Parsed{Kind: KindStopLoss, Base: "STX", Quote: "USD", Qty: "10", TriggerPrice: 0.8},
		},
		{
			name: "take profit",
			raw:  "DW TAKE_PROFIT STX 5 1.25",
			want: Parsed{Kind: KindTakeProfit, Base: "STX", Quote: "USD", Qty: "5", TriggerPrice: 1.25},
		},
		{
			name: "schedule",
			raw:  "DW SCHEDULE EVERY 1h: STATUS",
			want: Parsed{Kind: KindSchedule, IntervalHours: 1, Inner: "STATUS"},
		},
		{
			name: "schedule fractional interval",
			raw:  "DW SCHEDULE EVERY 0.5h: DW PRICE",
			want: Parsed{Kind: KindSchedule, IntervalHours: 0.5, Inner: "DW PRICE"},
		},
		{
			name: "cancel schedule",
			raw:  "DW CANCEL_SCHEDULE sched-42",
			want: Parsed{Kind: KindCancelSchedule, ID: "sched-42"},
		},
		{
			name: "bridge",
			raw:  "DW BRIDGE EVM STX 25 " + stxAddr,
			want: Parsed{Kind: KindBridge, FromChain: "EVM", ToChain: "STX", Amount: "25", To: stxAddr},
		},
		{
			name: "alert threshold",
			raw:  "DW ALERT_THRESHOLD STX 100",
			want: Parsed{Kind: KindAlertThreshold, Coin: "STX", Threshold: 100},
		},
		{
			name: "auto rebalance on",
			raw:  "DW AUTO_REBALANCE ON",
			want: Parsed{Kind: KindAutoRebalance, Enabled: true},
		},
		{
			name: "rebalance",
			raw:  "DW REBALANCE 60",
			want: Parsed{Kind: KindRebalance, TargetPct: 60},
		},
		{
			name: "contract read",
			raw:  "DW CONTRACT_READ " + evmAddr + " totalSupply",
			want: Parsed{Kind: KindContractRead, Contract: evmAddr, Method: "totalSupply"},
		},
		{
			name: "contract call with args",
			raw:  "DW CONTRACT_CALL " + evmAddr + " setOwner " + evmAddr,
			want: Parsed{Kind: KindContractCall, Contract: evmAddr, Method: "setOwner", Args: []string{evmAddr}},
		},
		{
			name: "history default limit",
			raw:  "DW HISTORY",
			want: Parsed{Kind: KindHistory, Limit: 10},
		},
		{
			name: "channel open",
			raw:  "DW CHANNEL_OPEN 50",
			want: Parsed{Kind: KindChannelOpen, Amount: "50"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantTok string
	}{
		{name: "empty", raw: "", wantTok: "empty"},
		{name: "no prefix", raw: "SEND 10", wantTok: `"SEND"`},
		{name: "unknown verb", raw: "DW FROBNICATE", wantTok: `"FROBNICATE"`},
		{name: "bad evm address", raw: "DW EVM_SEND 0x123 1", wantTok: `"0x123"`},
		{name: "bad amount", raw: "DW EVM_SEND " + evmAddr + " ten", wantTok: `"ten"`},
		{name: "bad stx address", raw: "DW STX_SEND 0xabc 1", wantTok: `"0xabc"`},
		{name: "bad schedule shape", raw: "DW SCHEDULE HOURLY STATUS", wantTok: "EVERY"},
		{name: "bad toggle", raw: "DW AUTO_REBALANCE MAYBE", wantTok: `"MAYBE"`},
		{name: "bad trigger", raw: "DW STOP_LOSS STX 10 zero", wantTok: `"zero"`},
		{name: "extra args", raw: "DW STATUS now", wantTok: `"now"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantTok)
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	canonical := []string{
		"DW SETUP",
		"DW STATUS",
		"DW STX_SEND " + stxAddr + " 1000000",
		"DW EVM_SEND " + evmAddr + " 0.5",
		"DW PAYOUT 10 USDC TO " + evmAddr,
		"DW STOP_LOSS STX 10 0.8",
		"DW SCHEDULE EVERY 1h: STATUS",
		"DW BRIDGE EVM STX 25 " + stxAddr,
		"DW ALERT_THRESHOLD STX 100",
		"DW AUTO_REBALANCE OFF",
		"DW CANCEL_ORDER ord-7",
		"DW CONTRACT_READ " + evmAddr + " totalSupply",
		"DW HISTORY 10",
		"DW CHANNEL_PAY 5",
	}

	for _, raw := range canonical {
		t.Run(raw, func(t *testing.T) {
			parsed, err := Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, Format(parsed))
		})
	}
}

func TestAutoDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{
			name: "send usdc routes through payout",
			text: "send 10 USDC to " + evmAddr,
			want: "DW PAYOUT 10 USDC TO " + evmAddr,
			ok:   true,
		},
		{
			name: "send eth is a native transfer",
			text: "please send 0.5 ETH to " + evmAddr,
			want: "DW EVM_SEND " + evmAddr + " 0.5",
			ok:   true,
		},
		{
			name: "send stx",
			text: "transfer 1000000 STX to " + stxAddr,
			want: "DW STX_SEND " + stxAddr + " 1000000",
			ok:   true,
		},
		{name: "balance question", text: "what's my balance?", want: "DW BALANCE", ok: true},
		{name: "price of stx", text: "price of stx please", want: "DW STX_PRICE", ok: true},
		{name: "status", text: "show status", want: "DW STATUS", ok: true},
		{name: "setup", text: "set up a wallet for me", want: "DW SETUP", ok: true},
		{name: "already canonical", text: "DW TREASURY", want: "DW TREASURY", ok: true},
		{name: "gibberish", text: "the weather is nice", ok: false},
		{name: "empty", text: "  ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TryAutoDetect(tt.text)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAutoDetectAgreesWithParser(t *testing.T) {
	detected, ok := TryAutoDetect("send 10 USDC to " + evmAddr)
	require.True(t, ok)

	fromDetect, err := Parse(detected)
	require.NoError(t, err)
	fromCanonical, err := Parse("DW PAYOUT 10 USDC TO " + evmAddr)
	require.NoError(t, err)
	assert.Equal(t, fromCanonical, fromDetect)
}

func TestAutoApproved(t *testing.T) {
	readOnly := []Kind{
		KindStatus, KindPrice, KindBalance, KindTreasury, KindSetup,
		KindSchedule, KindCancelSchedule, KindStopLoss, KindCancelOrder,
		KindAlertThreshold, KindAlerts, KindStxBalance, KindEvmHistory,
	}
	for _, kind := range readOnly {
		assert.True(t, AutoApproved(kind, nil), "%s should auto-approve", kind)
	}

	moving := []Kind{
		KindEvmSend, KindStxSend, KindUsdcSend, KindPayout, KindBridge,
		KindRebalance, KindContractCall, KindChannelOpen, KindChannelPay,
		KindFaucet,
	}
	for _, kind := range moving {
		assert.False(t, AutoApproved(kind, nil), "%s must need approval", kind)
	}

	// Config override replaces the built-in set.
	override := []string{"EVM_SEND"}
	assert.True(t, AutoApproved(KindEvmSend, override))
	assert.False(t, AutoApproved(KindStatus, override))
}
