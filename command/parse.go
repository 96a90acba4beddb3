package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Prefix is the canonical command marker.
const Prefix = "DW"

var (
	evmAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	stxAddressRe = regexp.MustCompile(`^S[PTNM][0-9A-HJKMNP-Z]{38,40}$`)
	txIDRe       = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
	amountRe     = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	scheduleRe   = regexp.MustCompile(`(?i)^EVERY\s+([0-9]+(?:\.[0-9]+)?)h:\s*(.+)$`)
)

// HasPrefix reports whether raw starts with the canonical verb prefix.
func HasPrefix(raw string) bool {
	fields := strings.Fields(raw)
	return len(fields) > 0 && strings.EqualFold(fields[0], Prefix)
}

// Parse turns a raw command string into its tagged variant. The verb is
// case-insensitive; arguments keep their case. Errors name the offending
// token and are safe to surface in a document error cell.
func Parse(raw string) (*Parsed, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	if !strings.EqualFold(fields[0], Prefix) {
		return nil, fmt.Errorf("command must start with %q, got %q", Prefix, fields[0])
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("missing verb after %q", Prefix)
	}

	verb := strings.ToUpper(fields[1])
	args := fields[2:]

	switch Kind(verb) {
	case KindSetup, KindStatus, KindTreasury, KindPrice, KindHelp,
		KindBalance, KindEvmPrice, KindStxPrice, KindListOrders,
		KindListSchedules, KindAlerts, KindChannelClose,
		KindChannelStatus, KindFaucet:
		if len(args) != 0 {
			return nil, fmt.Errorf("%s takes no arguments, got %q", verb, args[0])
		}
		return &Parsed{Kind: Kind(verb)}, nil

	case KindHistory, KindEvmHistory, KindStxHistory:
		return parseHistory(Kind(verb), args)

	case KindEvmSend:
		return parseSend(KindEvmSend, args, evmAddressRe)
	case KindUsdcSend:
		return parseSend(KindUsdcSend, args, evmAddressRe)
	case KindUsdcApprove:
		return parseSend(KindUsdcApprove, args, evmAddressRe)
	case KindStxSend:
		return parseSend(KindStxSend, args, stxAddressRe)

	case KindEvmBalance:
		return parseBalance(KindEvmBalance, args, evmAddressRe)
	case KindUsdcBalance:
		return parseBalance(KindUsdcBalance, args, evmAddressRe)
	case KindStxBalance:
		return parseBalance(KindStxBalance, args, stxAddressRe)

	case KindEvmTxStatus, KindStxTxStatus:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects <txid>", verb)
		}
		if !txIDRe.MatchString(args[0]) {
			return nil, fmt.Errorf("invalid transaction id %q", args[0])
		}
		return &Parsed{Kind: Kind(verb), TxID: args[0]}, nil

	case KindContractCall, KindContractRead:
		if len(args) < 2 {
			return nil, fmt.Errorf("%s expects <contract> <method> [args...]", verb)
		}
		if !evmAddressRe.MatchString(args[0]) {
			return nil, fmt.Errorf("invalid contract address %q", args[0])
		}
		return &Parsed{Kind: Kind(verb), Contract: args[0], Method: args[1], Args: args[2:]}, nil

	case KindBridge:
		if len(args) != 4 {
			return nil, fmt.Errorf("BRIDGE expects <fromChain> <toChain> <amount> <destAddr>")
		}
		if !amountRe.MatchString(args[2]) {
			return nil, fmt.Errorf("invalid amount %q", args[2])
		}
		return &Parsed{
			Kind:      KindBridge,
			FromChain: strings.ToUpper(args[0]),
			ToChain:   strings.ToUpper(args[1]),
			Amount:    args[2],
			To:        args[3],
		}, nil

	case KindRebalance:
		if len(args) != 1 {
			return nil, fmt.Errorf("REBALANCE expects <evmPct>")
		}
		pct, err := strconv.Atoi(args[0])
		if err != nil || pct < 0 || pct > 100 {
			return nil, fmt.Errorf("invalid percentage %q", args[0])
		}
		return &Parsed{Kind: KindRebalance, TargetPct: pct}, nil

	case KindAutoRebalance:
		if len(args) != 1 {
			return nil, fmt.Errorf("AUTO_REBALANCE expects ON or OFF")
		}
		switch strings.ToUpper(args[0]) {
		case "ON":
			return &Parsed{Kind: KindAutoRebalance, Enabled: true}, nil
		case "OFF":
			return &Parsed{Kind: KindAutoRebalance, Enabled: false}, nil
		}
		return nil, fmt.Errorf("invalid toggle %q, expected ON or OFF", args[0])

	case KindPayout:
		// PAYOUT <amount> <asset> TO <addr>
		if len(args) != 4 || !strings.EqualFold(args[2], "TO") {
			return nil, fmt.Errorf("PAYOUT expects <amount> <asset> TO <addr>")
		}
		if !amountRe.MatchString(args[0]) {
			return nil, fmt.Errorf("invalid amount %q", args[0])
		}
		return &Parsed{
			Kind:   KindPayout,
			Amount: args[0],
			Asset:  strings.ToUpper(args[1]),
			To:     args[3],
		}, nil

	case KindStopLoss, KindTakeProfit:
		// STOP_LOSS <base> <qty> <triggerPrice>
		if len(args) != 3 {
			return nil, fmt.Errorf("%s expects <base> <qty> <triggerPrice>", verb)
		}
		if !amountRe.MatchString(args[1]) {
			return nil, fmt.Errorf("invalid quantity %q", args[1])
		}
		trigger, err := strconv.ParseFloat(args[2], 64)
		if err != nil || trigger <= 0 {
			return nil, fmt.Errorf("invalid trigger price %q", args[2])
		}
		return &Parsed{
			Kind:         Kind(verb),
			Base:         strings.ToUpper(args[0]),
			Quote:        "USD",
			Qty:          args[1],
			TriggerPrice: trigger,
		}, nil

	case KindCancelOrder, KindCancelSchedule:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects <id>", verb)
		}
		return &Parsed{Kind: Kind(verb), ID: args[0]}, nil

	case KindSchedule:
		// SCHEDULE EVERY <N>h: <inner>. The inner command is re-parsed at
		// each spawn, so it is only checked for non-emptiness here.
		rest := strings.TrimSpace(strings.Join(args, " "))
		m := scheduleRe.FindStringSubmatch(rest)
		if m == nil {
			return nil, fmt.Errorf("SCHEDULE expects EVERY <N>h: <command>, got %q", rest)
		}
		hours, err := strconv.ParseFloat(m[1], 64)
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("invalid interval %q", m[1])
		}
		return &Parsed{Kind: KindSchedule, IntervalHours: hours, Inner: strings.TrimSpace(m[2])}, nil

	case KindAlertThreshold:
		if len(args) != 2 {
			return nil, fmt.Errorf("ALERT_THRESHOLD expects <coin> <amount>")
		}
		threshold, err := strconv.ParseFloat(args[1], 64)
		if err != nil || threshold < 0 {
			return nil, fmt.Errorf("invalid threshold %q", args[1])
		}
		return &Parsed{Kind: KindAlertThreshold, Coin: strings.ToUpper(args[0]), Threshold: threshold}, nil

	case KindChannelOpen, KindChannelPay:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects <amount>", verb)
		}
		if !amountRe.MatchString(args[0]) {
			return nil, fmt.Errorf("invalid amount %q", args[0])
		}
		return &Parsed{Kind: Kind(verb), Amount: args[0]}, nil
	}

	return nil, fmt.Errorf("unknown verb %q", fields[1])
}

func parseSend(kind Kind, args []string, addrRe *regexp.Regexp) (*Parsed, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s expects <addr> <amount>", kind)
	}
	if !addrRe.MatchString(args[0]) {
		return nil, fmt.Errorf("invalid address %q", args[0])
	}
	if !amountRe.MatchString(args[1]) {
		return nil, fmt.Errorf("invalid amount %q", args[1])
	}
	return &Parsed{Kind: kind, To: args[0], Amount: args[1]}, nil
}

func parseBalance(kind Kind, args []string, addrRe *regexp.Regexp) (*Parsed, error) {
	switch len(args) {
	case 0:
		return &Parsed{Kind: kind}, nil
	case 1:
		if !addrRe.MatchString(args[0]) {
			return nil, fmt.Errorf("invalid address %q", args[0])
		}
		return &Parsed{Kind: kind, Address: args[0]}, nil
	}
	return nil, fmt.Errorf("%s expects at most one address", kind)
}

func parseHistory(kind Kind, args []string) (*Parsed, error) {
	switch len(args) {
	case 0:
		return &Parsed{Kind: kind, Limit: 10}, nil
	case 1:
		limit, err := strconv.Atoi(args[0])
		if err != nil || limit < 1 {
			return nil, fmt.Errorf("invalid limit %q", args[0])
		}
		return &Parsed{Kind: kind, Limit: limit}, nil
	}
	return nil, fmt.Errorf("%s expects at most one limit", kind)
}
