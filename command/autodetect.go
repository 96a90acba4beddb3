package command

import (
	"regexp"
	"strings"
)

// Auto-detect patterns for natural-language chat and free-form cells.
// Each pattern canonicalizes to a `DW ...` string so detected commands
// round-trip through the normal parser.
var (
	sendRe = regexp.MustCompile(`(?i)\b(?:send|transfer|pay)\s+([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]{2,6})\s+to\s+(\S+)`)

	priceOfRe = regexp.MustCompile(`(?i)\b(?:price of|price for)\s+([a-zA-Z]{2,6})`)

	stopLossRe = regexp.MustCompile(`(?i)\bstop[\s-]?loss\b.*?\b([a-zA-Z]{2,6})\b.*?\bat\s+([0-9]+(?:\.[0-9]+)?)`)
)

// TryAutoDetect attempts to turn free-form text into a canonical DW
// command string. The boolean reports success. Text that already carries
// the DW prefix is returned trimmed as-is.
func TryAutoDetect(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if HasPrefix(text) {
		if _, err := Parse(text); err != nil {
			return "", false
		}
		return text, true
	}

	lower := strings.ToLower(text)

	if m := sendRe.FindStringSubmatch(text); m != nil {
		amount, asset, dest := m[1], strings.ToUpper(m[2]), m[3]
		var canonical string
		switch {
		case asset == "ETH" && evmAddressRe.MatchString(dest):
			canonical = join(string(KindEvmSend), dest, amount)
		case asset == "STX" && stxAddressRe.MatchString(dest):
			canonical = join(string(KindStxSend), dest, amount)
		default:
			// Everything else routes through the payment rail.
			canonical = join(string(KindPayout), amount, asset, "TO", dest)
		}
		if _, err := Parse(canonical); err != nil {
			return "", false
		}
		return canonical, true
	}

	if m := stopLossRe.FindStringSubmatch(text); m != nil {
		canonical := join(string(KindStopLoss), strings.ToUpper(m[1]), "1", m[2])
		if _, err := Parse(canonical); err != nil {
			return "", false
		}
		return canonical, true
	}

	if m := priceOfRe.FindStringSubmatch(text); m != nil {
		switch strings.ToUpper(m[1]) {
		case "ETH":
			return join(string(KindEvmPrice)), true
		case "STX":
			return join(string(KindStxPrice)), true
		}
		return join(string(KindPrice)), true
	}

	switch {
	case strings.Contains(lower, "balance"):
		return join(string(KindBalance)), true
	case strings.Contains(lower, "price"):
		return join(string(KindPrice)), true
	case strings.Contains(lower, "status"):
		return join(string(KindStatus)), true
	case strings.Contains(lower, "treasury"):
		return join(string(KindTreasury)), true
	case strings.Contains(lower, "history") || strings.Contains(lower, "transactions"):
		return join(string(KindHistory), "10"), true
	case strings.Contains(lower, "set up") || strings.Contains(lower, "setup") ||
		strings.Contains(lower, "create wallet") || strings.Contains(lower, "new wallet"):
		return join(string(KindSetup)), true
	case strings.Contains(lower, "help"):
		return join(string(KindHelp)), true
	}

	return "", false
}
