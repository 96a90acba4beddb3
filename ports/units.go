package ports

import (
	"fmt"
	"math/big"
	"strings"
)

// Chain unit scales.
const (
	EthDecimals = 18
	StxDecimals = 6
)

// ToBaseUnits converts a decimal asset amount such as "0.5" into the
// chain's smallest unit at the given scale. Exact; amounts with more
// fractional digits than the scale are rejected rather than rounded.
func ToBaseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}

	whole, frac := amount, ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		whole, frac = amount[:i], amount[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %s exceeds %d decimal places", amount, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", amount)
	}
	return n, nil
}

// FromBaseUnits renders a smallest-unit value as a decimal string with
// trailing zeros trimmed.
func FromBaseUnits(n *big.Int, decimals int) string {
	if n == nil {
		return "0"
	}
	s := n.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for len(s) <= decimals {
		s = "0" + s
	}
	whole, frac := s[:len(s)-decimals], s[len(s)-decimals:]
	frac = strings.TrimRight(frac, "0")

	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
