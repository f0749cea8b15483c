package encoder

import (
	"fmt"
	"math/big"
	"strings"
)

// Decimals is the fixed-point scale of currency amounts on-chain.
const Decimals = 18

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ParseAmount converts a decimal string like "10.5" into its on-chain integer
// representation (value * 10^18) without going through floating point.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("invalid amount: %s (must be non-negative)", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > Decimals {
		return nil, fmt.Errorf("invalid amount: %s (more than %d decimal places)", s, Decimals)
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, fmt.Errorf("invalid amount: %s (must be a decimal number)", s)
	}

	amount, ok := new(big.Int).SetString(whole+frac+strings.Repeat("0", Decimals-len(frac)), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	return amount, nil
}

// FormatAmount is the inverse of ParseAmount, used for display.
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Set(v)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	q, r := new(big.Int).QuoRem(abs, unit, new(big.Int))
	if r.Sign() == 0 {
		return sign + q.String()
	}
	rs := r.String()
	frac := strings.TrimRight(strings.Repeat("0", Decimals-len(rs))+rs, "0")
	return sign + q.String() + "." + frac
}

// AmountToFloat scales an on-chain amount down for approximate display math.
func AmountToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(unit)).Float64()
	return f
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
