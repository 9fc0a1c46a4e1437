package eth

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseUnits converts a decimal string such as "10000000" or "1.5" into its
// integer representation with the given number of decimals. The result must
// fit in a uint256.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	value = strings.TrimSpace(value)
	whole, frac, hasFrac := strings.Cut(value, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, value, decimals)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if _, overflow := uint256.FromBig(n); overflow {
		return nil, fmt.Errorf("%w: %q overflows uint256", ErrInvalidAmount, value)
	}
	return n, nil
}

// MustParseUnits is ParseUnits for literals known at compile time.
func MustParseUnits(value string, decimals uint8) *big.Int {
	n, err := ParseUnits(value, decimals)
	if err != nil {
		panic(err)
	}
	return n
}

// FormatUnits is the inverse of ParseUnits. Trailing fractional zeros are dropped.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	neg := amount.Sign() < 0
	s := new(big.Int).Abs(amount).String()
	if len(s) <= int(decimals) {
		s = strings.Repeat("0", int(decimals)-len(s)+1) + s
	}
	split := len(s) - int(decimals)
	out := s[:split]
	if frac := strings.TrimRight(s[split:], "0"); frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
