// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package wallet

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/jllopis/basedagent/pkg/errors"
)

// ToBaseUnits converts decimal text to integer base units. Amounts with more
// fractional digits than decimals, and negative amounts, are rejected.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(amount))
	if !ok {
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid amount %q", amount), nil)
	}
	if r.Sign() < 0 {
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("amount %s is negative", amount), nil)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	if !r.IsInt() {
		return nil, errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("amount %s has more than %d decimal places", amount, decimals), nil)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FormatUnits renders base units as decimal text without trailing zeros.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	if decimals == 0 {
		return v.String()
	}
	neg := v.Sign() < 0
	digits := new(big.Int).Abs(v).String()
	if len(digits) <= int(decimals) {
		digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
	}
	cut := len(digits) - int(decimals)
	whole, frac := digits[:cut], strings.TrimRight(digits[cut:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
