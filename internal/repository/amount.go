package repository

import (
	"fmt"
	"math/big"
)

// Monetary amounts are NUMERIC(78,0) in the database and *big.Int in Go.
// They cross the wire as decimal strings: wide enough for any minor-unit
// balance and free of float rounding.

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

func amountArg(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
