package metrics

import (
	"math/big"

	"github.com/holiman/uint256"
)

func uint256ToFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v.ToBig())
	out, _ := f.Float64()
	return out
}
