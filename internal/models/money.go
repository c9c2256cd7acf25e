package models

import "math/big"

// weiPerEther is the fixed-point scale of the ledger's monetary values.
var weiPerEther = new(big.Float).SetInt(big.NewInt(1e18))

// WeiToEther converts a wei amount to a display-grade ether value. Precision
// loss is bounded by float64 rounding; exact settlement math stays on the
// native *big.Int values.
func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return f
}

// EtherToWei converts a decimal ether amount to wei, truncating below the
// smallest unit.
func EtherToWei(ether float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(ether), weiPerEther).Int(nil)
	return wei
}
