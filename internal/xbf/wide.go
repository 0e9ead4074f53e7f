package xbf

import (
	"math/big"
)

// U128 is an unsigned 128-bit integer as two 64-bit limbs, least
// significant first.
type U128 [2]uint64

// I128 is a two's complement signed 128-bit integer, limbs least significant
// first.
type I128 [2]uint64

// U256 is an unsigned 256-bit integer as four 64-bit limbs in ascending
// significance.
type U256 [4]uint64

// I256 is a two's complement signed 256-bit integer, limbs in ascending
// significance.
type I256 [4]uint64

func limbsToBig(limbs []uint64) *big.Int {
	n := new(big.Int)
	for i := len(limbs) - 1; i >= 0; i-- {
		n.Lsh(n, 64)
		n.Or(n, new(big.Int).SetUint64(limbs[i]))
	}
	return n
}

// bigToLimbs writes the low 64*len(limbs) bits of a non-negative n into limbs.
func bigToLimbs(n *big.Int, limbs []uint64) {
	mask := new(big.Int).SetUint64(^uint64(0))
	v := new(big.Int).Set(n)
	for i := range limbs {
		limbs[i] = new(big.Int).And(v, mask).Uint64()
		v.Rsh(v, 64)
	}
}

func signedToBig(limbs []uint64) *big.Int {
	n := limbsToBig(limbs)
	if limbs[len(limbs)-1]>>63 == 1 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(64*len(limbs))))
	}
	return n
}

func signedFromBig(n *big.Int, limbs []uint64) bool {
	bits := uint(64 * len(limbs))
	limit := new(big.Int).Lsh(big.NewInt(1), bits-1)
	if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
		return false
	}
	v := new(big.Int).Set(n)
	if v.Sign() < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	bigToLimbs(v, limbs)
	return true
}

func unsignedFromBig(n *big.Int, limbs []uint64) bool {
	if n.Sign() < 0 || n.BitLen() > 64*len(limbs) {
		return false
	}
	bigToLimbs(n, limbs)
	return true
}

func (u U128) Big() *big.Int { return limbsToBig(u[:]) }
func (u I128) Big() *big.Int { return signedToBig(u[:]) }
func (u U256) Big() *big.Int { return limbsToBig(u[:]) }
func (u I256) Big() *big.Int { return signedToBig(u[:]) }

func (u U128) String() string { return u.Big().String() }
func (u I128) String() string { return u.Big().String() }
func (u U256) String() string { return u.Big().String() }
func (u I256) String() string { return u.Big().String() }

// U128FromBig converts n, reporting false if it is out of range.
func U128FromBig(n *big.Int) (U128, bool) {
	var u U128
	ok := unsignedFromBig(n, u[:])
	return u, ok
}

// I128FromBig converts n, reporting false if it is out of range.
func I128FromBig(n *big.Int) (I128, bool) {
	var u I128
	ok := signedFromBig(n, u[:])
	return u, ok
}

// U256FromBig converts n, reporting false if it is out of range.
func U256FromBig(n *big.Int) (U256, bool) {
	var u U256
	ok := unsignedFromBig(n, u[:])
	return u, ok
}

// I256FromBig converts n, reporting false if it is out of range.
func I256FromBig(n *big.Int) (I256, bool) {
	var u I256
	ok := signedFromBig(n, u[:])
	return u, ok
}
