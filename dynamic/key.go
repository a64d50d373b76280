// Key is the 16-byte (128-bit) slot used for a dynamic record's primary
// and secondary fields (spec.md §3 "Record (dynamic)"). Its comparison
// mode — integer, unsigned, string or memory — is fixed per Index at
// first create (Design Notes §9's resolved Open Question: the mode tag
// is load-bearing, not merely informational, since it changes the
// ordering every subsequent insert must respect).
package dynamic

import (
	"bytes"
	"math/big"
)

// Key holds a 128-bit primary or secondary value in big-endian byte
// order, interpreted according to a Mode.
type Key [16]byte

// Mode selects how two Keys within the same ordering are compared.
// math/big is used for the integer modes rather than a hand-rolled
// 128-bit comparator: Go has no native int128, and no example in the
// retrieval pack pulls in a bignum library, so the standard library is
// the least surprising choice here (see DESIGN.md).
type Mode int

const (
	// CompareUnsigned orders Keys as unsigned 128-bit big-endian
	// integers.
	CompareUnsigned Mode = iota
	// CompareSigned orders Keys as two's-complement signed 128-bit
	// big-endian integers.
	CompareSigned
	// CompareString orders Keys as NUL-terminated byte strings (a Key
	// shorter than 16 bytes is padded with zeros and the comparison
	// stops at the first zero byte in either operand).
	CompareString
	// CompareMemory orders Keys as raw 16-byte sequences, every byte
	// significant.
	CompareMemory
)

// KeyFromUint64 places v into the low 8 bytes of a Key, high bytes zero
// — the common case of a small non-negative key under CompareUnsigned
// or CompareSigned.
func KeyFromUint64(v uint64) Key {
	var k Key
	for i := 0; i < 8; i++ {
		k[15-i] = byte(v >> (8 * i))
	}
	return k
}

// KeyFromInt64 places v into the low 8 bytes of a Key, sign-extending
// into the high bytes — for use under CompareSigned.
func KeyFromInt64(v int64) Key {
	var k Key
	fill := byte(0)
	if v < 0 {
		fill = 0xff
	}
	for i := 0; i < 16; i++ {
		k[i] = fill
	}
	for i := 0; i < 8; i++ {
		k[15-i] = byte(v >> (8 * i))
	}
	return k
}

// KeyFromString truncates or zero-pads s into a 16-byte Key — for use
// under CompareString.
func KeyFromString(s string) Key {
	var k Key
	copy(k[:], s)
	return k
}

// KeyFromBytes truncates or zero-pads b into a 16-byte Key — for use
// under CompareMemory.
func KeyFromBytes(b []byte) Key {
	var k Key
	copy(k[:], b)
	return k
}

func unsignedBig(k Key) *big.Int {
	return new(big.Int).SetBytes(k[:])
}

func signedBig(k Key) *big.Int {
	v := unsignedBig(k)
	if k[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return v
}

func stringBound(k Key) []byte {
	if i := bytes.IndexByte(k[:], 0); i >= 0 {
		return k[:i]
	}
	return k[:]
}

// Compare orders a and b under mode.
func Compare(mode Mode, a, b Key) int {
	switch mode {
	case CompareSigned:
		return signedBig(a).Cmp(signedBig(b))
	case CompareString:
		return bytes.Compare(stringBound(a), stringBound(b))
	case CompareMemory:
		return bytes.Compare(a[:], b[:])
	default: // CompareUnsigned
		return unsignedBig(a).Cmp(unsignedBig(b))
	}
}
