package hashes

import (
	"math/big"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

// cmp compares two hashes and returns:
//
//	-1 if a <  b
//	 0 if a == b
//	+1 if a >  b
func cmp(a, b *externalapi.DomainHash) int {
	aArray, bArray := a.ByteArray(), b.ByteArray()
	// We compare the hashes backwards because Hash is stored as a little endian byte array.
	for i := externalapi.DomainHashSize - 1; i >= 0; i-- {
		switch {
		case aArray[i] < bArray[i]:
			return -1
		case aArray[i] > bArray[i]:
			return 1
		}
	}
	return 0
}

// Less returns true iff hash a is less than hash b
func Less(a, b *externalapi.DomainHash) bool {
	return cmp(a, b) < 0
}

// ToBig converts a hash into a big.Int that can be used to
// perform math comparisons. The hash is interpreted as a
// little endian 256-bit number.
func ToBig(hash *externalapi.DomainHash) *big.Int {
	// A Hash is in little-endian, but the big package wants the bytes in
	// big-endian, so reverse them.
	buf := hash.ByteArray()
	blen := len(buf)
	for i := 0; i < blen/2; i++ {
		buf[i], buf[blen-1-i] = buf[blen-1-i], buf[i]
	}

	return new(big.Int).SetBytes(buf[:])
}
