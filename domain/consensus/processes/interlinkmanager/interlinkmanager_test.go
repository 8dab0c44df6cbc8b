package interlinkmanager

import (
	"math/big"
	"testing"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
)

func testHash(b byte) *externalapi.DomainHash {
	return externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{b})
}

func TestNextInterlink(t *testing.T) {
	prev := testHash(0xaa)
	a, b, c := testHash(1), testHash(2), testHash(3)

	tests := []struct {
		name            string
		prevInterlink   externalapi.BlockInterlink
		prevHashDepth   int
		prevTargetDepth int
		nextTargetDepth int
		expected        externalapi.BlockInterlink
	}{
		{
			name:            "after genesis",
			prevInterlink:   nil,
			prevHashDepth:   0,
			prevTargetDepth: 0,
			nextTargetDepth: 0,
			expected:        externalapi.BlockInterlink{prev},
		},
		{
			name:            "predecessor does not qualify for higher levels",
			prevInterlink:   externalapi.BlockInterlink{a, b, c},
			prevHashDepth:   5,
			prevTargetDepth: 5,
			nextTargetDepth: 5,
			expected:        externalapi.BlockInterlink{prev, b, c},
		},
		{
			name:            "predecessor is a superblock",
			prevInterlink:   externalapi.BlockInterlink{a, b, c},
			prevHashDepth:   7,
			prevTargetDepth: 5,
			nextTargetDepth: 5,
			expected:        externalapi.BlockInterlink{prev, prev, prev},
		},
		{
			name:            "predecessor extends the interlink",
			prevInterlink:   externalapi.BlockInterlink{a, b},
			prevHashDepth:   8,
			prevTargetDepth: 5,
			nextTargetDepth: 5,
			expected:        externalapi.BlockInterlink{prev, prev, prev, prev},
		},
		{
			name:            "target got harder",
			prevInterlink:   externalapi.BlockInterlink{a, b, c},
			prevHashDepth:   6,
			prevTargetDepth: 5,
			nextTargetDepth: 6,
			expected:        externalapi.BlockInterlink{prev, c},
		},
		{
			name:            "target got easier",
			prevInterlink:   externalapi.BlockInterlink{a, b, c},
			prevHashDepth:   4,
			prevTargetDepth: 5,
			nextTargetDepth: 4,
			expected:        externalapi.BlockInterlink{prev, a, b, c},
		},
		{
			name:            "hash above the target",
			prevInterlink:   externalapi.BlockInterlink{a},
			prevHashDepth:   -3,
			prevTargetDepth: 0,
			nextTargetDepth: 0,
			expected:        externalapi.BlockInterlink{prev},
		},
	}

	for _, test := range tests {
		interlink := nextInterlink(prev, test.prevInterlink, test.prevHashDepth,
			test.prevTargetDepth, test.nextTargetDepth)
		if !interlink.Equal(test.expected) {
			t.Errorf("%s: expected interlink %v but got %v", test.name, test.expected, interlink)
		}
	}
}

func TestDepths(t *testing.T) {
	powMax := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	manager := New(powMax, nil, nil)

	if depth := manager.TargetDepth(powMax); depth != 0 {
		t.Fatalf("expected the maximum target to have depth 0 but got %d", depth)
	}
	if depth := manager.TargetDepth(new(big.Int).Rsh(powMax, 3)); depth != 3 {
		t.Fatalf("expected depth 3 but got %d", depth)
	}

	// Hashes are little-endian numbers, so the last byte is the most
	// significant one
	var hashBytes [externalapi.DomainHashSize]byte
	hashBytes[31] = 0x0f
	hash := externalapi.NewDomainHashFromByteArray(&hashBytes)
	if depth := manager.HashDepth(hash); depth != 3 {
		t.Fatalf("expected hash depth 3 but got %d", depth)
	}

	bits := difficulty.BigToCompact(new(big.Int).Rsh(powMax, 1))
	if depth := manager.SuperBlockDepth(hash, bits); depth != 2 {
		t.Fatalf("expected superblock depth 2 but got %d", depth)
	}
}
