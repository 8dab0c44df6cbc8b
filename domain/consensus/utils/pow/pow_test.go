package pow

import (
	"math/big"
	"testing"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/hashes"
)

func TestCheckProofOfWork(t *testing.T) {
	header := &externalapi.DomainBlockHeader{
		Version:            1,
		PrevHash:           externalapi.NewZeroHash(),
		Bits:               0x207fffff,
		Height:             1,
		TimeInMilliseconds: 1600000000000,
	}
	hashValue := hashes.ToBig(consensushashing.HeaderHash(header))

	if !CheckProofOfWorkWithTarget(header, hashValue) {
		t.Fatalf("TestCheckProofOfWork: a hash equal to the target must be accepted")
	}
	lower := new(big.Int).Sub(hashValue, big.NewInt(1))
	if CheckProofOfWorkWithTarget(header, lower) {
		t.Fatalf("TestCheckProofOfWork: a hash above the target must be rejected")
	}

	maxTarget := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if !CheckProofOfWorkWithTarget(header, maxTarget) {
		t.Fatalf("TestCheckProofOfWork: every hash must satisfy the maximal target")
	}
}

func TestValidateTarget(t *testing.T) {
	powMax := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	tests := []struct {
		target      *big.Int
		expectError bool
	}{
		{big.NewInt(0), true},
		{big.NewInt(-5), true},
		{big.NewInt(1), false},
		{powMax, false},
		{new(big.Int).Add(powMax, big.NewInt(1)), true},
	}
	for i, test := range tests {
		err := ValidateTarget(test.target, powMax)
		if (err != nil) != test.expectError {
			t.Fatalf("TestValidateTarget: test #%d: expected error: %t, got: %v", i, test.expectError, err)
		}
	}
}
