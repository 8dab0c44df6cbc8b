package pow

import (
	"math/big"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
	"github.com/nipopow/nipowd/domain/consensus/utils/hashes"
	"github.com/pkg/errors"
)

// CheckProofOfWorkWithTarget check's if the block has a valid PoW according to the provided target
// it does not check if the difficulty itself is valid or less than the maximum for the appropriate network
func CheckProofOfWorkWithTarget(header *externalapi.DomainBlockHeader, target *big.Int) bool {
	return CheckHashWithTarget(consensushashing.HeaderHash(header), target)
}

// CheckProofOfWorkByBits check's if the block has a valid PoW according to its Bits field
// it does not check if the difficulty itself is valid or less than the maximum for the appropriate network
func CheckProofOfWorkByBits(header *externalapi.DomainBlockHeader) bool {
	return CheckProofOfWorkWithTarget(header, difficulty.CompactToBig(header.Bits))
}

// CheckHashWithTarget returns whether the given header hash, read as a
// little-endian number, is less than or equal to target
func CheckHashWithTarget(hash *externalapi.DomainHash, target *big.Int) bool {
	return hashes.ToBig(hash).Cmp(target) <= 0
}

// ValidateTarget returns an error if target is outside of (0, powMax]
func ValidateTarget(target *big.Int, powMax *big.Int) error {
	if target.Sign() <= 0 {
		return errors.Errorf("target %064x is not positive", target)
	}
	if target.Cmp(powMax) > 0 {
		return errors.Errorf("target %064x is higher than max of %064x", target, powMax)
	}
	return nil
}
