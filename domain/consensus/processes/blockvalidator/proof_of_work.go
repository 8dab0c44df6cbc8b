package blockvalidator

import (
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
	"github.com/nipopow/nipowd/domain/consensus/utils/pow"
	"github.com/pkg/errors"
)

// ValidateProofOfWork ensures the block header bits which indicate the target
// difficulty is in min/max range and that the block hash is less than the
// target difficulty as claimed.
//
// The check that the block hash is less than the target is skipped on
// networks that skip proof of work.
func (v *blockValidator) ValidateProofOfWork(block *externalapi.DomainBlock) error {
	header := block.Header

	// The target difficulty must be larger than zero.
	target := difficulty.CompactToBig(header.Bits)
	if target.Sign() <= 0 {
		return errors.Wrapf(ruleerrors.ErrNegativeTarget, "block target difficulty of %064x is too low",
			target)
	}

	// The target difficulty must be less than the maximum allowed.
	if target.Cmp(v.powMax) > 0 {
		return errors.Wrapf(ruleerrors.ErrTargetTooHigh, "block target difficulty of %064x is "+
			"higher than max of %064x", target, v.powMax)
	}

	if !v.skipPoW {
		if !pow.CheckProofOfWorkWithTarget(header, target) {
			return errors.Wrapf(ruleerrors.ErrInvalidPoW, "block has invalid proof of work")
		}
	}
	return nil
}
