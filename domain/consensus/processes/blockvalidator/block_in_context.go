package blockvalidator

import (
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
	"github.com/nipopow/nipowd/util/mstime"
	"github.com/pkg/errors"
)

// ValidateBlockInContext validates the block against the block it extends
func (v *blockValidator) ValidateBlockInContext(stagingArea *model.StagingArea, block *externalapi.DomainBlock) error {
	header := block.Header

	hasPrev, err := v.blockStore.HasBlock(v.databaseContext, stagingArea, header.PrevHash)
	if err != nil {
		return err
	}
	if !hasPrev {
		return ruleerrors.NewErrMissingParents([]*externalapi.DomainHash{header.PrevHash})
	}

	err = v.checkDifficulty(stagingArea, header)
	if err != nil {
		return err
	}

	err = v.checkTimestamp(stagingArea, header)
	if err != nil {
		return err
	}

	err = v.checkHeight(stagingArea, header)
	if err != nil {
		return err
	}

	return v.checkInterlink(stagingArea, block)
}

func (v *blockValidator) checkDifficulty(stagingArea *model.StagingArea, header *externalapi.DomainBlockHeader) error {
	expectedBits, err := v.difficultyManager.RequiredBits(stagingArea, header.PrevHash)
	if err != nil {
		return err
	}
	if header.Bits != expectedBits {
		return errors.Wrapf(ruleerrors.ErrUnexpectedDifficulty, "block difficulty of %08x is not the "+
			"expected value of %08x", header.Bits, expectedBits)
	}
	return nil
}

func (v *blockValidator) checkTimestamp(stagingArea *model.StagingArea, header *externalapi.DomainBlockHeader) error {
	pastMedianTime, err := v.pastMedianTimeManager.PastMedianTime(stagingArea, header.PrevHash)
	if err != nil {
		return err
	}
	if header.TimeInMilliseconds <= pastMedianTime {
		return errors.Wrapf(ruleerrors.ErrTimeTooOld, "block timestamp of %d is not after expected %d",
			header.TimeInMilliseconds, pastMedianTime)
	}

	maxTimestamp := mstime.NowMilliseconds() + v.maxTimestampDrift.Milliseconds()
	if header.TimeInMilliseconds > maxTimestamp {
		return errors.Wrapf(ruleerrors.ErrTimeTooMuchInTheFuture, "block timestamp of %d is too far "+
			"in the future, the maximum is %d", header.TimeInMilliseconds, maxTimestamp)
	}
	return nil
}

func (v *blockValidator) checkHeight(stagingArea *model.StagingArea, header *externalapi.DomainBlockHeader) error {
	prevChainData, err := v.chainDataStore.ChainData(v.databaseContext, stagingArea, header.PrevHash)
	if err != nil {
		return err
	}
	if header.Height != prevChainData.Height+1 {
		return errors.Wrapf(ruleerrors.ErrWrongBlockHeight, "block height %d does not follow its "+
			"predecessor's height %d", header.Height, prevChainData.Height)
	}
	return nil
}

func (v *blockValidator) checkInterlink(stagingArea *model.StagingArea, block *externalapi.DomainBlock) error {
	target := difficulty.CompactToBig(block.Header.Bits)
	expectedInterlink, err := v.interlinkManager.NextInterlink(stagingArea, block.Header.PrevHash, target)
	if err != nil {
		return err
	}
	if !block.Interlink.Equal(expectedInterlink) {
		return errors.Wrapf(ruleerrors.ErrBadInterlink, "block interlink %v is not the expected %v",
			block.Interlink, expectedInterlink)
	}

	interlinkHash := consensushashing.InterlinkHash(block.Interlink)
	if !block.Header.InterlinkHash.Equal(interlinkHash) {
		return errors.Wrapf(ruleerrors.ErrBadInterlinkHash, "block interlink hash %s is not the "+
			"expected %s", block.Header.InterlinkHash, interlinkHash)
	}
	return nil
}
