package blockprocessor

import (
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/infrastructure/logger"
	"github.com/pkg/errors"
)

// ValidateAndInsertBlock validates the given block and, if valid, applies it
// to the chain. Orphans waiting on the block are inserted right after it.
// A non-nil error is returned only for failures that are not rule errors.
func (bp *blockProcessor) ValidateAndInsertBlock(block *externalapi.DomainBlock) (*model.BlockInsertionResult, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "ValidateAndInsertBlock")
	defer onEnd()

	result, err := bp.validateAndInsertBlock(block)
	if err != nil {
		return nil, err
	}
	if !isStored(result.Result) {
		return result, nil
	}

	orphanEvents, err := bp.processOrphans(consensushashing.BlockHash(block))
	if err != nil {
		return nil, err
	}
	result.Events = append(result.Events, orphanEvents...)
	return result, nil
}

func (bp *blockProcessor) validateAndInsertBlock(block *externalapi.DomainBlock) (*model.BlockInsertionResult, error) {
	err := bp.blockValidator.ValidateBlockInIsolation(block)
	if err != nil {
		return bp.rejectBlock(nil, err)
	}
	blockHash := consensushashing.BlockHash(block)

	if bp.knownInvalid.Contains(*blockHash) {
		return bp.rejectBlock(nil, errors.Wrapf(ruleerrors.ErrKnownInvalid, "block %s is known to be invalid", blockHash))
	}

	stagingArea := model.NewStagingArea()
	hasBlock, err := bp.blockStore.HasBlock(bp.databaseContext, stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	if hasBlock {
		return &model.BlockInsertionResult{
			Result:    externalapi.PushResultOKKnown,
			RuleError: errors.Wrapf(ruleerrors.ErrDuplicateBlock, "block %s already exists", blockHash),
		}, nil
	}
	if bp.isKnownOrphan(blockHash) {
		return &model.BlockInsertionResult{
			Result:    externalapi.PushResultErrOrphan,
			RuleError: ruleerrors.NewErrMissingParents([]*externalapi.DomainHash{block.Header.PrevHash}),
		}, nil
	}

	err = bp.blockValidator.ValidateProofOfWork(block)
	if err != nil {
		return bp.rejectBlock(blockHash, err)
	}

	if bp.knownInvalid.Contains(*block.Header.PrevHash) {
		return bp.rejectBlock(blockHash, errors.Wrapf(ruleerrors.ErrInvalidAncestorBlock,
			"previous block %s of block %s is known to be invalid", block.Header.PrevHash, blockHash))
	}

	err = bp.blockValidator.ValidateBlockInContext(stagingArea, block)
	if err != nil {
		if ruleerrors.IsMissingParentsError(err) {
			bp.addOrphanBlock(blockHash, block)
			return &model.BlockInsertionResult{
				Result:    externalapi.PushResultErrOrphan,
				RuleError: err,
			}, nil
		}
		return bp.rejectBlock(blockHash, err)
	}

	err = bp.blockValidator.ValidateBlockBody(block)
	if err != nil {
		return bp.rejectBlock(blockHash, err)
	}

	result, events, err := bp.chainManager.AddBlock(stagingArea, blockHash, block)
	if err != nil {
		return bp.handleAddBlockError(blockHash, err)
	}

	err = bp.commitStagingArea(stagingArea)
	if err != nil {
		return nil, err
	}

	log.Debugf("Block %s at height %d: %s", blockHash, block.Header.Height, result)
	return &model.BlockInsertionResult{
		Result: result,
		Events: events,
	}, nil
}

// rejectBlock turns a validation error into an ErrInvalid result. Errors that
// are not rule errors are returned as is. When blockHash is set and the
// failure is bound to the header, the block and every orphan descending from
// it are remembered as invalid.
func (bp *blockProcessor) rejectBlock(blockHash *externalapi.DomainHash, err error) (*model.BlockInsertionResult, error) {
	if !ruleerrors.IsRuleError(err) {
		return nil, err
	}
	if blockHash != nil {
		log.Infof("Rejected block %s: %s", blockHash, err)
		if isBoundToHeader(err) {
			bp.markInvalid(blockHash)
		}
	} else {
		log.Debugf("Rejected block: %s", err)
	}
	return &model.BlockInsertionResult{
		Result:    externalapi.PushResultErrInvalid,
		RuleError: err,
	}, nil
}

// handleAddBlockError rejects the block that failed to be added. When a
// rebranch failed, the stored blocks of the failed branch are removed too.
func (bp *blockProcessor) handleAddBlockError(blockHash *externalapi.DomainHash, err error) (*model.BlockInsertionResult, error) {
	if !ruleerrors.IsRuleError(err) {
		return nil, err
	}

	var invalidBranch ruleerrors.ErrInvalidBranch
	if !errors.As(err, &invalidBranch) {
		return bp.rejectBlock(blockHash, err)
	}

	stagingArea := model.NewStagingArea()
	for _, invalidBlockHash := range invalidBranch.InvalidBlockHashes {
		hasBlock, hasBlockErr := bp.blockStore.HasBlock(bp.databaseContext, stagingArea, invalidBlockHash)
		if hasBlockErr != nil {
			return nil, hasBlockErr
		}
		if hasBlock {
			bp.blockStore.Delete(stagingArea, invalidBlockHash)
			bp.chainDataStore.Delete(stagingArea, invalidBlockHash)
		}
		if isBoundToHeader(invalidBranch.Err) {
			bp.markInvalid(invalidBlockHash)
		}
	}
	commitErr := bp.commitStagingArea(stagingArea)
	if commitErr != nil {
		return nil, commitErr
	}

	log.Warnf("Removed %d blocks of an invalid branch ending at %s: %s",
		len(invalidBranch.InvalidBlockHashes), blockHash, invalidBranch.Err)
	return &model.BlockInsertionResult{
		Result:    externalapi.PushResultErrInvalid,
		RuleError: err,
	}, nil
}

func (bp *blockProcessor) markInvalid(blockHash *externalapi.DomainHash) {
	bp.knownInvalid.Add(*blockHash, struct{}{})
	for _, orphanHash := range bp.removeOrphanDescendants(blockHash) {
		log.Debugf("Dropped orphan %s descending from invalid block %s", orphanHash, blockHash)
		bp.knownInvalid.Add(*orphanHash, struct{}{})
	}
}

// isBoundToHeader returns whether err condemns the block hash itself. The
// interlink and body are not covered by the block hash, so a mismatch in
// them only condemns the copy that was received. A timestamp too far in the
// future may become valid later.
func isBoundToHeader(err error) bool {
	return !errors.Is(err, ruleerrors.ErrMalformedBlock) &&
		!errors.Is(err, ruleerrors.ErrTimeTooMuchInTheFuture) &&
		!errors.Is(err, ruleerrors.ErrBadBodyHash) &&
		!errors.Is(err, ruleerrors.ErrBadInterlink) &&
		!errors.Is(err, ruleerrors.ErrBadInterlinkHash)
}

func isStored(result externalapi.PushResult) bool {
	return result == externalapi.PushResultOKExtended ||
		result == externalapi.PushResultOKRebranched ||
		result == externalapi.PushResultOKForked
}
