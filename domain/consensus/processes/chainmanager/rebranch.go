package chainmanager

import (
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

// rebranch moves the main chain onto the branch ending at blockHash, which
// is heavier than the current main chain. The blocks of the old branch are
// reverted from the head down to the fork point, and the blocks of the new
// branch are applied from the fork point up.
func (cm *chainManager) rebranch(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash,
	block *externalapi.DomainBlock, chainData *externalapi.ChainData) ([]externalapi.ChainEvent, error) {

	forkPoint, newBranch, err := cm.findForkPoint(stagingArea, block.Header.PrevHash)
	if err != nil {
		return nil, err
	}
	newBranch = append(newBranch, blockHash)

	accountsTransaction, err := cm.accountsTree.BeginTransaction(cm.databaseContext)
	if err != nil {
		return nil, err
	}

	revertSteps, err := cm.revertToForkPoint(stagingArea, accountsTransaction, forkPoint)
	if err != nil {
		accountsTransaction.Abort()
		return nil, err
	}

	forwardSteps := make([]*externalapi.ReorgStep, 0, len(newBranch))
	newBranchChainData := make([]*externalapi.ChainData, 0, len(newBranch))
	for i, branchHash := range newBranch {
		branchBlock, branchChainData := block, chainData
		if i < len(newBranch)-1 {
			branchBlock, err = cm.block(stagingArea, branchHash)
			if err != nil {
				accountsTransaction.Abort()
				return nil, err
			}
			branchChainData, err = cm.chainData(stagingArea, branchHash)
			if err != nil {
				accountsTransaction.Abort()
				return nil, err
			}
		}

		err = cm.applyBlockBody(accountsTransaction, branchHash, branchBlock)
		if err != nil {
			accountsTransaction.Abort()
			if ruleerrors.IsRuleError(err) {
				log.Warnf("Rebranch to %s failed at block %s: %s", blockHash, branchHash, err)
				return nil, ruleerrors.NewErrInvalidBranch(newBranch[i:], err)
			}
			return nil, err
		}

		forwardSteps = append(forwardSteps, &externalapi.ReorgStep{
			Block:     branchBlock,
			Hash:      branchHash,
			Direction: externalapi.ReorgDirectionForward,
		})
		newBranchChainData = append(newBranchChainData, branchChainData)
	}

	cm.accountsTree.StageTransaction(stagingArea, accountsTransaction)
	err = cm.stageRebranch(stagingArea, forkPoint, revertSteps, forwardSteps, newBranchChainData)
	if err != nil {
		return nil, err
	}
	cm.blockStore.Stage(stagingArea, blockHash, block)

	log.Infof("Rebranched to block %s at height %d: reverted %d blocks and applied %d blocks",
		blockHash, chainData.Height, len(revertSteps), len(forwardSteps))

	steps := append(revertSteps, forwardSteps...)
	return []externalapi.ChainEvent{
		&externalapi.BlockAddedEvent{Block: block, Hash: blockHash, Result: externalapi.PushResultOKRebranched},
		&externalapi.ReorgEvent{Steps: steps},
		&externalapi.HeadChangedEvent{Block: block, Hash: blockHash, Rebranching: true},
	}, nil
}

func (cm *chainManager) stageRebranch(stagingArea *model.StagingArea, forkPoint *externalapi.DomainHash,
	revertSteps []*externalapi.ReorgStep, forwardSteps []*externalapi.ReorgStep,
	newBranchChainData []*externalapi.ChainData) error {

	for _, step := range revertSteps {
		revertedChainData, err := cm.chainData(stagingArea, step.Hash)
		if err != nil {
			return err
		}
		revertedChainData.OnMainChain = false
		revertedChainData.MainChainSuccessor = nil
		cm.chainDataStore.Stage(stagingArea, step.Hash, revertedChainData)
		cm.chainDataStore.DeleteMainChainHash(stagingArea, revertedChainData.Height)
	}

	for i, step := range forwardSteps {
		appliedChainData := newBranchChainData[i]
		appliedChainData.OnMainChain = true
		appliedChainData.MainChainSuccessor = nil
		if i+1 < len(forwardSteps) {
			appliedChainData.MainChainSuccessor = forwardSteps[i+1].Hash
		}
		cm.chainDataStore.Stage(stagingArea, step.Hash, appliedChainData)
		cm.chainDataStore.StageMainChainHash(stagingArea, appliedChainData.Height, step.Hash)
	}

	forkPointChainData, err := cm.chainData(stagingArea, forkPoint)
	if err != nil {
		return err
	}
	forkPointChainData.MainChainSuccessor = forwardSteps[0].Hash
	cm.chainDataStore.Stage(stagingArea, forkPoint, forkPointChainData)

	cm.chainDataStore.StageHead(stagingArea, forwardSteps[len(forwardSteps)-1].Hash)
	return nil
}

// findForkPoint walks back from blockHash to the first block on the main
// chain. It returns that block and the blocks after it up to and including
// blockHash, in fork-first order.
func (cm *chainManager) findForkPoint(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) (*externalapi.DomainHash, []*externalapi.DomainHash, error) {

	var branch []*externalapi.DomainHash
	current := blockHash
	for {
		exists, err := cm.chainDataStore.Has(cm.databaseContext, stagingArea, current)
		if err != nil {
			return nil, nil, err
		}
		if !exists {
			return nil, nil, errors.Wrapf(ruleerrors.ErrInvalidAncestorBlock,
				"ancestor %s of block %s was removed as invalid", current, blockHash)
		}

		chainData, err := cm.chainData(stagingArea, current)
		if err != nil {
			return nil, nil, err
		}
		if chainData.OnMainChain {
			break
		}
		branch = append(branch, current)

		block, err := cm.block(stagingArea, current)
		if err != nil {
			return nil, nil, err
		}
		current = block.Header.PrevHash
	}

	for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
		branch[i], branch[j] = branch[j], branch[i]
	}
	return current, branch, nil
}

// revertToForkPoint reverts the main chain blocks from the head down to,
// and excluding, forkPoint from accountsTransaction. It returns the
// reverted blocks in head-first order.
func (cm *chainManager) revertToForkPoint(stagingArea *model.StagingArea,
	accountsTransaction model.AccountsTransaction, forkPoint *externalapi.DomainHash) ([]*externalapi.ReorgStep, error) {

	current, err := cm.head(stagingArea)
	if err != nil {
		return nil, err
	}

	var steps []*externalapi.ReorgStep
	for !current.Equal(forkPoint) {
		block, err := cm.block(stagingArea, current)
		if err != nil {
			return nil, err
		}
		err = accountsTransaction.RevertBlockBody(block.Body, block.Header.Height)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot revert main chain block %s", current)
		}
		steps = append(steps, &externalapi.ReorgStep{
			Block:     block,
			Hash:      current,
			Direction: externalapi.ReorgDirectionRevert,
		})
		current = block.Header.PrevHash
	}
	return steps, nil
}
