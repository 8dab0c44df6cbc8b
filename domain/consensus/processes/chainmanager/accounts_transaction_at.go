package chainmanager

import (
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// AccountsTransactionAt returns an accounts transaction holding the state
// of the accounts tree right after blockHash, which may be on a fork. The
// caller must abort the transaction once done.
func (cm *chainManager) AccountsTransactionAt(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) (model.AccountsTransaction, error) {

	forkPoint, branch, err := cm.findForkPoint(stagingArea, blockHash)
	if err != nil {
		return nil, err
	}

	accountsTransaction, err := cm.accountsTree.BeginTransaction(cm.databaseContext)
	if err != nil {
		return nil, err
	}

	_, err = cm.revertToForkPoint(stagingArea, accountsTransaction, forkPoint)
	if err != nil {
		accountsTransaction.Abort()
		return nil, err
	}

	for _, branchHash := range branch {
		block, err := cm.block(stagingArea, branchHash)
		if err != nil {
			accountsTransaction.Abort()
			return nil, err
		}
		err = accountsTransaction.CommitBlockBody(block.Body, block.Header.Height)
		if err != nil {
			accountsTransaction.Abort()
			return nil, errors.Wrapf(err, "cannot apply fork block %s", branchHash)
		}
	}
	return accountsTransaction, nil
}
