package chainmanager

import (
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

// applyBlockBody applies the body of block to accountsTransaction. The body
// must already have passed ValidateBlockBody. The resulting accounts tree
// root must be the one the block header commits to.
func (cm *chainManager) applyBlockBody(accountsTransaction model.AccountsTransaction,
	blockHash *externalapi.DomainHash, block *externalapi.DomainBlock) error {

	err := accountsTransaction.CommitBlockBody(block.Body, block.Header.Height)
	if err != nil {
		return err
	}

	accountsHash, err := accountsTransaction.Hash()
	if err != nil {
		return err
	}
	if !accountsHash.Equal(block.Header.AccountsHash) {
		return errors.Wrapf(ruleerrors.ErrBadAccountsHash, "block %s commits to accounts hash %s "+
			"but applying it results in %s", blockHash, block.Header.AccountsHash, accountsHash)
	}
	return nil
}
