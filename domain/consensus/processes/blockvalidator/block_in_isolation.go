package blockvalidator

import (
	"math"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/pkg/errors"
)

// ValidateBlockInIsolation validates a block in isolation from the current
// consensus state
func (v *blockValidator) ValidateBlockInIsolation(block *externalapi.DomainBlock) error {
	err := checkBlockIsWellFormed(block)
	if err != nil {
		return err
	}

	err = v.checkBlockVersion(block.Header)
	if err != nil {
		return err
	}

	err = v.checkBlockSize(block)
	if err != nil {
		return err
	}

	err = v.checkExtraDataSize(block.Body)
	if err != nil {
		return err
	}

	err = checkDuplicateTransactions(block.Body)
	if err != nil {
		return err
	}

	return v.checkTransactionsInIsolation(block)
}

func checkBlockIsWellFormed(block *externalapi.DomainBlock) error {
	if block == nil {
		return errors.Wrapf(ruleerrors.ErrMalformedBlock, "block is nil")
	}
	if block.Header == nil {
		return errors.Wrapf(ruleerrors.ErrMalformedBlock, "block has no header")
	}
	if block.Body == nil {
		return errors.Wrapf(ruleerrors.ErrMalformedBlock, "block has no body")
	}

	header := block.Header
	if header.PrevHash == nil || header.InterlinkHash == nil ||
		header.BodyHash == nil || header.AccountsHash == nil {
		return errors.Wrapf(ruleerrors.ErrMalformedBlock, "block header is missing a hash")
	}
	if len(block.Interlink) == 0 {
		return errors.Wrapf(ruleerrors.ErrMalformedBlock, "block has an empty interlink")
	}
	for i, hash := range block.Interlink {
		if hash == nil {
			return errors.Wrapf(ruleerrors.ErrMalformedBlock, "interlink level %d is missing", i)
		}
	}
	for i, tx := range block.Body.Transactions {
		if tx == nil {
			return errors.Wrapf(ruleerrors.ErrMalformedBlock, "transaction #%d is missing", i)
		}
	}
	return nil
}

func (v *blockValidator) checkBlockVersion(header *externalapi.DomainBlockHeader) error {
	if header.Version != v.blockVersion {
		return errors.Wrapf(ruleerrors.ErrBlockVersionIsUnknown, "block version %d is not %d",
			header.Version, v.blockVersion)
	}
	return nil
}

func (v *blockValidator) checkBlockSize(block *externalapi.DomainBlock) error {
	size := consensushashing.BlockSize(block)
	if size > v.maxBlockSize {
		return errors.Wrapf(ruleerrors.ErrBlockSizeTooHigh, "block size of %d is higher than max of %d",
			size, v.maxBlockSize)
	}
	return nil
}

func (v *blockValidator) checkExtraDataSize(body *externalapi.DomainBlockBody) error {
	if len(body.ExtraData) > v.maxExtraDataSize {
		return errors.Wrapf(ruleerrors.ErrExtraDataTooLong, "extra data of %d bytes is longer than max of %d",
			len(body.ExtraData), v.maxExtraDataSize)
	}
	return nil
}

func checkDuplicateTransactions(body *externalapi.DomainBlockBody) error {
	existingTxHashes := make(map[externalapi.DomainHash]struct{}, len(body.Transactions))
	for _, tx := range body.Transactions {
		id := consensushashing.TransactionHash(tx)
		if _, exists := existingTxHashes[*id]; exists {
			return errors.Wrapf(ruleerrors.ErrDuplicateTx, "block contains duplicate "+
				"transaction %s", id)
		}
		existingTxHashes[*id] = struct{}{}
	}
	return nil
}

func (v *blockValidator) checkTransactionsInIsolation(block *externalapi.DomainBlock) error {
	height := block.Header.Height
	for i, tx := range block.Body.Transactions {
		err := v.checkTransactionInIsolation(tx, height)
		if err != nil {
			return ruleerrors.NewErrInvalidTransaction(i, tx, err)
		}
	}
	return nil
}

func (v *blockValidator) checkTransactionInIsolation(tx *externalapi.DomainTransaction, height uint64) error {
	if tx.Value == 0 {
		return errors.Wrapf(ruleerrors.ErrBadTxValue, "transaction value is zero")
	}
	if tx.Value > math.MaxUint64-tx.Fee {
		return errors.Wrapf(ruleerrors.ErrBadTxValue, "transaction value %d and fee %d overflow",
			tx.Value, tx.Fee)
	}
	if tx.Sender == tx.Recipient {
		return errors.Wrapf(ruleerrors.ErrSenderIsRecipient, "transaction sends to its sender %s", tx.Sender)
	}

	validityEnd := tx.ValidityStartHeight + v.transactionValidityWindow
	if validityEnd < tx.ValidityStartHeight {
		validityEnd = math.MaxUint64
	}
	if height < tx.ValidityStartHeight || height >= validityEnd {
		return errors.Wrapf(ruleerrors.ErrTxOutsideValidityWindow, "transaction is valid in "+
			"heights [%d, %d) but the block is at height %d", tx.ValidityStartHeight, validityEnd, height)
	}
	return nil
}
