package blockvalidator

import (
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/txsigning"
	"github.com/pkg/errors"
)

// ValidateBlockBody checks that the body is the one the header commits to
// and that every transaction is signed by its sender key
func (v *blockValidator) ValidateBlockBody(block *externalapi.DomainBlock) error {
	bodyHash := consensushashing.BodyHash(block.Body)
	if !block.Header.BodyHash.Equal(bodyHash) {
		return errors.Wrapf(ruleerrors.ErrBadBodyHash, "block body hash %s is not the expected %s",
			block.Header.BodyHash, bodyHash)
	}

	for i, tx := range block.Body.Transactions {
		if !txsigning.Verify(tx) {
			return ruleerrors.NewErrInvalidTransaction(i, tx,
				errors.Wrapf(ruleerrors.ErrInvalidSignature, "transaction signature does not verify"))
		}
	}
	return nil
}
