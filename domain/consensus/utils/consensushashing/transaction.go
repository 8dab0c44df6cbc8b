package consensushashing

import (
	"io"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/hashes"
	"github.com/nipopow/nipowd/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

// TransactionSize is the size of a serialized transaction, signature included
const TransactionSize = 2*externalapi.AddressSize + externalapi.PublicKeySize + 4*8 + externalapi.SignatureSize

// TransactionHash returns the transaction hash. The signature is not
// part of it.
func TransactionHash(tx *externalapi.DomainTransaction) *externalapi.DomainHash {
	writer := hashes.NewTransactionHashWriter()
	err := serializeTransaction(writer, tx, false)
	if err != nil {
		panic(errors.Wrap(err, "TransactionHash() failed. this should never fail for structurally-valid transactions"))
	}
	return writer.Finalize()
}

// TransactionSigningHash returns the hash that the sender signs
func TransactionSigningHash(tx *externalapi.DomainTransaction) *externalapi.DomainHash {
	writer := hashes.NewTransactionSigningHashWriter()
	err := serializeTransaction(writer, tx, false)
	if err != nil {
		panic(errors.Wrap(err, "TransactionSigningHash() failed. this should never fail for structurally-valid transactions"))
	}
	return writer.Finalize()
}

func serializeTransaction(w io.Writer, tx *externalapi.DomainTransaction, includeSignature bool) error {
	err := serialization.WriteElements(w,
		tx.Sender,
		tx.SenderPublicKey,
		tx.Recipient,
		tx.Value,
		tx.Fee,
		tx.Nonce,
		tx.ValidityStartHeight)
	if err != nil {
		return err
	}
	if includeSignature {
		return serialization.WriteElement(w, tx.Signature)
	}
	return nil
}
