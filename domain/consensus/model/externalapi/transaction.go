package externalapi

// PublicKeySize is the size of a serialized Schnorr public key
const PublicKeySize = 32

// SignatureSize is the size of a serialized Schnorr signature
const SignatureSize = 64

// PublicKey is a serialized Schnorr public key
type PublicKey [PublicKeySize]byte

// Signature is a serialized Schnorr signature
type Signature [SignatureSize]byte

// DomainTransaction transfers Value from Sender to Recipient and pays
// Fee to the miner of the block that includes it
type DomainTransaction struct {
	Sender              Address
	SenderPublicKey     PublicKey
	Recipient           Address
	Value               uint64
	Fee                 uint64
	Nonce               uint64
	ValidityStartHeight uint64
	Signature           Signature
}

// Clone returns a clone of DomainTransaction
func (tx *DomainTransaction) Clone() *DomainTransaction {
	clone := *tx
	return &clone
}

// Equal returns whether tx equals to other
func (tx *DomainTransaction) Equal(other *DomainTransaction) bool {
	if tx == nil || other == nil {
		return tx == other
	}
	return *tx == *other
}

// CloneTransactions returns a deep clone of the given transactions
func CloneTransactions(transactions []*DomainTransaction) []*DomainTransaction {
	clone := make([]*DomainTransaction, len(transactions))
	for i, tx := range transactions {
		clone[i] = tx.Clone()
	}
	return clone
}
