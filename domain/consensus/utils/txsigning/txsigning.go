// Package txsigning signs transactions and verifies their signatures
// using Schnorr signatures over secp256k1.
package txsigning

import (
	"github.com/kaspanet/go-secp256k1"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/hashes"
	"github.com/pkg/errors"
)

// AddressFromPublicKey derives the address controlled by publicKey
func AddressFromPublicKey(publicKey externalapi.PublicKey) externalapi.Address {
	writer := hashes.NewAddressHashWriter()
	writer.InfallibleWrite(publicKey[:])
	hash := writer.Finalize()

	var address externalapi.Address
	copy(address[:], hash.ByteSlice()[:externalapi.AddressSize])
	return address
}

// PublicKey returns the serialized public key of the given key pair
func PublicKey(keyPair *secp256k1.SchnorrKeyPair) (externalapi.PublicKey, error) {
	var publicKey externalapi.PublicKey
	secpPublicKey, err := keyPair.SchnorrPublicKey()
	if err != nil {
		return publicKey, errors.Wrap(err, "failed to derive public key")
	}
	serialized, err := secpPublicKey.Serialize()
	if err != nil {
		return publicKey, errors.Wrap(err, "failed to serialize public key")
	}
	copy(publicKey[:], serialized[:])
	return publicKey, nil
}

// Address returns the address controlled by the given key pair
func Address(keyPair *secp256k1.SchnorrKeyPair) (externalapi.Address, error) {
	publicKey, err := PublicKey(keyPair)
	if err != nil {
		return externalapi.Address{}, err
	}
	return AddressFromPublicKey(publicKey), nil
}

// Sign fills in the sender public key and the signature of tx
func Sign(tx *externalapi.DomainTransaction, keyPair *secp256k1.SchnorrKeyPair) error {
	publicKey, err := PublicKey(keyPair)
	if err != nil {
		return err
	}
	tx.SenderPublicKey = publicKey

	hash := consensushashing.TransactionSigningHash(tx)
	secpHash := secp256k1.Hash(*hash.ByteArray())
	signature, err := keyPair.SchnorrSign(&secpHash)
	if err != nil {
		return errors.Wrap(err, "cannot sign transaction")
	}
	copy(tx.Signature[:], signature.Serialize()[:])
	return nil
}

// Verify returns whether tx carries a valid signature by the owner of
// its sender public key. It does not check which address that key
// controls.
func Verify(tx *externalapi.DomainTransaction) bool {
	publicKey, err := secp256k1.DeserializeSchnorrPubKey(tx.SenderPublicKey[:])
	if err != nil {
		return false
	}
	signature, err := secp256k1.DeserializeSchnorrSignatureFromSlice(tx.Signature[:])
	if err != nil {
		return false
	}
	hash := consensushashing.TransactionSigningHash(tx)
	secpHash := secp256k1.Hash(*hash.ByteArray())
	return publicKey.SchnorrVerify(&secpHash, signature)
}
