package txsigning

import (
	"github.com/kaspanet/go-secp256k1"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
)

// NewMnemonic returns a fresh 24 word mnemonic
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", errors.WithStack(err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return mnemonic, nil
}

// KeyPairFromMnemonic deterministically derives a Schnorr key pair
// from a bip39 mnemonic and an optional passphrase
func KeyPairFromMnemonic(mnemonic string, passphrase string) (*secp256k1.SchnorrKeyPair, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mnemonic")
	}
	privateKeyBytes := blake2b.Sum256(seed)
	keyPair, err := secp256k1.DeserializeSchnorrPrivateKeyFromSlice(privateKeyBytes[:])
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive a private key from the mnemonic")
	}
	return keyPair, nil
}
