package testutils

import (
	"fmt"

	"github.com/kaspanet/go-secp256k1"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/txsigning"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
)

// TestUser is a deterministic key holder used to sign test transactions
type TestUser struct {
	Mnemonic  string
	KeyPair   *secp256k1.SchnorrKeyPair
	PublicKey externalapi.PublicKey
	Address   externalapi.Address
}

// NewTestUser returns the index'th deterministic test user. The same
// index always yields the same keys.
func NewTestUser(index int) (*TestUser, error) {
	entropy := blake2b.Sum256([]byte(fmt.Sprintf("test user %d", index)))
	mnemonic, err := bip39.NewMnemonic(entropy[:16])
	if err != nil {
		return nil, errors.WithStack(err)
	}
	keyPair, err := txsigning.KeyPairFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, err
	}
	publicKey, err := txsigning.PublicKey(keyPair)
	if err != nil {
		return nil, err
	}
	return &TestUser{
		Mnemonic:  mnemonic,
		KeyPair:   keyPair,
		PublicKey: publicKey,
		Address:   txsigning.AddressFromPublicKey(publicKey),
	}, nil
}

// NewTestUsers returns the first count deterministic test users
func NewTestUsers(count int) ([]*TestUser, error) {
	users := make([]*TestUser, count)
	for i := range users {
		var err error
		users[i], err = NewTestUser(i)
		if err != nil {
			return nil, err
		}
	}
	return users, nil
}

// SignedTransaction builds a transaction from sender to recipient and signs it
func (user *TestUser) SignedTransaction(recipient externalapi.Address, value, fee, nonce,
	validityStartHeight uint64) (*externalapi.DomainTransaction, error) {

	tx := &externalapi.DomainTransaction{
		Sender:              user.Address,
		Recipient:           recipient,
		Value:               value,
		Fee:                 fee,
		Nonce:               nonce,
		ValidityStartHeight: validityStartHeight,
	}
	err := txsigning.Sign(tx, user.KeyPair)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
