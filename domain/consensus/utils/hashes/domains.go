package hashes

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const (
	blockHashDomain            = "BlockHash"
	bodyHashDomain             = "BlockBodyHash"
	interlinkHashDomain        = "InterlinkHash"
	transactionHashDomain      = "TransactionHash"
	transactionSigningDomain   = "TransactionSigningHash"
	accountsTreeNodeHashDomain = "AccountsTreeNodeHash"
	addressDomain              = "Address"
)

func newHashWriter(domain string) HashWriter {
	blake, err := blake2b.New256([]byte(domain))
	if err != nil {
		panic(errors.Wrapf(err, "this should never happen. %s is less than 64 bytes", domain))
	}
	return HashWriter{blake}
}

// NewBlockHashWriter Returns a new HashWriter used for block headers and proof of work
func NewBlockHashWriter() HashWriter {
	return newHashWriter(blockHashDomain)
}

// NewBodyHashWriter Returns a new HashWriter used for block bodies
func NewBodyHashWriter() HashWriter {
	return newHashWriter(bodyHashDomain)
}

// NewInterlinkHashWriter Returns a new HashWriter used for block interlinks
func NewInterlinkHashWriter() HashWriter {
	return newHashWriter(interlinkHashDomain)
}

// NewTransactionHashWriter Returns a new HashWriter used for transaction hashes
func NewTransactionHashWriter() HashWriter {
	return newHashWriter(transactionHashDomain)
}

// NewTransactionSigningHashWriter Returns a new HashWriter used for signing on a transaction
func NewTransactionSigningHashWriter() HashWriter {
	return newHashWriter(transactionSigningDomain)
}

// NewAccountsTreeNodeHashWriter Returns a new HashWriter used for accounts tree nodes
func NewAccountsTreeNodeHashWriter() HashWriter {
	return newHashWriter(accountsTreeNodeHashDomain)
}

// NewAddressHashWriter Returns a new HashWriter used to derive addresses from public keys
func NewAddressHashWriter() HashWriter {
	return newHashWriter(addressDomain)
}
