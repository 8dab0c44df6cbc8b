package accountstree

import (
	"math"

	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/nipopow/nipowd/domain/consensus/utils/txsigning"
	"github.com/pkg/errors"
)

// ErrTransactionClosed is returned when a transaction is used after it
// was committed or aborted
var ErrTransactionClosed = errors.New("accounts tree transaction is closed")

// ErrConcurrentModification is returned when committing a transaction whose
// base tree was changed by another commit since the transaction began
var ErrConcurrentModification = errors.New("accounts tree was modified since the transaction began")

// transaction is an overlay of staged nodes over a snapshot of the tree.
// A nil entry in staged marks a removed node.
type transaction struct {
	tree     *accountsTree
	snapshot model.DBSnapshot
	baseRoot *externalapi.DomainHash
	staged   map[string]*node
	closed   bool
}

func (tx *transaction) node(prefix string) (*node, error) {
	if n, ok := tx.staged[prefix]; ok {
		if n == nil && prefix == rootPrefix {
			return newBranchNode(rootPrefix), nil
		}
		return n, nil
	}
	return dbNodeReader{dbContext: tx.snapshot}.node(prefix)
}

func (tx *transaction) putNode(n *node) {
	tx.staged[n.prefix] = n
}

func (tx *transaction) removeNode(prefix string) {
	tx.staged[prefix] = nil
}

// Get returns the account of address as of the staged changes
func (tx *transaction) Get(address externalapi.Address) (*externalapi.Account, error) {
	if tx.closed {
		return nil, ErrTransactionClosed
	}
	return getAccount(tx, address.Hex())
}

// Put stages account as the account of address
func (tx *transaction) Put(address externalapi.Address, account *externalapi.Account) error {
	if tx.closed {
		return ErrTransactionClosed
	}
	return putAccount(tx, address.Hex(), account)
}

// Hash returns the root hash the tree would have if the transaction
// were committed
func (tx *transaction) Hash() (*externalapi.DomainHash, error) {
	if tx.closed {
		return nil, ErrTransactionClosed
	}
	return rootHash(tx)
}

// CommitBlockBody applies the transactions of body and pays its miner.
// If any transaction breaks the account rules the whole accounts
// transaction is aborted and a rule error is returned.
func (tx *transaction) CommitBlockBody(body *externalapi.DomainBlockBody, height uint64) error {
	if tx.closed {
		return ErrTransactionClosed
	}
	err := tx.commitBlockBody(body, height)
	if err != nil {
		tx.Abort()
		return err
	}
	return nil
}

func (tx *transaction) commitBlockBody(body *externalapi.DomainBlockBody, height uint64) error {
	for i, transaction := range body.Transactions {
		err := tx.applyTransaction(transaction, height)
		if err != nil {
			if !ruleerrors.IsRuleError(err) {
				return err
			}
			return ruleerrors.NewErrInvalidTransaction(i, transaction, err)
		}
	}

	reward, err := tx.tree.coinbaseManager.BlockReward(body, height)
	if err != nil {
		return err
	}
	miner, err := tx.Get(body.MinerAddress)
	if err != nil {
		return err
	}
	if miner.Type == externalapi.AccountTypeVesting {
		return errors.Wrapf(ruleerrors.ErrVestingRecipient, "miner %s is a vesting account", body.MinerAddress)
	}
	if miner.Balance > math.MaxUint64-reward {
		return errors.Wrapf(ruleerrors.ErrBalanceOverflow, "paying %d to miner %s", reward, body.MinerAddress)
	}
	miner.Balance += reward
	return tx.Put(body.MinerAddress, miner)
}

func (tx *transaction) applyTransaction(transaction *externalapi.DomainTransaction, height uint64) error {
	if transaction.Value > math.MaxUint64-transaction.Fee {
		return errors.Wrapf(ruleerrors.ErrBadTxValue, "value %d and fee %d overflow",
			transaction.Value, transaction.Fee)
	}
	total := transaction.Value + transaction.Fee

	sender, err := tx.Get(transaction.Sender)
	if err != nil {
		return err
	}
	if sender.Nonce != transaction.Nonce {
		return errors.Wrapf(ruleerrors.ErrBadNonce, "expected nonce %d but got %d", sender.Nonce, transaction.Nonce)
	}

	signer := txsigning.AddressFromPublicKey(transaction.SenderPublicKey)
	switch sender.Type {
	case externalapi.AccountTypeBasic:
		if signer != transaction.Sender {
			return errors.Wrapf(ruleerrors.ErrSenderMismatch, "key of %s signed for %s", signer, transaction.Sender)
		}
		if sender.Balance < total {
			return errors.Wrapf(ruleerrors.ErrInsufficientFunds, "balance %d is less than %d", sender.Balance, total)
		}
	case externalapi.AccountTypeVesting:
		if signer != sender.Vesting.Owner {
			return errors.Wrapf(ruleerrors.ErrSenderMismatch, "key of %s is not the vesting owner %s",
				signer, sender.Vesting.Owner)
		}
		if sender.Balance < total {
			return errors.Wrapf(ruleerrors.ErrInsufficientFunds, "balance %d is less than %d", sender.Balance, total)
		}
		minCap := sender.Vesting.MinCap(height)
		if sender.Balance-total < minCap {
			return errors.Wrapf(ruleerrors.ErrVestingLocked, "spending %d leaves %d, below the locked %d",
				total, sender.Balance-total, minCap)
		}
	default:
		return errors.Errorf("unknown account type %s", sender.Type)
	}

	sender.Balance -= total
	sender.Nonce++
	err = tx.Put(transaction.Sender, sender)
	if err != nil {
		return err
	}

	recipient, err := tx.Get(transaction.Recipient)
	if err != nil {
		return err
	}
	if recipient.Type == externalapi.AccountTypeVesting {
		return errors.Wrapf(ruleerrors.ErrVestingRecipient, "recipient %s is a vesting account", transaction.Recipient)
	}
	if recipient.Balance > math.MaxUint64-transaction.Value {
		return errors.Wrapf(ruleerrors.ErrBalanceOverflow, "crediting %d to %s", transaction.Value, transaction.Recipient)
	}
	recipient.Balance += transaction.Value
	return tx.Put(transaction.Recipient, recipient)
}

// RevertBlockBody undoes CommitBlockBody of the same body at the same
// height. Any failure means the tree does not hold the state the body
// was committed on, so the accounts transaction is aborted.
func (tx *transaction) RevertBlockBody(body *externalapi.DomainBlockBody, height uint64) error {
	if tx.closed {
		return ErrTransactionClosed
	}
	err := tx.revertBlockBody(body, height)
	if err != nil {
		tx.Abort()
		return err
	}
	return nil
}

func (tx *transaction) revertBlockBody(body *externalapi.DomainBlockBody, height uint64) error {
	reward, err := tx.tree.coinbaseManager.BlockReward(body, height)
	if err != nil {
		return err
	}
	miner, err := tx.Get(body.MinerAddress)
	if err != nil {
		return err
	}
	if miner.Balance < reward {
		return errors.Errorf("cannot revert reward %d of miner %s with balance %d",
			reward, body.MinerAddress, miner.Balance)
	}
	miner.Balance -= reward
	err = tx.Put(body.MinerAddress, miner)
	if err != nil {
		return err
	}

	for i := len(body.Transactions) - 1; i >= 0; i-- {
		err := tx.revertTransaction(body.Transactions[i])
		if err != nil {
			return errors.Wrapf(err, "cannot revert transaction #%d", i)
		}
	}
	return nil
}

func (tx *transaction) revertTransaction(transaction *externalapi.DomainTransaction) error {
	recipient, err := tx.Get(transaction.Recipient)
	if err != nil {
		return err
	}
	if recipient.Balance < transaction.Value {
		return errors.Errorf("recipient %s has balance %d, less than the reverted value %d",
			transaction.Recipient, recipient.Balance, transaction.Value)
	}
	recipient.Balance -= transaction.Value
	err = tx.Put(transaction.Recipient, recipient)
	if err != nil {
		return err
	}

	sender, err := tx.Get(transaction.Sender)
	if err != nil {
		return err
	}
	if sender.Nonce != transaction.Nonce+1 {
		return errors.Errorf("sender %s has nonce %d, expected %d", transaction.Sender, sender.Nonce, transaction.Nonce+1)
	}
	sender.Balance += transaction.Value + transaction.Fee
	sender.Nonce--
	return tx.Put(transaction.Sender, sender)
}

// Abort discards the transaction. It is safe to call more than once.
func (tx *transaction) Abort() {
	if tx.closed {
		return
	}
	tx.closed = true
	tx.staged = nil
	tx.snapshot.Release()
}

// Commit writes the staged nodes into dbTx. It fails if the durable tree
// changed since the transaction began.
func (tx *transaction) Commit(dbTx model.DBTransaction) error {
	if tx.closed {
		return ErrTransactionClosed
	}

	durableRoot, err := rootHash(dbNodeReader{dbContext: dbTx})
	if err != nil {
		return err
	}
	if !durableRoot.Equal(tx.baseRoot) {
		return errors.Wrapf(ErrConcurrentModification, "base root %s, durable root %s", tx.baseRoot, durableRoot)
	}

	for prefix, n := range tx.staged {
		if n == nil {
			err = dbTx.Delete(nodeKey(prefix))
		} else {
			err = dbTx.Put(nodeKey(prefix), n.serialize())
		}
		if err != nil {
			return err
		}
	}

	tx.closed = true
	tx.snapshot.Release()
	return nil
}
