package accountstree_test

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/nipopow/nipowd/domain/consensus/datastructures/accountstree"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/processes/coinbasemanager"
	"github.com/nipopow/nipowd/domain/consensus/ruleerrors"
	"github.com/nipopow/nipowd/domain/consensus/utils/testutils"
	"github.com/nipopow/nipowd/domain/consensus/utils/txsigning"
)

const (
	testSubsidy = 1000
	testHeight  = 5
)

func newTestTree() model.AccountsTree {
	return accountstree.New(coinbasemanager.New(testSubsidy, 0))
}

func testAddress(i int) externalapi.Address {
	var address externalapi.Address
	r := rand.New(rand.NewSource(int64(i)))
	r.Read(address[:])
	return address
}

func beginTransaction(t *testing.T, tree model.AccountsTree, dbManager model.DBManager) model.AccountsTransaction {
	transaction, err := tree.BeginTransaction(dbManager)
	if err != nil {
		t.Fatalf("BeginTransaction: %+v", err)
	}
	return transaction
}

func commitTransaction(t *testing.T, tree model.AccountsTree, dbManager model.DBManager,
	transaction model.AccountsTransaction) {

	stagingArea := model.NewStagingArea()
	tree.StageTransaction(stagingArea, transaction)
	testutils.CommitStagingArea(t, dbManager, stagingArea)
}

func putAccount(t *testing.T, transaction model.AccountsTransaction, address externalapi.Address,
	account *externalapi.Account) {

	err := transaction.Put(address, account)
	if err != nil {
		t.Fatalf("Put: %+v", err)
	}
}

func transactionHash(t *testing.T, transaction model.AccountsTransaction) *externalapi.DomainHash {
	hash, err := transaction.Hash()
	if err != nil {
		t.Fatalf("Hash: %+v", err)
	}
	return hash
}

func TestRootIsIndependentOfInsertionOrder(t *testing.T) {
	dbManager, teardown := testutils.NewTestDatabase(t, "TestRootIsIndependentOfInsertionOrder")
	defer teardown()

	tree := newTestTree()
	emptyRoot, err := tree.Hash(dbManager)
	if err != nil {
		t.Fatalf("Hash: %+v", err)
	}

	const numAccounts = 64
	addresses := make([]externalapi.Address, numAccounts)
	for i := range addresses {
		addresses[i] = testAddress(i)
	}
	// Addresses that share long prefixes exercise branch splitting and merging
	addresses[1] = addresses[0]
	addresses[1][19] ^= 0x01
	addresses[2] = addresses[0]
	addresses[2][10] ^= 0x10

	forward := beginTransaction(t, tree, dbManager)
	defer forward.Abort()
	for i, address := range addresses {
		putAccount(t, forward, address, &externalapi.Account{Balance: uint64(i + 1)})
	}

	backward := beginTransaction(t, tree, dbManager)
	defer backward.Abort()
	for i := len(addresses) - 1; i >= 0; i-- {
		putAccount(t, backward, addresses[i], &externalapi.Account{Balance: uint64(i + 1)})
	}

	forwardRoot := transactionHash(t, forward)
	if !forwardRoot.Equal(transactionHash(t, backward)) {
		t.Fatalf("the root depends on insertion order")
	}
	if forwardRoot.Equal(emptyRoot) {
		t.Fatalf("the root did not change after inserting accounts")
	}

	for i, address := range addresses {
		account, err := forward.Get(address)
		if err != nil {
			t.Fatalf("Get: %+v", err)
		}
		if account.Balance != uint64(i+1) {
			t.Fatalf("account %d: expected balance %d but got %d", i, i+1, account.Balance)
		}
	}

	// Emptying every account prunes the tree back to the empty root
	shuffled := rand.New(rand.NewSource(0)).Perm(len(addresses))
	for _, i := range shuffled {
		putAccount(t, forward, addresses[i], externalapi.NewEmptyAccount())
	}
	if !transactionHash(t, forward).Equal(emptyRoot) {
		t.Fatalf("removing every account did not restore the empty root")
	}
}

func TestRemovingAccountRestoresRoot(t *testing.T) {
	dbManager, teardown := testutils.NewTestDatabase(t, "TestRemovingAccountRestoresRoot")
	defer teardown()

	tree := newTestTree()
	transaction := beginTransaction(t, tree, dbManager)
	for i := 0; i < 20; i++ {
		putAccount(t, transaction, testAddress(i), &externalapi.Account{Balance: 7})
	}
	commitTransaction(t, tree, dbManager, transaction)

	baseRoot, err := tree.Hash(dbManager)
	if err != nil {
		t.Fatalf("Hash: %+v", err)
	}

	for i := 20; i < 30; i++ {
		transaction := beginTransaction(t, tree, dbManager)
		putAccount(t, transaction, testAddress(i), &externalapi.Account{Balance: 1, Nonce: 1})
		if transactionHash(t, transaction).Equal(baseRoot) {
			t.Fatalf("inserting account %d did not change the root", i)
		}
		putAccount(t, transaction, testAddress(i), externalapi.NewEmptyAccount())
		if !transactionHash(t, transaction).Equal(baseRoot) {
			t.Fatalf("removing account %d did not restore the root", i)
		}
		transaction.Abort()
	}
}

func fundUsers(t *testing.T, tree model.AccountsTree, dbManager model.DBManager,
	users []*testutils.TestUser, balance uint64) {

	transaction := beginTransaction(t, tree, dbManager)
	for _, user := range users {
		putAccount(t, transaction, user.Address, &externalapi.Account{Balance: balance})
	}
	commitTransaction(t, tree, dbManager, transaction)
}

func TestCommitAndRevertBlockBody(t *testing.T) {
	dbManager, teardown := testutils.NewTestDatabase(t, "TestCommitAndRevertBlockBody")
	defer teardown()

	users, err := testutils.NewTestUsers(4)
	if err != nil {
		t.Fatalf("NewTestUsers: %+v", err)
	}
	tree := newTestTree()
	fundUsers(t, tree, dbManager, users[:3], 10000)
	baseRoot, err := tree.Hash(dbManager)
	if err != nil {
		t.Fatalf("Hash: %+v", err)
	}

	var transactions []*externalapi.DomainTransaction
	for i := 0; i < 3; i++ {
		tx, err := users[i].SignedTransaction(users[i+1].Address, 1000, 10, 0, 0)
		if err != nil {
			t.Fatalf("SignedTransaction: %+v", err)
		}
		transactions = append(transactions, tx)
	}
	// A second transaction of the same sender uses the next nonce
	tx, err := users[0].SignedTransaction(users[3].Address, 500, 5, 1, 0)
	if err != nil {
		t.Fatalf("SignedTransaction: %+v", err)
	}
	transactions = append(transactions, tx)

	miner := testAddress(100)
	body := &externalapi.DomainBlockBody{MinerAddress: miner, Transactions: transactions}

	transaction := beginTransaction(t, tree, dbManager)
	err = transaction.CommitBlockBody(body, testHeight)
	if err != nil {
		t.Fatalf("CommitBlockBody: %+v", err)
	}

	expected := map[externalapi.Address]*externalapi.Account{
		users[0].Address: {Balance: 10000 - 1010 - 505, Nonce: 2},
		users[1].Address: {Balance: 10000 - 1010 + 1000, Nonce: 1},
		users[2].Address: {Balance: 10000 - 1010 + 1000, Nonce: 1},
		users[3].Address: {Balance: 1000 + 500},
		miner:            {Balance: testSubsidy + 10 + 10 + 10 + 5},
	}
	for address, expectedAccount := range expected {
		account, err := transaction.Get(address)
		if err != nil {
			t.Fatalf("Get: %+v", err)
		}
		if !account.Equal(expectedAccount) {
			t.Fatalf("account %s: expected %s but got %s", address, expectedAccount, account)
		}
	}

	err = transaction.RevertBlockBody(body, testHeight)
	if err != nil {
		t.Fatalf("RevertBlockBody: %+v", err)
	}
	if !transactionHash(t, transaction).Equal(baseRoot) {
		t.Fatalf("reverting the block body did not restore the root")
	}
	transaction.Abort()

	// Committing the transaction makes the changes durable
	transaction = beginTransaction(t, tree, dbManager)
	err = transaction.CommitBlockBody(body, testHeight)
	if err != nil {
		t.Fatalf("CommitBlockBody: %+v", err)
	}
	stagedRoot := transactionHash(t, transaction)
	commitTransaction(t, tree, dbManager, transaction)

	durableRoot, err := tree.Hash(dbManager)
	if err != nil {
		t.Fatalf("Hash: %+v", err)
	}
	if !durableRoot.Equal(stagedRoot) {
		t.Fatalf("the durable root %s differs from the staged root %s", durableRoot, stagedRoot)
	}
	minerAccount, err := tree.Get(dbManager, miner)
	if err != nil {
		t.Fatalf("Get: %+v", err)
	}
	if !minerAccount.Equal(expected[miner]) {
		t.Fatalf("miner: expected %s but got %s", expected[miner], minerAccount)
	}
}

func TestCommitBlockBodyRuleErrors(t *testing.T) {
	dbManager, teardown := testutils.NewTestDatabase(t, "TestCommitBlockBodyRuleErrors")
	defer teardown()

	users, err := testutils.NewTestUsers(3)
	if err != nil {
		t.Fatalf("NewTestUsers: %+v", err)
	}
	tree := newTestTree()
	fundUsers(t, tree, dbManager, users[:2], 1000)

	vestingAddress := testAddress(200)
	transaction := beginTransaction(t, tree, dbManager)
	putAccount(t, transaction, vestingAddress, &externalapi.Account{
		Type:    externalapi.AccountTypeVesting,
		Balance: 1000,
		Vesting: &externalapi.VestingData{Owner: users[2].Address, Start: 1, StepBlocks: 1, StepAmount: 1, TotalAmount: 1000},
	})
	commitTransaction(t, tree, dbManager, transaction)

	signed := func(user *testutils.TestUser, recipient externalapi.Address, value, fee, nonce uint64) *externalapi.DomainTransaction {
		tx, err := user.SignedTransaction(recipient, value, fee, nonce, 0)
		if err != nil {
			t.Fatalf("SignedTransaction: %+v", err)
		}
		return tx
	}
	forged := signed(users[1], users[2].Address, 10, 1, 0)
	forged.Sender = users[0].Address

	tests := []struct {
		name          string
		transactions  []*externalapi.DomainTransaction
		miner         externalapi.Address
		expectedError error
	}{
		{
			name:          "wrong nonce",
			transactions:  []*externalapi.DomainTransaction{signed(users[0], users[2].Address, 10, 1, 1)},
			expectedError: ruleerrors.ErrBadNonce,
		},
		{
			name: "replayed transaction",
			transactions: []*externalapi.DomainTransaction{
				signed(users[0], users[2].Address, 10, 1, 0),
				signed(users[0], users[2].Address, 10, 1, 0),
			},
			expectedError: ruleerrors.ErrBadNonce,
		},
		{
			name:          "insufficient funds",
			transactions:  []*externalapi.DomainTransaction{signed(users[0], users[2].Address, 1000, 1, 0)},
			expectedError: ruleerrors.ErrInsufficientFunds,
		},
		{
			name:          "empty sender",
			transactions:  []*externalapi.DomainTransaction{signed(users[2], users[0].Address, 1, 1, 0)},
			expectedError: ruleerrors.ErrInsufficientFunds,
		},
		{
			name:          "sender does not own the key",
			transactions:  []*externalapi.DomainTransaction{forged},
			expectedError: ruleerrors.ErrSenderMismatch,
		},
		{
			name:          "vesting recipient",
			transactions:  []*externalapi.DomainTransaction{signed(users[0], vestingAddress, 10, 1, 0)},
			expectedError: ruleerrors.ErrVestingRecipient,
		},
		{
			name:          "vesting miner",
			miner:         vestingAddress,
			expectedError: ruleerrors.ErrVestingRecipient,
		},
	}

	for _, test := range tests {
		baseRoot, err := tree.Hash(dbManager)
		if err != nil {
			t.Fatalf("%s: Hash: %+v", test.name, err)
		}

		miner := test.miner
		if miner == (externalapi.Address{}) {
			miner = testAddress(100)
		}
		body := &externalapi.DomainBlockBody{MinerAddress: miner, Transactions: test.transactions}

		transaction := beginTransaction(t, tree, dbManager)
		err = transaction.CommitBlockBody(body, testHeight)
		if !errors.Is(err, test.expectedError) {
			t.Fatalf("%s: expected %v but got %v", test.name, test.expectedError, err)
		}
		if !ruleerrors.IsRuleError(err) {
			t.Fatalf("%s: expected a rule error but got %v", test.name, err)
		}

		// A failed body aborts the whole transaction
		_, err = transaction.Get(users[0].Address)
		if !errors.Is(err, accountstree.ErrTransactionClosed) {
			t.Fatalf("%s: expected the transaction to be closed but got %v", test.name, err)
		}
		transaction.Abort()

		durableRoot, err := tree.Hash(dbManager)
		if err != nil {
			t.Fatalf("%s: Hash: %+v", test.name, err)
		}
		if !durableRoot.Equal(baseRoot) {
			t.Fatalf("%s: a failed body changed the durable tree", test.name)
		}
	}
}

func TestVestingSender(t *testing.T) {
	dbManager, teardown := testutils.NewTestDatabase(t, "TestVestingSender")
	defer teardown()

	users, err := testutils.NewTestUsers(2)
	if err != nil {
		t.Fatalf("NewTestUsers: %+v", err)
	}
	owner := users[0]
	recipient := users[1].Address
	vestingAddress := testAddress(300)

	tree := newTestTree()
	transaction := beginTransaction(t, tree, dbManager)
	putAccount(t, transaction, vestingAddress, &externalapi.Account{
		Type:    externalapi.AccountTypeVesting,
		Balance: 1000,
		Vesting: &externalapi.VestingData{
			Owner:       owner.Address,
			Start:       10,
			StepBlocks:  10,
			StepAmount:  100,
			TotalAmount: 1000,
		},
	})
	commitTransaction(t, tree, dbManager, transaction)

	vestingTransaction := func(signer *testutils.TestUser, value, fee uint64) *externalapi.DomainTransaction {
		tx := &externalapi.DomainTransaction{
			Sender:    vestingAddress,
			Recipient: recipient,
			Value:     value,
			Fee:       fee,
		}
		err := txsigning.Sign(tx, signer.KeyPair)
		if err != nil {
			t.Fatalf("Sign: %+v", err)
		}
		return tx
	}

	tests := []struct {
		name          string
		tx            *externalapi.DomainTransaction
		height        uint64
		expectedError error
	}{
		{
			name:          "before the vesting start everything is locked",
			tx:            vestingTransaction(owner, 1, 0),
			height:        5,
			expectedError: ruleerrors.ErrVestingLocked,
		},
		{
			name:          "first step not reached",
			tx:            vestingTransaction(owner, 1, 0),
			height:        19,
			expectedError: ruleerrors.ErrVestingLocked,
		},
		{
			name:   "spend exactly the unlocked amount",
			tx:     vestingTransaction(owner, 150, 50),
			height: 30,
		},
		{
			name:          "spend more than the unlocked amount",
			tx:            vestingTransaction(owner, 151, 50),
			height:        30,
			expectedError: ruleerrors.ErrVestingLocked,
		},
		{
			name:   "fully vested",
			tx:     vestingTransaction(owner, 990, 10),
			height: 110,
		},
		{
			name:          "signed by someone other than the owner",
			tx:            vestingTransaction(users[1], 1, 0),
			height:        110,
			expectedError: ruleerrors.ErrSenderMismatch,
		},
	}

	for _, test := range tests {
		body := &externalapi.DomainBlockBody{
			MinerAddress: testAddress(100),
			Transactions: []*externalapi.DomainTransaction{test.tx},
		}
		transaction := beginTransaction(t, tree, dbManager)
		err := transaction.CommitBlockBody(body, test.height)
		if test.expectedError == nil {
			if err != nil {
				t.Fatalf("%s: CommitBlockBody: %+v", test.name, err)
			}
			account, err := transaction.Get(vestingAddress)
			if err != nil {
				t.Fatalf("%s: Get: %+v", test.name, err)
			}
			expectedBalance := 1000 - test.tx.Value - test.tx.Fee
			if account.Balance != expectedBalance || account.Nonce != 1 {
				t.Fatalf("%s: expected balance %d and nonce 1 but got %s", test.name, expectedBalance, account)
			}
			if account.Type != externalapi.AccountTypeVesting {
				t.Fatalf("%s: the account lost its vesting type", test.name)
			}
		} else if !errors.Is(err, test.expectedError) {
			t.Fatalf("%s: expected %v but got %v", test.name, test.expectedError, err)
		}
		transaction.Abort()
	}
}

func TestAbortIsIdempotent(t *testing.T) {
	dbManager, teardown := testutils.NewTestDatabase(t, "TestAbortIsIdempotent")
	defer teardown()

	tree := newTestTree()
	transaction := beginTransaction(t, tree, dbManager)
	putAccount(t, transaction, testAddress(1), &externalapi.Account{Balance: 1})
	transaction.Abort()
	transaction.Abort()

	_, err := transaction.Hash()
	if !errors.Is(err, accountstree.ErrTransactionClosed) {
		t.Fatalf("expected ErrTransactionClosed but got %v", err)
	}
	account, err := tree.Get(dbManager, testAddress(1))
	if err != nil {
		t.Fatalf("Get: %+v", err)
	}
	if !account.IsEmpty() {
		t.Fatalf("an aborted transaction changed the durable tree")
	}
}

func TestCommitFailsOnConcurrentModification(t *testing.T) {
	dbManager, teardown := testutils.NewTestDatabase(t, "TestCommitFailsOnConcurrentModification")
	defer teardown()

	tree := newTestTree()
	first := beginTransaction(t, tree, dbManager)
	second := beginTransaction(t, tree, dbManager)
	defer second.Abort()

	putAccount(t, first, testAddress(1), &externalapi.Account{Balance: 1})
	putAccount(t, second, testAddress(2), &externalapi.Account{Balance: 2})
	commitTransaction(t, tree, dbManager, first)

	stagingArea := model.NewStagingArea()
	tree.StageTransaction(stagingArea, second)
	dbTx, err := dbManager.Begin()
	if err != nil {
		t.Fatalf("Begin: %+v", err)
	}
	defer dbTx.RollbackUnlessClosed()

	err = stagingArea.Commit(dbTx)
	if !errors.Is(err, accountstree.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification but got %v", err)
	}
}

func TestConcurrentTransactions(t *testing.T) {
	dbManager, teardown := testutils.NewTestDatabase(t, "TestConcurrentTransactions")
	defer teardown()

	tree := newTestTree()
	transaction := beginTransaction(t, tree, dbManager)
	for i := 0; i < 10; i++ {
		putAccount(t, transaction, testAddress(i), &externalapi.Account{Balance: 100})
	}
	commitTransaction(t, tree, dbManager, transaction)
	baseRoot, err := tree.Hash(dbManager)
	if err != nil {
		t.Fatalf("Hash: %+v", err)
	}

	const numTransactions = 8
	roots := make([]*externalapi.DomainHash, numTransactions)
	errs := make([]error, numTransactions)
	var wg sync.WaitGroup
	for i := 0; i < numTransactions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			transaction, err := tree.BeginTransaction(dbManager)
			if err != nil {
				errs[i] = err
				return
			}
			defer transaction.Abort()

			// Every goroutine moves the same funds, so all of them end
			// up with the same root
			for j := 0; j < 10; j++ {
				err = transaction.Put(testAddress(j), &externalapi.Account{Balance: 50})
				if err != nil {
					errs[i] = err
					return
				}
			}
			roots[i], errs[i] = transaction.Hash()
		}(i)
	}
	wg.Wait()

	for i := 0; i < numTransactions; i++ {
		if errs[i] != nil {
			t.Fatalf("transaction %d: %+v", i, errs[i])
		}
		if !roots[i].Equal(roots[0]) {
			t.Fatalf("transaction %d computed a different root", i)
		}
	}
	durableRoot, err := tree.Hash(dbManager)
	if err != nil {
		t.Fatalf("Hash: %+v", err)
	}
	if !durableRoot.Equal(baseRoot) {
		t.Fatalf("uncommitted transactions changed the durable tree")
	}
}
