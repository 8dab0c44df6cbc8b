package accountstree

import (
	"github.com/nipopow/nipowd/domain/consensus/database"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

var bucket = database.MakeBucket([]byte("accounts-tree"))

// accountsTree is an authenticated hex-nibble Patricia-Merkle trie from
// addresses to accounts. Nodes are stored by their prefix.
type accountsTree struct {
	coinbaseManager model.CoinbaseManager
}

// New instantiates a new AccountsTree
func New(coinbaseManager model.CoinbaseManager) model.AccountsTree {
	return &accountsTree{
		coinbaseManager: coinbaseManager,
	}
}

func nodeKey(prefix string) model.DBKey {
	// The root's key would have an empty suffix, so every prefix is
	// stored with a leading marker
	return bucket.Key([]byte("n" + prefix))
}

// dbNodeReader reads nodes from a database context. A missing root is
// read as the empty root.
type dbNodeReader struct {
	dbContext model.DBReader
}

func (r dbNodeReader) node(prefix string) (*node, error) {
	nodeBytes, err := r.dbContext.Get(nodeKey(prefix))
	if database.IsNotFoundError(err) {
		if prefix == rootPrefix {
			return newBranchNode(rootPrefix), nil
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return deserializeNode(nodeBytes)
}

// Get returns the durable account of address
func (at *accountsTree) Get(dbContext model.DBReader, address externalapi.Address) (*externalapi.Account, error) {
	return getAccount(dbNodeReader{dbContext: dbContext}, address.Hex())
}

// Hash returns the durable root hash of the tree
func (at *accountsTree) Hash(dbContext model.DBReader) (*externalapi.DomainHash, error) {
	return rootHash(dbNodeReader{dbContext: dbContext})
}

// BeginTransaction opens a speculative transaction over a snapshot of
// the current durable tree
func (at *accountsTree) BeginTransaction(dbManager model.DBManager) (model.AccountsTransaction, error) {
	snapshot, err := dbManager.Snapshot()
	if err != nil {
		return nil, err
	}
	baseRoot, err := rootHash(dbNodeReader{dbContext: snapshot})
	if err != nil {
		snapshot.Release()
		return nil, err
	}
	return &transaction{
		tree:     at,
		snapshot: snapshot,
		baseRoot: baseRoot,
		staged:   make(map[string]*node),
	}, nil
}

type accountsTreeStagingShard struct {
	transaction model.AccountsTransaction
}

func (s *accountsTreeStagingShard) Commit(dbTx model.DBTransaction) error {
	if s.transaction == nil {
		return nil
	}
	return s.transaction.Commit(dbTx)
}

// StageTransaction makes the given transaction part of stagingArea, to be
// committed with it. Staging a transaction replaces any transaction that
// was previously staged in the same area.
func (at *accountsTree) StageTransaction(stagingArea *model.StagingArea, transaction model.AccountsTransaction) {
	shard := stagingArea.GetOrCreateShard("AccountsTree", func() model.StagingShard {
		return &accountsTreeStagingShard{}
	}).(*accountsTreeStagingShard)
	shard.transaction = transaction
}
