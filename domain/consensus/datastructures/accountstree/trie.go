package accountstree

import (
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// nodeReader reads nodes by prefix. It returns nil for an absent node,
// except for the root, which always exists.
type nodeReader interface {
	node(prefix string) (*node, error)
}

type nodeStore interface {
	nodeReader
	putNode(n *node)
	removeNode(prefix string)
}

func mustNode(reader nodeReader, prefix string) (*node, error) {
	n, err := reader.node(prefix)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.Errorf("accounts tree is corrupt: node %q is referenced but missing", prefix)
	}
	return n, nil
}

func getAccount(reader nodeReader, address string) (*externalapi.Account, error) {
	current, err := mustNode(reader, rootPrefix)
	if err != nil {
		return nil, err
	}
	for {
		if current.prefix == address {
			if !current.isTerminal() {
				return nil, errors.Errorf("accounts tree is corrupt: %s is a branch node", address)
			}
			return current.account.Clone(), nil
		}
		childPrefix, ok := current.childPrefix(address)
		if !ok || !isPrefixOf(childPrefix, address) {
			return externalapi.NewEmptyAccount(), nil
		}
		current, err = mustNode(reader, childPrefix)
		if err != nil {
			return nil, err
		}
	}
}

func rootHash(reader nodeReader) (*externalapi.DomainHash, error) {
	root, err := mustNode(reader, rootPrefix)
	if err != nil {
		return nil, err
	}
	return root.hash(), nil
}

// putAccount sets the account of address. Empty accounts are pruned
// from the tree.
func putAccount(store nodeStore, address string, account *externalapi.Account) error {
	root, err := mustNode(store, rootPrefix)
	if err != nil {
		return err
	}
	if account.IsEmpty() {
		return removeAccount(store, root, address)
	}
	return insert(store, root, address, account, nil)
}

func insert(store nodeStore, current *node, address string, account *externalapi.Account, rootPath []*node) error {
	common := commonPrefix(current.prefix, address)

	// The current node diverges from the address: split it under a new
	// branch node holding both the current node and the new account.
	if len(common) != len(current.prefix) {
		newChild := newTerminalNode(address, account)
		store.putNode(newChild)

		newParent := newBranchNode(common).
			withChild(current.prefix, current.hash()).
			withChild(newChild.prefix, newChild.hash())
		store.putNode(newParent)

		return updateKeys(store, newParent.prefix, newParent.hash(), rootPath)
	}

	// The address already has a terminal node: update its account.
	if common == address {
		updated := current.withAccount(account)
		store.putNode(updated)
		return updateKeys(store, updated.prefix, updated.hash(), rootPath)
	}

	// Descend into the child in the address's slot, if one exists.
	childPrefix, ok := current.childPrefix(address)
	if ok {
		child, err := mustNode(store, childPrefix)
		if err != nil {
			return err
		}
		return insert(store, child, address, account, append(rootPath, current))
	}

	// Otherwise add a new terminal node in that slot.
	newChild := newTerminalNode(address, account)
	store.putNode(newChild)
	updated := current.withChild(newChild.prefix, newChild.hash())
	store.putNode(updated)
	return updateKeys(store, updated.prefix, updated.hash(), rootPath)
}

func removeAccount(store nodeStore, root *node, address string) error {
	var rootPath []*node
	current := root
	for current.prefix != address {
		childPrefix, ok := current.childPrefix(address)
		if !ok || !isPrefixOf(childPrefix, address) {
			// Nothing to remove
			return nil
		}
		child, err := mustNode(store, childPrefix)
		if err != nil {
			return err
		}
		rootPath = append(rootPath, current)
		current = child
	}
	store.removeNode(current.prefix)
	return prune(store, current.prefix, rootPath)
}

// prune walks from the removed node's parent towards the root, removing
// the reference to prefix and merging branch nodes that are left with a
// single child into that child
func prune(store nodeStore, prefix string, rootPath []*node) error {
	for i := len(rootPath) - 1; i >= 0; i-- {
		current := rootPath[i].withoutChild(prefix)

		if current.prefix != rootPrefix && current.childCount() == 1 {
			store.removeNode(current.prefix)
			onlyChildPrefix, _ := current.firstChildPrefix()
			onlyChild, err := mustNode(store, onlyChildPrefix)
			if err != nil {
				return err
			}
			return updateKeys(store, onlyChild.prefix, onlyChild.hash(), rootPath[:i])
		}

		// The root always exists, even when it is left without children
		if current.prefix == rootPrefix || current.childCount() > 0 {
			store.putNode(current)
			return updateKeys(store, current.prefix, current.hash(), rootPath[:i])
		}

		// The node has no children left: remove it and continue pruning
		store.removeNode(current.prefix)
		prefix = current.prefix
	}
	return nil
}

// updateKeys propagates a changed child hash up along rootPath
func updateKeys(store nodeStore, prefix string, hash *externalapi.DomainHash, rootPath []*node) error {
	for i := len(rootPath) - 1; i >= 0; i-- {
		updated := rootPath[i].withChild(prefix, hash)
		store.putNode(updated)
		prefix = updated.prefix
		hash = updated.hash()
	}
	return nil
}
