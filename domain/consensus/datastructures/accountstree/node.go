package accountstree

import (
	"strings"

	"github.com/nipopow/nipowd/domain/consensus/database/serialization"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/hashes"
)

const rootPrefix = ""

type childReference struct {
	suffix string
	hash   *externalapi.DomainHash
}

// node is either a terminal node, holding the account of the address
// spelled by its prefix, or a branch node with up to 16 children, one
// per hex nibble following its prefix
type node struct {
	prefix   string
	account  *externalapi.Account
	children [16]*childReference
}

func newTerminalNode(prefix string, account *externalapi.Account) *node {
	return &node{prefix: prefix, account: account.Clone()}
}

func newBranchNode(prefix string) *node {
	return &node{prefix: prefix}
}

func (n *node) isTerminal() bool {
	return n.account != nil
}

func (n *node) clone() *node {
	clone := &node{prefix: n.prefix}
	if n.account != nil {
		clone.account = n.account.Clone()
	}
	for i, child := range n.children {
		if child != nil {
			clone.children[i] = &childReference{suffix: child.suffix, hash: child.hash.Clone()}
		}
	}
	return clone
}

func nibbleIndex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	default:
		return int(c-'a') + 10
	}
}

// childIndex returns the slot under n that a descendant with the given
// prefix belongs to
func (n *node) childIndex(descendantPrefix string) int {
	return nibbleIndex(descendantPrefix[len(n.prefix)])
}

// childPrefix returns the full prefix of the child in whose slot the given
// prefix falls, or false if that slot is empty
func (n *node) childPrefix(descendantPrefix string) (string, bool) {
	child := n.children[n.childIndex(descendantPrefix)]
	if child == nil {
		return "", false
	}
	return n.prefix + child.suffix, true
}

func (n *node) withChild(childPrefix string, childHash *externalapi.DomainHash) *node {
	updated := n.clone()
	updated.children[n.childIndex(childPrefix)] = &childReference{
		suffix: childPrefix[len(n.prefix):],
		hash:   childHash.Clone(),
	}
	return updated
}

func (n *node) withoutChild(childPrefix string) *node {
	updated := n.clone()
	updated.children[n.childIndex(childPrefix)] = nil
	return updated
}

func (n *node) withAccount(account *externalapi.Account) *node {
	updated := n.clone()
	updated.account = account.Clone()
	return updated
}

func (n *node) childCount() int {
	count := 0
	for _, child := range n.children {
		if child != nil {
			count++
		}
	}
	return count
}

func (n *node) firstChildPrefix() (string, bool) {
	for _, child := range n.children {
		if child != nil {
			return n.prefix + child.suffix, true
		}
	}
	return "", false
}

func (n *node) toDbNode() *serialization.DbAccountsTreeNode {
	dbNode := &serialization.DbAccountsTreeNode{
		Prefix:  n.prefix,
		Account: n.account,
	}
	for i, child := range n.children {
		if child != nil {
			dbNode.Children = append(dbNode.Children, &serialization.DbAccountsTreeChild{
				Index:  i,
				Suffix: child.suffix,
				Hash:   child.hash,
			})
		}
	}
	return dbNode
}

func nodeFromDbNode(dbNode *serialization.DbAccountsTreeNode) *node {
	n := &node{
		prefix:  dbNode.Prefix,
		account: dbNode.Account,
	}
	for _, child := range dbNode.Children {
		n.children[child.Index] = &childReference{suffix: child.Suffix, hash: child.Hash}
	}
	return n
}

func (n *node) serialize() []byte {
	return serialization.SerializeAccountsTreeNode(n.toDbNode())
}

func deserializeNode(nodeBytes []byte) (*node, error) {
	dbNode, err := serialization.DeserializeAccountsTreeNode(nodeBytes)
	if err != nil {
		return nil, err
	}
	return nodeFromDbNode(dbNode), nil
}

func (n *node) hash() *externalapi.DomainHash {
	writer := hashes.NewAccountsTreeNodeHashWriter()
	writer.InfallibleWrite(n.serialize())
	return writer.Finalize()
}

func commonPrefix(a, b string) string {
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}
	return a[:i]
}

func isPrefixOf(prefix, s string) bool {
	return strings.HasPrefix(s, prefix)
}
