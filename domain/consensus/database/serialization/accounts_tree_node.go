package serialization

import (
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	treeNodePrefixField  protowire.Number = 1
	treeNodeAccountField protowire.Number = 2
	treeNodeChildField   protowire.Number = 3
)

const (
	treeChildIndexField  protowire.Number = 1
	treeChildSuffixField protowire.Number = 2
	treeChildHashField   protowire.Number = 3
)

// DbAccountsTreeChild is a reference from a branch node to one of its
// children
type DbAccountsTreeChild struct {
	Index  int
	Suffix string
	Hash   *externalapi.DomainHash
}

// DbAccountsTreeNode is an accounts tree node as it is stored. A node
// with an account is a terminal node, any other node is a branch node.
type DbAccountsTreeNode struct {
	Prefix   string
	Account  *externalapi.Account
	Children []*DbAccountsTreeChild
}

// SerializeAccountsTreeNode encodes an accounts tree node. Children must be
// ordered by index; the encoding is canonical and is what a node hash
// commits to.
func SerializeAccountsTreeNode(node *DbAccountsTreeNode) []byte {
	var b []byte
	b = appendBytesField(b, treeNodePrefixField, []byte(node.Prefix))
	if node.Account != nil {
		b = appendBytesField(b, treeNodeAccountField, SerializeAccount(node.Account))
	}
	for _, child := range node.Children {
		var childBytes []byte
		childBytes = appendVarintField(childBytes, treeChildIndexField, uint64(child.Index))
		childBytes = appendBytesField(childBytes, treeChildSuffixField, []byte(child.Suffix))
		childBytes = appendHashField(childBytes, treeChildHashField, child.Hash)
		b = appendBytesField(b, treeNodeChildField, childBytes)
	}
	return b
}

// DeserializeAccountsTreeNode decodes an accounts tree node
func DeserializeAccountsTreeNode(data []byte) (*DbAccountsTreeNode, error) {
	fields, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	node := &DbAccountsTreeNode{}
	for _, field := range fields {
		switch field.number {
		case treeNodePrefixField:
			var prefix []byte
			prefix, err = field.bytesValue()
			node.Prefix = string(prefix)
		case treeNodeAccountField:
			var accountBytes []byte
			accountBytes, err = field.bytesValue()
			if err != nil {
				return nil, err
			}
			node.Account, err = DeserializeAccount(accountBytes)
		case treeNodeChildField:
			var childBytes []byte
			childBytes, err = field.bytesValue()
			if err != nil {
				return nil, err
			}
			var child *DbAccountsTreeChild
			child, err = deserializeAccountsTreeChild(childBytes)
			node.Children = append(node.Children, child)
		}
		if err != nil {
			return nil, err
		}
	}
	if node.Account != nil && len(node.Children) > 0 {
		return nil, errors.Errorf("accounts tree node %q has both an account and children", node.Prefix)
	}
	return node, nil
}

func deserializeAccountsTreeChild(data []byte) (*DbAccountsTreeChild, error) {
	fields, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	child := &DbAccountsTreeChild{}
	for _, field := range fields {
		switch field.number {
		case treeChildIndexField:
			var index uint64
			index, err = field.uint64Value()
			if index > 15 {
				return nil, errors.Errorf("accounts tree child index %d is out of range", index)
			}
			child.Index = int(index)
		case treeChildSuffixField:
			var suffix []byte
			suffix, err = field.bytesValue()
			child.Suffix = string(suffix)
		case treeChildHashField:
			child.Hash, err = field.hashValue()
		}
		if err != nil {
			return nil, err
		}
	}
	if child.Hash == nil {
		return nil, errors.New("accounts tree child is missing its hash")
	}
	return child, nil
}
