package serialization

import (
	"math/big"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

func hashOf(b byte) *externalapi.DomainHash {
	return externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{b})
}

func TestBlockRecord(t *testing.T) {
	block := &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:            1,
			PrevHash:           hashOf(1),
			InterlinkHash:      hashOf(2),
			BodyHash:           hashOf(3),
			AccountsHash:       hashOf(4),
			Bits:               0x207fffff,
			Height:             42,
			TimeInMilliseconds: 1625912689664,
			Nonce:              1<<64 - 1,
		},
		Interlink: externalapi.BlockInterlink{hashOf(1), hashOf(1), hashOf(9)},
		Body: &externalapi.DomainBlockBody{
			MinerAddress: externalapi.Address{5},
			ExtraData:    []byte("extra"),
			Transactions: []*externalapi.DomainTransaction{{
				Sender:              externalapi.Address{1},
				SenderPublicKey:     externalapi.PublicKey{2},
				Recipient:           externalapi.Address{3},
				Value:               1000,
				Fee:                 10,
				Nonce:               3,
				ValidityStartHeight: 40,
				Signature:           externalapi.Signature{4},
			}},
		},
	}

	deserialized, err := DeserializeBlock(SerializeBlock(block))
	if err != nil {
		t.Fatalf("DeserializeBlock: %+v", err)
	}
	if !deserialized.Equal(block) {
		t.Fatalf("TestBlockRecord: expected %s, got %s", spew.Sdump(block), spew.Sdump(deserialized))
	}
}

func TestGenesisLikeBlockRecord(t *testing.T) {
	block := &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			PrevHash:           externalapi.NewZeroHash(),
			InterlinkHash:      hashOf(2),
			BodyHash:           hashOf(3),
			AccountsHash:       hashOf(4),
			TimeInMilliseconds: -1,
		},
		Interlink: externalapi.BlockInterlink{},
		Body:      &externalapi.DomainBlockBody{Transactions: []*externalapi.DomainTransaction{}},
	}
	deserialized, err := DeserializeBlock(SerializeBlock(block))
	if err != nil {
		t.Fatalf("DeserializeBlock: %+v", err)
	}
	if !deserialized.Equal(block) {
		t.Fatalf("TestGenesisLikeBlockRecord: expected %s, got %s", spew.Sdump(block), spew.Sdump(deserialized))
	}
}

func TestMalformedRecords(t *testing.T) {
	_, err := DeserializeBlock([]byte{0xff, 0xff, 0xff})
	if err == nil {
		t.Fatalf("TestMalformedRecords: expected an error for a malformed block")
	}
	_, err = DeserializeBlock(nil)
	if err == nil {
		t.Fatalf("TestMalformedRecords: expected an error for an empty block")
	}

	unknownType := SerializeAccount(&externalapi.Account{Type: 7, Balance: 1})
	_, err = DeserializeAccount(unknownType)
	if err == nil {
		t.Fatalf("TestMalformedRecords: expected an error for an unknown account type")
	}

	vestingWithoutData := SerializeAccount(&externalapi.Account{Type: externalapi.AccountTypeVesting})
	_, err = DeserializeAccount(vestingWithoutData)
	if err == nil {
		t.Fatalf("TestMalformedRecords: expected an error for a vesting account without vesting data")
	}
}

func TestChainDataRecord(t *testing.T) {
	totalWork, _ := new(big.Int).SetString("123456789abcdef0123456789", 16)
	chainData := &externalapi.ChainData{
		TotalWork:          totalWork,
		Height:             7,
		OnMainChain:        true,
		MainChainSuccessor: hashOf(8),
		SuperBlockCounts:   []uint32{7, 3, 1},
	}
	deserialized, err := DeserializeChainData(SerializeChainData(chainData))
	if err != nil {
		t.Fatalf("DeserializeChainData: %+v", err)
	}
	if !deserialized.Equal(chainData) {
		t.Fatalf("TestChainDataRecord: expected %s, got %s", spew.Sdump(chainData), spew.Sdump(deserialized))
	}

	chainData.MainChainSuccessor = nil
	chainData.OnMainChain = false
	deserialized, err = DeserializeChainData(SerializeChainData(chainData))
	if err != nil {
		t.Fatalf("DeserializeChainData: %+v", err)
	}
	if !deserialized.Equal(chainData) {
		t.Fatalf("TestChainDataRecord: expected %s, got %s", spew.Sdump(chainData), spew.Sdump(deserialized))
	}
}

func TestAccountsTreeNodeRecord(t *testing.T) {
	terminal := &DbAccountsTreeNode{
		Prefix: "0123456789abcdef0123456789abcdef01234567",
		Account: &externalapi.Account{
			Type:    externalapi.AccountTypeVesting,
			Balance: 500,
			Nonce:   1,
			Vesting: &externalapi.VestingData{
				Owner:       externalapi.Address{9},
				Start:       10,
				StepBlocks:  5,
				StepAmount:  100,
				TotalAmount: 500,
			},
		},
	}
	deserialized, err := DeserializeAccountsTreeNode(SerializeAccountsTreeNode(terminal))
	if err != nil {
		t.Fatalf("DeserializeAccountsTreeNode: %+v", err)
	}
	if deserialized.Prefix != terminal.Prefix || !deserialized.Account.Equal(terminal.Account) {
		t.Fatalf("TestAccountsTreeNodeRecord: expected %s, got %s", spew.Sdump(terminal), spew.Sdump(deserialized))
	}

	branch := &DbAccountsTreeNode{
		Prefix: "",
		Children: []*DbAccountsTreeChild{
			{Index: 0, Suffix: "0a", Hash: hashOf(1)},
			{Index: 15, Suffix: "f", Hash: hashOf(2)},
		},
	}
	deserialized, err = DeserializeAccountsTreeNode(SerializeAccountsTreeNode(branch))
	if err != nil {
		t.Fatalf("DeserializeAccountsTreeNode: %+v", err)
	}
	if len(deserialized.Children) != 2 || deserialized.Children[1].Index != 15 ||
		deserialized.Children[1].Suffix != "f" || !deserialized.Children[1].Hash.Equal(hashOf(2)) {
		t.Fatalf("TestAccountsTreeNodeRecord: expected %s, got %s", spew.Sdump(branch), spew.Sdump(deserialized))
	}
}
