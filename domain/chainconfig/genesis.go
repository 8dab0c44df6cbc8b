package chainconfig

import (
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

// GenesisAllocation is an account that exists before the genesis block
// is applied
type GenesisAllocation struct {
	Address externalapi.Address
	Account *externalapi.Account
}

// GenesisTemplate holds everything the genesis block commits to. Its
// interlink is always empty and its previous hash is the zero hash.
type GenesisTemplate struct {
	Bits               uint32
	TimeInMilliseconds int64
	Nonce              uint64
	MinerAddress       externalapi.Address
	ExtraData          []byte
	Allocations        []*GenesisAllocation
}

// Body returns the body of the genesis block
func (g *GenesisTemplate) Body() *externalapi.DomainBlockBody {
	extraData := make([]byte, len(g.ExtraData))
	copy(extraData, g.ExtraData)
	return &externalapi.DomainBlockBody{
		MinerAddress: g.MinerAddress,
		ExtraData:    extraData,
		Transactions: []*externalapi.DomainTransaction{},
	}
}

// Clone returns a deep copy of the template
func (g *GenesisTemplate) Clone() *GenesisTemplate {
	clone := *g
	clone.ExtraData = append([]byte(nil), g.ExtraData...)
	clone.Allocations = make([]*GenesisAllocation, len(g.Allocations))
	for i, allocation := range g.Allocations {
		clone.Allocations[i] = &GenesisAllocation{
			Address: allocation.Address,
			Account: allocation.Account.Clone(),
		}
	}
	return &clone
}

var genesisExtraData = []byte("nipowd genesis: the interlink starts here")

// mainnetGenesis defines the genesis block of the chain which serves as the
// public transaction ledger for the main network.
var mainnetGenesis = GenesisTemplate{
	Bits:               0x1f00ffff,
	TimeInMilliseconds: 0x17a8ff2c400,
	ExtraData:          genesisExtraData,
	Allocations:        []*GenesisAllocation{},
}

// testnetGenesis defines the genesis block for the test network.
var testnetGenesis = GenesisTemplate{
	Bits:               0x1f00ffff,
	TimeInMilliseconds: 0x17a8ff2c400,
	ExtraData:          []byte("nipowd testnet genesis"),
	Allocations:        []*GenesisAllocation{},
}

// simnetGenesis defines the genesis block for the simulation test network.
var simnetGenesis = GenesisTemplate{
	Bits:               0x207fffff,
	TimeInMilliseconds: 0x17a8ff2c400,
	ExtraData:          []byte("nipowd simnet genesis"),
	Allocations:        []*GenesisAllocation{},
}

// devnetGenesis defines the genesis block for the development network.
var devnetGenesis = GenesisTemplate{
	Bits:               0x207fffff,
	TimeInMilliseconds: 0x17a8ff2c400,
	ExtraData:          []byte("nipowd devnet genesis"),
	Allocations:        []*GenesisAllocation{},
}
