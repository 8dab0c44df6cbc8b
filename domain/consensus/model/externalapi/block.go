package externalapi

// DomainBlock represents a block in the chain
type DomainBlock struct {
	Header    *DomainBlockHeader
	Interlink BlockInterlink
	Body      *DomainBlockBody
}

// Clone returns a clone of DomainBlock
func (block *DomainBlock) Clone() *DomainBlock {
	return &DomainBlock{
		Header:    block.Header.Clone(),
		Interlink: block.Interlink.Clone(),
		Body:      block.Body.Clone(),
	}
}

// Equal returns whether block equals to other
func (block *DomainBlock) Equal(other *DomainBlock) bool {
	if block == nil || other == nil {
		return block == other
	}

	return block.Header.Equal(other.Header) &&
		block.Interlink.Equal(other.Interlink) &&
		block.Body.Equal(other.Body)
}

// DomainBlockHeader represents the header part of a block
type DomainBlockHeader struct {
	Version            uint16
	PrevHash           *DomainHash
	InterlinkHash      *DomainHash
	BodyHash           *DomainHash
	AccountsHash       *DomainHash
	Bits               uint32
	Height             uint64
	TimeInMilliseconds int64
	Nonce              uint64
}

// Clone returns a clone of DomainBlockHeader
func (header *DomainBlockHeader) Clone() *DomainBlockHeader {
	if header == nil {
		return nil
	}
	return &DomainBlockHeader{
		Version:            header.Version,
		PrevHash:           header.PrevHash.Clone(),
		InterlinkHash:      header.InterlinkHash.Clone(),
		BodyHash:           header.BodyHash.Clone(),
		AccountsHash:       header.AccountsHash.Clone(),
		Bits:               header.Bits,
		Height:             header.Height,
		TimeInMilliseconds: header.TimeInMilliseconds,
		Nonce:              header.Nonce,
	}
}

// Equal returns whether header equals to other
func (header *DomainBlockHeader) Equal(other *DomainBlockHeader) bool {
	if header == nil || other == nil {
		return header == other
	}

	return header.Version == other.Version &&
		header.PrevHash.Equal(other.PrevHash) &&
		header.InterlinkHash.Equal(other.InterlinkHash) &&
		header.BodyHash.Equal(other.BodyHash) &&
		header.AccountsHash.Equal(other.AccountsHash) &&
		header.Bits == other.Bits &&
		header.Height == other.Height &&
		header.TimeInMilliseconds == other.TimeInMilliseconds &&
		header.Nonce == other.Nonce
}

// DomainBlockBody carries the miner address and the transactions of a block
type DomainBlockBody struct {
	MinerAddress Address
	ExtraData    []byte
	Transactions []*DomainTransaction
}

// Clone returns a clone of DomainBlockBody
func (body *DomainBlockBody) Clone() *DomainBlockBody {
	if body == nil {
		return nil
	}
	var extraData []byte
	if body.ExtraData != nil {
		extraData = make([]byte, len(body.ExtraData))
		copy(extraData, body.ExtraData)
	}
	return &DomainBlockBody{
		MinerAddress: body.MinerAddress,
		ExtraData:    extraData,
		Transactions: CloneTransactions(body.Transactions),
	}
}

// Equal returns whether body equals to other
func (body *DomainBlockBody) Equal(other *DomainBlockBody) bool {
	if body == nil || other == nil {
		return body == other
	}
	if body.MinerAddress != other.MinerAddress ||
		string(body.ExtraData) != string(other.ExtraData) ||
		len(body.Transactions) != len(other.Transactions) {
		return false
	}
	for i, tx := range body.Transactions {
		if !tx.Equal(other.Transactions[i]) {
			return false
		}
	}
	return true
}

// BlockInterlink holds, per superblock level, the hash of the nearest
// ancestor that reached that level. Level 0 is always the previous block.
type BlockInterlink []*DomainHash

// Clone returns a clone of BlockInterlink
func (interlink BlockInterlink) Clone() BlockInterlink {
	return CloneHashes(interlink)
}

// Equal returns whether interlink equals to other
func (interlink BlockInterlink) Equal(other BlockInterlink) bool {
	return HashesEqual(interlink, other)
}
