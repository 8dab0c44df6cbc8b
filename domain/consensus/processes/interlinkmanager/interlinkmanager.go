package interlinkmanager

import (
	"math/big"

	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
	"github.com/nipopow/nipowd/domain/consensus/utils/hashes"
)

// interlinkManager builds the interlink of new blocks. Level i of an
// interlink points at the nearest ancestor whose hash is at most
// nextTarget / 2^i.
type interlinkManager struct {
	powMaxBitLen int

	databaseContext model.DBReader
	blockStore      model.BlockStore
}

// New instantiates a new InterlinkManager
func New(powMax *big.Int, databaseContext model.DBReader, blockStore model.BlockStore) model.InterlinkManager {
	return &interlinkManager{
		powMaxBitLen:    powMax.BitLen(),
		databaseContext: databaseContext,
		blockStore:      blockStore,
	}
}

// HashDepth returns how many times over a hash meets the maximum target,
// that is, how many halvings of the maximum target it still satisfies
func (im *interlinkManager) HashDepth(blockHash *externalapi.DomainHash) int {
	return im.powMaxBitLen - hashes.ToBig(blockHash).BitLen()
}

// TargetDepth returns how many halvings of the maximum target the given
// target is
func (im *interlinkManager) TargetDepth(target *big.Int) int {
	return im.powMaxBitLen - target.BitLen()
}

// SuperBlockDepth returns the superblock level a block reached relative to
// its own target. It is negative only for blocks that do not meet their
// target.
func (im *interlinkManager) SuperBlockDepth(blockHash *externalapi.DomainHash, bits uint32) int {
	return im.HashDepth(blockHash) - im.TargetDepth(difficulty.CompactToBig(bits))
}

// NextInterlink returns the interlink of a block that follows prevHash and
// has the given target
func (im *interlinkManager) NextInterlink(stagingArea *model.StagingArea, prevHash *externalapi.DomainHash,
	nextTarget *big.Int) (externalapi.BlockInterlink, error) {

	prev, err := im.blockStore.Block(im.databaseContext, stagingArea, prevHash)
	if err != nil {
		return nil, err
	}

	prevTarget := difficulty.CompactToBig(prev.Header.Bits)
	return nextInterlink(prevHash, prev.Interlink, im.HashDepth(prevHash),
		im.TargetDepth(prevTarget), im.TargetDepth(nextTarget)), nil
}

func nextInterlink(prevHash *externalapi.DomainHash, prevInterlink externalapi.BlockInterlink,
	prevHashDepth int, prevTargetDepth int, nextTargetDepth int) externalapi.BlockInterlink {

	// The predecessor occupies every level its hash qualifies for under
	// the next target, and always level 0
	occurrences := prevHashDepth - nextTargetDepth + 1
	if occurrences < 1 {
		occurrences = 1
	}
	targetOffset := nextTargetDepth - prevTargetDepth

	interlink := make(externalapi.BlockInterlink, 0, occurrences+len(prevInterlink))
	for i := 0; i < occurrences; i++ {
		interlink = append(interlink, prevHash.Clone())
	}

	// The higher levels are inherited from the predecessor's interlink,
	// shifted by the change in target depth
	for level := occurrences; ; level++ {
		index := level + targetOffset
		if index >= len(prevInterlink) {
			break
		}
		if index < 0 {
			continue
		}
		interlink = append(interlink, prevInterlink[index].Clone())
	}
	return interlink
}
