package externalapi

import "math/big"

// ChainData is the metadata kept for every stored block
type ChainData struct {
	TotalWork          *big.Int
	Height             uint64
	OnMainChain        bool
	MainChainSuccessor *DomainHash

	// SuperBlockCounts[d] is the number of blocks, up to and including
	// this one, whose hash reached superblock depth d or deeper
	SuperBlockCounts []uint32
}

// Clone returns a clone of ChainData
func (cd *ChainData) Clone() *ChainData {
	superBlockCounts := make([]uint32, len(cd.SuperBlockCounts))
	copy(superBlockCounts, cd.SuperBlockCounts)
	return &ChainData{
		TotalWork:          new(big.Int).Set(cd.TotalWork),
		Height:             cd.Height,
		OnMainChain:        cd.OnMainChain,
		MainChainSuccessor: cd.MainChainSuccessor.Clone(),
		SuperBlockCounts:   superBlockCounts,
	}
}

// Equal returns whether cd equals to other
func (cd *ChainData) Equal(other *ChainData) bool {
	if cd == nil || other == nil {
		return cd == other
	}
	if cd.TotalWork.Cmp(other.TotalWork) != 0 || cd.Height != other.Height ||
		cd.OnMainChain != other.OnMainChain || !cd.MainChainSuccessor.Equal(other.MainChainSuccessor) ||
		len(cd.SuperBlockCounts) != len(other.SuperBlockCounts) {
		return false
	}
	for i, count := range cd.SuperBlockCounts {
		if count != other.SuperBlockCounts[i] {
			return false
		}
	}
	return true
}

// WithSuperBlock returns the super block counts of a successor block
// whose hash reached the given depth
func WithSuperBlock(counts []uint32, depth int) []uint32 {
	length := len(counts)
	if depth+1 > length {
		length = depth + 1
	}
	result := make([]uint32, length)
	copy(result, counts)
	for i := 0; i <= depth; i++ {
		result[i]++
	}
	return result
}
