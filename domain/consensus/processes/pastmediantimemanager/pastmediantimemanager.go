package pastmediantimemanager

import (
	"sort"

	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

// pastMedianTimeManager provides a method to resolve the
// past median time of a block
type pastMedianTimeManager struct {
	pastMedianTimeWindow int

	databaseContext model.DBReader
	blockStore      model.BlockStore
}

// New instantiates a new PastMedianTimeManager
func New(pastMedianTimeWindow int,
	databaseContext model.DBReader,
	blockStore model.BlockStore) model.PastMedianTimeManager {

	return &pastMedianTimeManager{
		pastMedianTimeWindow: pastMedianTimeWindow,
		databaseContext:      databaseContext,
		blockStore:           blockStore,
	}
}

// PastMedianTime returns the median timestamp of the block with the given
// hash and its ancestors, up to pastMedianTimeWindow blocks in total.
// A block following blockHash must have a strictly greater timestamp.
func (pmtm *pastMedianTimeManager) PastMedianTime(stagingArea *model.StagingArea,
	blockHash *externalapi.DomainHash) (int64, error) {

	timestamps := make([]int64, 0, pmtm.pastMedianTimeWindow)
	current := blockHash
	for len(timestamps) < pmtm.pastMedianTimeWindow {
		block, err := pmtm.blockStore.Block(pmtm.databaseContext, stagingArea, current)
		if err != nil {
			return 0, err
		}
		timestamps = append(timestamps, block.Header.TimeInMilliseconds)
		if block.Header.Height == 0 {
			break
		}
		current = block.Header.PrevHash
	}

	return medianTimestamp(timestamps), nil
}

func medianTimestamp(timestamps []int64) int64 {
	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i] < timestamps[j]
	})
	return timestamps[len(timestamps)/2]
}
