package blockprocessor

import (
	"time"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/util/mstime"
)

// orphanBlock represents a block that we don't yet have the previous block
// for. It is a normal block plus an expiration time to prevent caching the
// orphan forever.
type orphanBlock struct {
	hash       *externalapi.DomainHash
	block      *externalapi.DomainBlock
	expiration time.Time
}

// OrphanCount returns the number of blocks currently in the orphan pool
func (bp *blockProcessor) OrphanCount() int {
	return len(bp.orphans)
}

func (bp *blockProcessor) isKnownOrphan(blockHash *externalapi.DomainHash) bool {
	_, exists := bp.orphans[*blockHash]
	return exists
}

// removeOrphanBlock removes the passed orphan block from the orphan pool and
// previous orphan index.
func (bp *blockProcessor) removeOrphanBlock(orphan *orphanBlock) {
	delete(bp.orphans, *orphan.hash)

	prevHash := *orphan.block.Header.PrevHash
	orphans := bp.prevOrphans[prevHash]
	for i := 0; i < len(orphans); i++ {
		if orphans[i].hash.Equal(orphan.hash) {
			orphans = append(orphans[:i], orphans[i+1:]...)
			i--
		}
	}
	if len(orphans) == 0 {
		delete(bp.prevOrphans, prevHash)
		return
	}
	bp.prevOrphans[prevHash] = orphans
}

// addOrphanBlock adds the passed block to the orphan pool. Expired orphans
// are cleaned up lazily. When the pool is full the orphan closest to
// expiring, which is the oldest one received, is evicted.
func (bp *blockProcessor) addOrphanBlock(blockHash *externalapi.DomainHash, block *externalapi.DomainBlock) {
	now := mstime.Now()
	var oldestOrphan *orphanBlock
	for _, orphan := range bp.orphans {
		if now.After(orphan.expiration) {
			bp.removeOrphanBlock(orphan)
			continue
		}
		if oldestOrphan == nil || orphan.expiration.Before(oldestOrphan.expiration) {
			oldestOrphan = orphan
		}
	}

	if len(bp.orphans)+1 > bp.maxOrphanBlocks && oldestOrphan != nil {
		log.Debugf("Orphan pool is full, evicting orphan %s", oldestOrphan.hash)
		bp.removeOrphanBlock(oldestOrphan)
	}

	orphan := &orphanBlock{
		hash:       blockHash,
		block:      block,
		expiration: now.Add(bp.orphanExpiration),
	}
	bp.orphans[*blockHash] = orphan

	prevHash := *block.Header.PrevHash
	bp.prevOrphans[prevHash] = append(bp.prevOrphans[prevHash], orphan)

	log.Debugf("Added orphan block %s with missing previous block %s", blockHash, block.Header.PrevHash)
}

// removeOrphanDescendants removes and returns every orphan that descends from
// blockHash.
func (bp *blockProcessor) removeOrphanDescendants(blockHash *externalapi.DomainHash) []*externalapi.DomainHash {
	var removed []*externalapi.DomainHash
	queue := []*externalapi.DomainHash{blockHash}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children := append([]*orphanBlock(nil), bp.prevOrphans[*current]...)
		for _, child := range children {
			bp.removeOrphanBlock(child)
			removed = append(removed, child.hash)
			queue = append(queue, child.hash)
		}
	}
	return removed
}

// processOrphans determines if there are any orphans which depend on the
// passed block hash and inserts them. It repeats the process for the newly
// inserted blocks until there are no more.
func (bp *blockProcessor) processOrphans(blockHash *externalapi.DomainHash) ([]externalapi.ChainEvent, error) {
	var events []externalapi.ChainEvent

	processHashes := make([]*externalapi.DomainHash, 0, 10)
	processHashes = append(processHashes, blockHash)
	for len(processHashes) > 0 {
		processHash := processHashes[0]
		processHashes[0] = nil
		processHashes = processHashes[1:]

		children := append([]*orphanBlock(nil), bp.prevOrphans[*processHash]...)
		for _, orphan := range children {
			bp.removeOrphanBlock(orphan)

			result, err := bp.validateAndInsertBlock(orphan.block)
			if err != nil {
				return nil, err
			}
			log.Debugf("Processed orphan block %s: %s", orphan.hash, result.Result)

			events = append(events, result.Events...)
			if isStored(result.Result) {
				processHashes = append(processHashes, orphan.hash)
			}
		}
	}
	return events, nil
}
