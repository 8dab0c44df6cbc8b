package blockprocessor

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nipopow/nipowd/domain/consensus/model"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// blockProcessor is responsible for processing incoming blocks
type blockProcessor struct {
	databaseContext model.DBManager

	blockValidator model.BlockValidator
	chainManager   model.ChainManager

	blockStore     model.BlockStore
	chainDataStore model.ChainDataStore

	maxOrphanBlocks  int
	orphanExpiration time.Duration
	orphans          map[externalapi.DomainHash]*orphanBlock
	prevOrphans      map[externalapi.DomainHash][]*orphanBlock

	knownInvalid *lru.Cache
}

// New instantiates a new BlockProcessor
func New(
	databaseContext model.DBManager,
	blockValidator model.BlockValidator,
	chainManager model.ChainManager,
	blockStore model.BlockStore,
	chainDataStore model.ChainDataStore,
	maxOrphanBlocks int,
	orphanExpiration time.Duration,
	knownInvalidCacheSize int) (model.BlockProcessor, error) {

	knownInvalid, err := lru.New(knownInvalidCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the known-invalid cache")
	}

	return &blockProcessor{
		databaseContext: databaseContext,

		blockValidator: blockValidator,
		chainManager:   chainManager,

		blockStore:     blockStore,
		chainDataStore: chainDataStore,

		maxOrphanBlocks:  maxOrphanBlocks,
		orphanExpiration: orphanExpiration,
		orphans:          make(map[externalapi.DomainHash]*orphanBlock),
		prevOrphans:      make(map[externalapi.DomainHash][]*orphanBlock),

		knownInvalid: knownInvalid,
	}, nil
}

func (bp *blockProcessor) commitStagingArea(stagingArea *model.StagingArea) error {
	dbTx, err := bp.databaseContext.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	err = stagingArea.Commit(dbTx)
	if err != nil {
		return err
	}
	return dbTx.Commit()
}
