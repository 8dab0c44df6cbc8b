package miner

import (
	"context"
	"sync"
	"time"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/observable"
	"go.uber.org/ratelimit"
)

// Miner event names
const (
	StartedEventName         = "started"
	StoppedEventName         = "stopped"
	HashrateChangedEventName = "hashrate-changed"
	BlockMinedEventName      = "block-mined"
)

// Event is fired by the Miner. Hashrate is set for hashrate-changed events.
// Block and BlockHash are set for block-mined events.
type Event struct {
	Name      string
	Hashrate  float64
	Block     *externalapi.DomainBlock
	BlockHash *externalapi.DomainHash
	Result    externalapi.PushResult
}

// EventHandler handles miner events
type EventHandler func(event *Event)

const defaultHashrateInterval = 10 * time.Second

// Config configures a Miner
type Config struct {
	Address    externalapi.Address
	ExtraData  []byte
	NumWorkers int

	// TargetBlocksPerSecond paces the templates handed to the pool. Zero
	// mines as fast as possible.
	TargetBlocksPerSecond float64

	// HashrateInterval is how often the hashrate is sampled
	HashrateInterval time.Duration
}

// Miner keeps a WorkerPool busy with templates built on the chain head and
// pushes the blocks the pool solves
type Miner struct {
	consensus externalapi.Consensus
	pool      *WorkerPool
	config    Config
	limiter   ratelimit.Limiter
	events    *observable.Observable

	mutex              sync.Mutex
	isWorking          bool
	hashrate           float64
	cancel             context.CancelFunc
	loopWG             sync.WaitGroup
	headSubscriptionID uint64
	poolSubscriptionID uint64

	headChanged  chan struct{}
	solvedBlocks chan *Share

	// templateID is the id of the template being mined. Only mineLoop
	// touches it. Zero means no template.
	templateID uint64
}

// New creates a stopped Miner for consensus
func New(consensus externalapi.Consensus, config Config) *Miner {
	if config.HashrateInterval <= 0 {
		config.HashrateInterval = defaultHashrateInterval
	}

	var limiter ratelimit.Limiter
	if config.TargetBlocksPerSecond > 0 {
		interval := time.Duration(float64(time.Second) / config.TargetBlocksPerSecond)
		limiter = ratelimit.New(1, ratelimit.Per(interval), ratelimit.WithoutSlack)
	}

	return &Miner{
		consensus:    consensus,
		pool:         NewWorkerPool(config.NumWorkers),
		config:       config,
		limiter:      limiter,
		events:       observable.New(),
		headChanged:  make(chan struct{}, 1),
		solvedBlocks: make(chan *Share, 1),
	}
}

// Address returns the address the block rewards are paid to
func (m *Miner) Address() externalapi.Address {
	return m.config.Address
}

// Hashrate returns the last sampled hashrate, in hashes per second
func (m *Miner) Hashrate() float64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.hashrate
}

// IsWorking returns whether the miner was started and not stopped since
func (m *Miner) IsWorking() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.isWorking
}

// Pool returns the worker pool of the miner
func (m *Miner) Pool() *WorkerPool {
	return m.pool
}

// Subscribe registers handler for the miner event eventName. Pass
// observable.Wildcard to receive every event.
func (m *Miner) Subscribe(eventName string, handler EventHandler) uint64 {
	return m.events.Subscribe(eventName, func(payload interface{}) {
		handler(payload.(*Event))
	})
}

// Unsubscribe removes the handler with the given id
func (m *Miner) Unsubscribe(id uint64) {
	m.events.Unsubscribe(id)
}

// StartWork starts mining on the chain head. It does nothing if the miner
// is already working.
func (m *Miner) StartWork() {
	m.mutex.Lock()
	if m.isWorking {
		m.mutex.Unlock()
		return
	}
	m.isWorking = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.drainSolvedBlocks()

	m.pool.Start()
	m.poolSubscriptionID = m.pool.Subscribe(m.handleShare)
	m.headSubscriptionID = m.consensus.Subscribe(externalapi.HeadChangedEventName, m.handleHeadChanged)

	m.loopWG.Add(1)
	spawn("Miner.mineLoop", func() {
		defer m.loopWG.Done()
		m.mineLoop(ctx)
	})
	m.mutex.Unlock()

	log.Infof("Started mining to %s with %d workers", m.config.Address, m.pool.numWorkers)
	m.events.Fire(StartedEventName, &Event{Name: StartedEventName})
}

// StopWork stops mining. No block is pushed after StopWork returns.
func (m *Miner) StopWork() {
	m.mutex.Lock()
	if !m.isWorking {
		m.mutex.Unlock()
		return
	}
	m.isWorking = false
	m.cancel()
	m.hashrate = 0
	m.mutex.Unlock()

	m.loopWG.Wait()
	m.consensus.Unsubscribe(m.headSubscriptionID)
	m.pool.Unsubscribe(m.poolSubscriptionID)
	m.pool.Stop()

	log.Infof("Stopped mining")
	m.events.Fire(StoppedEventName, &Event{Name: StoppedEventName})
}

func (m *Miner) drainSolvedBlocks() {
	for {
		select {
		case <-m.solvedBlocks:
		default:
			return
		}
	}
}

func (m *Miner) handleShare(share *Share) {
	if !share.IsBlock {
		return
	}
	select {
	case m.solvedBlocks <- share:
	default:
		log.Debugf("Dropping solved block %s, a previous one is still being pushed", share.Hash)
	}
}

func (m *Miner) handleHeadChanged(externalapi.ChainEvent) {
	select {
	case m.headChanged <- struct{}{}:
	default:
	}
}

func (m *Miner) mineLoop(ctx context.Context) {
	m.startNewTemplate()

	hashrateTicker := time.NewTicker(m.config.HashrateInterval)
	defer hashrateTicker.Stop()
	lastSample := time.Now()
	lastHashesTried := m.pool.HashesTried()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.headChanged:
			m.startNewTemplate()
		case share := <-m.solvedBlocks:
			if share.TemplateID != m.templateID {
				log.Debugf("Discarding solved block %s of superseded template %d", share.Hash, share.TemplateID)
				continue
			}
			m.pushSolvedBlock(share.Block)
		case now := <-hashrateTicker.C:
			hashesTried := m.pool.HashesTried()
			m.updateHashrate(float64(hashesTried-lastHashesTried) / now.Sub(lastSample).Seconds())
			lastSample, lastHashesTried = now, hashesTried
		}
	}
}

func (m *Miner) startNewTemplate() {
	if m.limiter != nil {
		m.limiter.Take()
	}

	block, err := m.consensus.BuildBlock(m.config.Address, nil, m.config.ExtraData)
	if err != nil {
		log.Errorf("Could not build a block template: %+v", err)
		return
	}
	m.templateID, err = m.pool.StartMiningOnBlock(block)
	if err != nil {
		log.Debugf("Could not start mining on template: %s", err)
	}
}

func (m *Miner) pushSolvedBlock(block *externalapi.DomainBlock) {
	blockHash := consensushashing.BlockHash(block)
	result, ruleErr, err := m.consensus.PushBlockWithReason(block)
	if err != nil {
		log.Errorf("Could not push mined block %s: %+v", blockHash, err)
		return
	}
	if result != externalapi.PushResultOKExtended && result != externalapi.PushResultOKRebranched {
		defer m.startNewTemplate()
	}
	if !result.IsOK() {
		log.Warnf("Mined block %s was rejected (%s): %s", blockHash, result, ruleErr)
		return
	}

	log.Infof("Mined block %s at height %d: %s", blockHash, block.Header.Height, result)
	m.events.Fire(BlockMinedEventName, &Event{
		Name:      BlockMinedEventName,
		Block:     block,
		BlockHash: blockHash,
		Result:    result,
	})
}

func (m *Miner) updateHashrate(hashrate float64) {
	m.mutex.Lock()
	m.hashrate = hashrate
	m.mutex.Unlock()

	log.Debugf("Current hash rate is %.2f Khash/s", hashrate/1000)
	m.events.Fire(HashrateChangedEventName, &Event{Name: HashrateChangedEventName, Hashrate: hashrate})
}
