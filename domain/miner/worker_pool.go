package miner

import (
	"context"
	"encoding/binary"
	"math/big"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
	"github.com/nipopow/nipowd/domain/consensus/utils/hashes"
	"github.com/nipopow/nipowd/domain/consensus/utils/observable"
	"github.com/pkg/errors"
)

// Share is a solved nonce of a template. IsBlock is set when the hash is
// within the block target, otherwise the hash is only within the share
// target.
type Share struct {
	TemplateID uint64
	Block      *externalapi.DomainBlock
	Hash       *externalapi.DomainHash
	IsBlock    bool
}

// ShareHandler is called by the pool for every share of the current template
type ShareHandler func(share *Share)

const shareEventName = "share"

// ErrPoolNotRunning is returned when work is handed to a stopped pool
var ErrPoolNotRunning = errors.New("worker pool is not running")

type miningTemplate struct {
	id          uint64
	block       *externalapi.DomainBlock
	headerBytes []byte
	target      *big.Int
	shareTarget *big.Int
}

// WorkerPool hashes block templates on a fixed number of goroutines. Workers
// never touch chain state. They only report shares to the subscribed
// handlers.
type WorkerPool struct {
	numWorkers  int
	hashesTried uint64

	mutex          sync.Mutex
	isRunning      bool
	poolCancel     context.CancelFunc
	poolContext    context.Context
	templateID     uint64
	templateCancel context.CancelFunc
	shareTarget    *big.Int
	shares         chan *Share
	workersWG      *sync.WaitGroup
	dispatcherWG   *sync.WaitGroup

	handlers *observable.Observable
}

// NewWorkerPool creates a stopped pool with numWorkers workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		handlers:   observable.New(),
	}
}

// Start starts the share dispatcher. Workers only run once a template is
// given through StartMiningOnBlock.
func (wp *WorkerPool) Start() {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()

	if wp.isRunning {
		return
	}
	wp.isRunning = true
	wp.poolContext, wp.poolCancel = context.WithCancel(context.Background())
	wp.shares = make(chan *Share, wp.numWorkers)
	wp.workersWG = &sync.WaitGroup{}
	wp.dispatcherWG = &sync.WaitGroup{}

	ctx, shares := wp.poolContext, wp.shares
	wp.dispatcherWG.Add(1)
	spawn("WorkerPool.dispatchShares", func() {
		defer wp.dispatcherWG.Done()
		wp.dispatchShares(ctx, shares)
	})
	log.Debugf("Started worker pool with %d workers", wp.numWorkers)
}

// Stop cancels the current template and waits for every worker to exit.
// Once Stop returns no share is delivered until the pool is started again.
func (wp *WorkerPool) Stop() {
	wp.mutex.Lock()
	if !wp.isRunning {
		wp.mutex.Unlock()
		return
	}
	wp.isRunning = false
	wp.templateID++
	wp.templateCancel = nil
	wp.poolCancel()
	workersWG, dispatcherWG := wp.workersWG, wp.dispatcherWG
	wp.mutex.Unlock()

	workersWG.Wait()
	dispatcherWG.Wait()
	log.Debugf("Stopped worker pool")
}

// IsRunning returns whether the pool was started and not stopped since
func (wp *WorkerPool) IsRunning() bool {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()
	return wp.isRunning
}

// SetShareTarget sets the target below which hashes are reported as shares
// even if they do not solve the block. It applies from the next template on.
// A nil target reports solved blocks only.
func (wp *WorkerPool) SetShareTarget(shareTarget *big.Int) {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()

	if shareTarget == nil {
		wp.shareTarget = nil
		return
	}
	wp.shareTarget = new(big.Int).Set(shareTarget)
}

// StartMiningOnBlock switches every worker to block and returns the id of
// the new template. Shares of earlier templates are discarded from now on.
func (wp *WorkerPool) StartMiningOnBlock(block *externalapi.DomainBlock) (uint64, error) {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()

	if !wp.isRunning {
		return 0, ErrPoolNotRunning
	}
	if wp.templateCancel != nil {
		wp.templateCancel()
	}

	wp.templateID++
	template := &miningTemplate{
		id:          wp.templateID,
		block:       block.Clone(),
		headerBytes: consensushashing.HeaderBytes(block.Header),
		target:      difficulty.CompactToBig(block.Header.Bits),
		shareTarget: wp.shareTarget,
	}

	ctx, cancel := context.WithCancel(wp.poolContext)
	wp.templateCancel = cancel

	workersWG, shares := wp.workersWG, wp.shares
	stride := uint64(wp.numWorkers)
	baseNonce := rand.Uint64()
	for i := 0; i < wp.numWorkers; i++ {
		firstNonce := baseNonce + uint64(i)
		workersWG.Add(1)
		spawn("WorkerPool.mine", func() {
			defer workersWG.Done()
			wp.mine(ctx, cancel, template, shares, firstNonce, stride)
		})
	}

	log.Debugf("Mining template %d at height %d", template.id, block.Header.Height)
	return template.id, nil
}

// HashesTried returns the number of hashes computed since the pool was created
func (wp *WorkerPool) HashesTried() uint64 {
	return atomic.LoadUint64(&wp.hashesTried)
}

// Subscribe registers handler to be called with every share of the current
// template. Handlers run on the dispatcher goroutine with the pool lock held,
// so they must not call back into the pool.
func (wp *WorkerPool) Subscribe(handler ShareHandler) uint64 {
	return wp.handlers.Subscribe(shareEventName, func(payload interface{}) {
		handler(payload.(*Share))
	})
}

// Unsubscribe removes the handler with the given id
func (wp *WorkerPool) Unsubscribe(id uint64) {
	wp.handlers.Unsubscribe(id)
}

func (wp *WorkerPool) mine(ctx context.Context, cancel context.CancelFunc, template *miningTemplate,
	shares chan<- *Share, nonce uint64, stride uint64) {

	headerBytes := make([]byte, len(template.headerBytes))
	copy(headerBytes, template.headerBytes)

	for ; ; nonce += stride {
		select {
		case <-ctx.Done():
			return
		default:
		}

		binary.LittleEndian.PutUint64(headerBytes[consensushashing.NonceOffset:], nonce)
		hash := consensushashing.HashHeaderBytes(headerBytes)
		atomic.AddUint64(&wp.hashesTried, 1)

		hashValue := hashes.ToBig(hash)
		isBlock := hashValue.Cmp(template.target) <= 0
		isShare := template.shareTarget != nil && hashValue.Cmp(template.shareTarget) <= 0
		if !isBlock && !isShare {
			continue
		}

		block := template.block.Clone()
		block.Header.Nonce = nonce
		share := &Share{
			TemplateID: template.id,
			Block:      block,
			Hash:       hash,
			IsBlock:    isBlock,
		}
		select {
		case shares <- share:
		case <-ctx.Done():
			return
		}

		if isBlock {
			cancel()
			return
		}
	}
}

func (wp *WorkerPool) dispatchShares(ctx context.Context, shares <-chan *Share) {
	for {
		select {
		case <-ctx.Done():
			return
		case share := <-shares:
			wp.deliverShare(share)
		}
	}
}

// deliverShare fires share to the handlers if it belongs to the current
// template. The mutex is held while the handlers run, so no template switch
// can happen between the check and the delivery. The first solved block of a
// template retires it, so at most one block is delivered per template.
func (wp *WorkerPool) deliverShare(share *Share) {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()

	if !wp.isRunning || wp.templateID != share.TemplateID {
		log.Tracef("Discarding share of stale template %d", share.TemplateID)
		return
	}
	if share.IsBlock {
		wp.templateID++
		if wp.templateCancel != nil {
			wp.templateCancel()
			wp.templateCancel = nil
		}
	}
	wp.handlers.Fire(shareEventName, share)
}
