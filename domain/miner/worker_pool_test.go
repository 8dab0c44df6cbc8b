package miner

import (
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/consensushashing"
	"github.com/pkg/errors"
)

const (
	// solvedByAnyHashBits decodes to 2^256, which every hash is below
	solvedByAnyHashBits = 0x22000100

	// unsolvableBits decodes to a target no test will ever reach
	unsolvableBits = 0x03000001
)

var maxShareTarget = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func testTemplate(bits uint32) *externalapi.DomainBlock {
	return &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:            1,
			PrevHash:           externalapi.NewZeroHash(),
			InterlinkHash:      externalapi.NewZeroHash(),
			BodyHash:           externalapi.NewZeroHash(),
			AccountsHash:       externalapi.NewZeroHash(),
			Bits:               bits,
			Height:             1,
			TimeInMilliseconds: 1_600_000_000_000,
		},
		Interlink: externalapi.BlockInterlink{externalapi.NewZeroHash()},
		Body:      &externalapi.DomainBlockBody{},
	}
}

func waitFor(t *testing.T, condition func() bool) {
	deadline := time.Now().Add(10 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWorkerPoolSolvesOnFirstNonceWithMaxTarget(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	shares := make(chan *Share, 1)
	pool.Subscribe(func(share *Share) { shares <- share })

	templateID, err := pool.StartMiningOnBlock(testTemplate(solvedByAnyHashBits))
	if err != nil {
		t.Fatalf("StartMiningOnBlock: %+v", err)
	}

	var share *Share
	select {
	case share = <-shares:
	case <-time.After(10 * time.Second):
		t.Fatalf("no share was found")
	}
	if share.TemplateID != templateID {
		t.Fatalf("got a share of template %d, expected %d", share.TemplateID, templateID)
	}
	if !share.IsBlock {
		t.Fatalf("a hash within the block target was not reported as a block")
	}
	if !consensushashing.BlockHash(share.Block).Equal(share.Hash) {
		t.Fatalf("the share hash does not match the block it carries")
	}

	pool.Stop()
	if pool.HashesTried() != 1 {
		t.Fatalf("expected the block to be solved on the first nonce, tried %d hashes", pool.HashesTried())
	}
}

func TestWorkerPoolDeliversNoSharesAfterStop(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.SetShareTarget(maxShareTarget)
	pool.Start()

	var delivered int64
	pool.Subscribe(func(share *Share) {
		if share.IsBlock {
			t.Errorf("an unsolvable template was reported as solved")
		}
		atomic.AddInt64(&delivered, 1)
	})

	_, err := pool.StartMiningOnBlock(testTemplate(unsolvableBits))
	if err != nil {
		t.Fatalf("StartMiningOnBlock: %+v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt64(&delivered) >= 10 })

	pool.Stop()
	deliveredAtStop := atomic.LoadInt64(&delivered)
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt64(&delivered) != deliveredAtStop {
		t.Fatalf("%d shares were delivered after Stop returned", atomic.LoadInt64(&delivered)-deliveredAtStop)
	}
	if pool.IsRunning() {
		t.Fatalf("the pool is still running after Stop")
	}
}

func TestWorkerPoolDiscardsStaleShares(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.SetShareTarget(maxShareTarget)
	pool.Start()
	defer pool.Stop()

	var mutex sync.Mutex
	var templateIDs []uint64
	pool.Subscribe(func(share *Share) {
		mutex.Lock()
		defer mutex.Unlock()
		templateIDs = append(templateIDs, share.TemplateID)
	})
	sharesOf := func(templateID uint64) int {
		mutex.Lock()
		defer mutex.Unlock()
		count := 0
		for _, id := range templateIDs {
			if id == templateID {
				count++
			}
		}
		return count
	}

	firstID, err := pool.StartMiningOnBlock(testTemplate(unsolvableBits))
	if err != nil {
		t.Fatalf("StartMiningOnBlock: %+v", err)
	}
	waitFor(t, func() bool { return sharesOf(firstID) > 0 })

	secondTemplate := testTemplate(unsolvableBits)
	secondTemplate.Header.Height = 2
	secondID, err := pool.StartMiningOnBlock(secondTemplate)
	if err != nil {
		t.Fatalf("StartMiningOnBlock: %+v", err)
	}
	if secondID <= firstID {
		t.Fatalf("template ids did not increase: %d then %d", firstID, secondID)
	}
	waitFor(t, func() bool { return sharesOf(secondID) > 10 })

	mutex.Lock()
	defer mutex.Unlock()
	seenSecond := false
	for _, id := range templateIDs {
		if id == secondID {
			seenSecond = true
			continue
		}
		if seenSecond {
			t.Fatalf("a share of template %d was delivered after template %d started", id, secondID)
		}
	}
}

func TestWorkerPoolRejectsWorkWhenStopped(t *testing.T) {
	pool := NewWorkerPool(1)
	_, err := pool.StartMiningOnBlock(testTemplate(unsolvableBits))
	if !errors.Is(err, ErrPoolNotRunning) {
		t.Fatalf("expected ErrPoolNotRunning, got %v", err)
	}
}

func TestWorkerPoolDropsShareOfReplacedTemplate(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	var delivered int64
	pool.Subscribe(func(*Share) { atomic.AddInt64(&delivered, 1) })

	firstID, err := pool.StartMiningOnBlock(testTemplate(unsolvableBits))
	if err != nil {
		t.Fatalf("StartMiningOnBlock: %+v", err)
	}
	inFlight := &Share{TemplateID: firstID, Block: testTemplate(unsolvableBits), IsBlock: true}

	_, err = pool.StartMiningOnBlock(testTemplate(unsolvableBits))
	if err != nil {
		t.Fatalf("StartMiningOnBlock: %+v", err)
	}
	pool.deliverShare(inFlight)
	if atomic.LoadInt64(&delivered) != 0 {
		t.Fatalf("a solved block of a replaced template was delivered")
	}
}

func TestWorkerPoolDeliversOneBlockPerTemplate(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	var blocks int64
	pool.Subscribe(func(share *Share) {
		if share.IsBlock {
			atomic.AddInt64(&blocks, 1)
		}
	})

	templateID, err := pool.StartMiningOnBlock(testTemplate(unsolvableBits))
	if err != nil {
		t.Fatalf("StartMiningOnBlock: %+v", err)
	}
	for nonce := uint64(0); nonce < 2; nonce++ {
		block := testTemplate(unsolvableBits)
		block.Header.Nonce = nonce
		pool.deliverShare(&Share{TemplateID: templateID, Block: block, IsBlock: true})
	}
	if atomic.LoadInt64(&blocks) != 1 {
		t.Fatalf("expected exactly one solved block for template %d, got %d", templateID, blocks)
	}

	secondID, err := pool.StartMiningOnBlock(testTemplate(unsolvableBits))
	if err != nil {
		t.Fatalf("StartMiningOnBlock: %+v", err)
	}
	pool.deliverShare(&Share{TemplateID: secondID, Block: testTemplate(unsolvableBits), IsBlock: true})
	if atomic.LoadInt64(&blocks) != 2 {
		t.Fatalf("the solved block of template %d was not delivered", secondID)
	}
}

func TestWorkerPoolTemplateSwitchWaitsForDelivery(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.SetShareTarget(maxShareTarget)
	pool.Start()
	defer pool.Stop()

	inHandler := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var mutex sync.Mutex
	var templateIDs []uint64
	pool.Subscribe(func(share *Share) {
		once.Do(func() {
			close(inHandler)
			<-release
		})
		mutex.Lock()
		defer mutex.Unlock()
		templateIDs = append(templateIDs, share.TemplateID)
	})

	firstID, err := pool.StartMiningOnBlock(testTemplate(unsolvableBits))
	if err != nil {
		t.Fatalf("StartMiningOnBlock: %+v", err)
	}
	<-inHandler

	secondIDs := make(chan uint64, 1)
	go func() {
		secondID, err := pool.StartMiningOnBlock(testTemplate(unsolvableBits))
		if err != nil {
			secondID = 0
		}
		secondIDs <- secondID
	}()

	select {
	case <-secondIDs:
		t.Fatalf("the template switched while a share of template %d was being delivered", firstID)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	var secondID uint64
	select {
	case secondID = <-secondIDs:
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for the template switch")
	}
	if secondID == 0 {
		t.Fatalf("StartMiningOnBlock failed after the delivery finished")
	}
	waitFor(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(templateIDs) > 0 && templateIDs[len(templateIDs)-1] == secondID
	})

	mutex.Lock()
	defer mutex.Unlock()
	if templateIDs[0] != firstID {
		t.Fatalf("expected the first delivered share to belong to template %d, got %d", firstID, templateIDs[0])
	}
	seenSecond := false
	for _, id := range templateIDs {
		if id == secondID {
			seenSecond = true
			continue
		}
		if seenSecond {
			t.Fatalf("a share of template %d was delivered after template %d started", id, secondID)
		}
	}
}
