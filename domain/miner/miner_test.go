package miner_test

import (
	"sync"
	"testing"
	"time"

	"github.com/nipopow/nipowd/domain/chainconfig"
	"github.com/nipopow/nipowd/domain/consensus"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/observable"
	"github.com/nipopow/nipowd/domain/miner"
)

type eventRecorder struct {
	sync.Mutex
	events []*miner.Event
}

func (r *eventRecorder) record(event *miner.Event) {
	r.Lock()
	defer r.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count(eventName string) int {
	r.Lock()
	defer r.Unlock()
	count := 0
	for _, event := range r.events {
		if event.Name == eventName {
			count++
		}
	}
	return count
}

func TestMinerExtendsTheChain(t *testing.T) {
	params := chainconfig.SimnetParams
	params.Genesis = params.Genesis.Clone()

	tc, teardown, err := consensus.NewFactory().NewTestConsensus(&params, "TestMinerExtendsTheChain")
	if err != nil {
		t.Fatalf("Error setting up consensus: %+v", err)
	}
	defer teardown(false)

	minerAddress := tc.Users()[1].Address
	m := miner.New(tc, miner.Config{
		Address:          minerAddress,
		ExtraData:        []byte("test miner"),
		NumWorkers:       2,
		HashrateInterval: 50 * time.Millisecond,
	})
	recorder := &eventRecorder{}
	m.Subscribe(observable.Wildcard, recorder.record)

	m.StartWork()
	if !m.IsWorking() {
		t.Fatalf("Expected the miner to be working")
	}

	deadline := time.Now().Add(30 * time.Second)
	for recorder.count(miner.BlockMinedEventName) < 3 || recorder.count(miner.HashrateChangedEventName) < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for mined blocks, got %d", recorder.count(miner.BlockMinedEventName))
		}
		time.Sleep(10 * time.Millisecond)
	}

	m.StopWork()
	if m.IsWorking() {
		t.Fatalf("Expected the miner to have stopped")
	}
	if recorder.count(miner.StartedEventName) != 1 || recorder.count(miner.StoppedEventName) != 1 {
		t.Fatalf("Expected a single started and a single stopped event")
	}

	headHeight := tc.HeadHeight()
	minedBlocks := recorder.count(miner.BlockMinedEventName)
	if headHeight < uint64(minedBlocks) {
		t.Fatalf("Mined %d blocks but the head is at height %d", minedBlocks, headHeight)
	}
	head, _, err := tc.Head()
	if err != nil {
		t.Fatalf("Head: %+v", err)
	}
	if head.Body.MinerAddress != minerAddress || string(head.Body.ExtraData) != "test miner" {
		t.Fatalf("The head was not mined by the miner")
	}
	account, err := tc.GetAccount(minerAddress)
	if err != nil {
		t.Fatalf("GetAccount: %+v", err)
	}
	if account.Balance == 0 {
		t.Fatalf("The miner was not rewarded")
	}

	time.Sleep(200 * time.Millisecond)
	if tc.HeadHeight() != headHeight || recorder.count(miner.BlockMinedEventName) != minedBlocks {
		t.Fatalf("A block was mined after StopWork returned")
	}
}

func TestMinerFollowsForeignBlocks(t *testing.T) {
	params := chainconfig.SimnetParams
	params.Genesis = params.Genesis.Clone()

	tc, teardown, err := consensus.NewFactory().NewTestConsensus(&params, "TestMinerFollowsForeignBlocks")
	if err != nil {
		t.Fatalf("Error setting up consensus: %+v", err)
	}
	defer teardown(false)

	m := miner.New(tc, miner.Config{
		Address:               tc.Users()[0].Address,
		NumWorkers:            1,
		TargetBlocksPerSecond: 20,
	})
	var mutex sync.Mutex
	var minedOn []*externalapi.DomainHash
	m.Subscribe(miner.BlockMinedEventName, func(event *miner.Event) {
		mutex.Lock()
		defer mutex.Unlock()
		minedOn = append(minedOn, event.Block.Header.PrevHash)
	})

	m.StartWork()
	defer m.StopWork()

	// Blocks from elsewhere move the head under the miner
	err = tc.ExtendChain(3)
	if err != nil {
		t.Fatalf("ExtendChain: %+v", err)
	}
	foreignHead := tc.HeadHash()

	deadline := time.Now().Add(30 * time.Second)
	for {
		mutex.Lock()
		found := false
		for _, prevHash := range minedOn {
			if prevHash.Equal(foreignHead) {
				found = true
			}
		}
		mutex.Unlock()
		if found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("The miner never mined on top of the foreign head")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
