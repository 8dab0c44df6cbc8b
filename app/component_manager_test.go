package app

import (
	"context"
	"testing"
	"time"

	"github.com/nipopow/nipowd/domain/miner/remotecontrol"
	"github.com/nipopow/nipowd/infrastructure/config"
	"github.com/nipopow/nipowd/infrastructure/db/database/ldb"
)

func TestComponentManagerMinesOnRequest(t *testing.T) {
	flags := &config.Flags{
		MinerWorkers:       2,
		RPCEventBufferSize: 10,
		DisableRPC:         true,
		NetworkFlags:       config.NetworkFlags{Simnet: true},
	}
	err := flags.ResolveNetwork(nil)
	if err != nil {
		t.Fatalf("ResolveNetwork: %+v", err)
	}
	cfg := &config.Config{Flags: flags}
	cfg.MiningAddress[0] = 1

	db, err := ldb.NewLevelDB(t.TempDir(), 8)
	if err != nil {
		t.Fatalf("NewLevelDB: %+v", err)
	}
	defer db.Close()

	componentManager, err := NewComponentManager(cfg, db)
	if err != nil {
		t.Fatalf("NewComponentManager: %+v", err)
	}
	componentManager.Start()
	stopped := false
	defer func() {
		if !stopped {
			componentManager.Stop()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for {
		err = componentManager.controller.Execute(ctx, remotecontrol.StartWorkCommand)
		if err == nil {
			break
		}
		if err != remotecontrol.ErrNotRunning {
			t.Fatalf("Execute: %+v", err)
		}
		time.Sleep(time.Millisecond)
	}

	for componentManager.consensus.HeadHeight() < 2 {
		if ctx.Err() != nil {
			t.Fatalf("Timed out waiting for mined blocks")
		}
		time.Sleep(10 * time.Millisecond)
	}

	account, err := componentManager.consensus.GetAccount(cfg.MiningAddress)
	if err != nil {
		t.Fatalf("GetAccount: %+v", err)
	}
	if account.Balance == 0 {
		t.Fatalf("The mining address was not rewarded")
	}

	componentManager.Stop()
	stopped = true
	if componentManager.miner.IsWorking() {
		t.Fatalf("Expected the miner to stop with the component manager")
	}
}
