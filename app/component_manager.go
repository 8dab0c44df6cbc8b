package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nipopow/nipowd/domain/consensus"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/domain/consensus/utils/observable"
	"github.com/nipopow/nipowd/domain/miner"
	"github.com/nipopow/nipowd/domain/miner/remotecontrol"
	"github.com/nipopow/nipowd/infrastructure/config"
	infrastructuredatabase "github.com/nipopow/nipowd/infrastructure/db/database"
	"github.com/nipopow/nipowd/infrastructure/metrics"
	"github.com/nipopow/nipowd/infrastructure/network/rpcserver"
	"github.com/nipopow/nipowd/util/panics"
)

// ComponentManager is a wrapper for all the nipowd services
type ComponentManager struct {
	cfg           *config.Config
	consensus     externalapi.Consensus
	miner         *miner.Miner
	controller    *remotecontrol.Controller
	rpcServer     *rpcserver.Server
	metricsServer *metrics.Server

	stopController context.CancelFunc
	controllerDone chan struct{}

	started, shutdown int32
}

// Start launches all the nipowd services.
func (a *ComponentManager) Start() {
	// Already started?
	if atomic.AddInt32(&a.started, 1) != 1 {
		return
	}

	log.Trace("Starting nipowd")

	if a.metricsServer != nil {
		err := a.metricsServer.Start()
		if err != nil {
			panics.Exit(log, fmt.Sprintf("Error starting the metrics server: %+v", err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.stopController = cancel
	spawn("ComponentManager.controller.Run", func() {
		defer close(a.controllerDone)
		a.controller.Run(ctx)
	})

	if a.rpcServer != nil {
		err := a.rpcServer.Start()
		if err != nil {
			panics.Exit(log, fmt.Sprintf("Error starting the RPC server: %+v", err))
		}
	}

	if a.cfg.Mine {
		a.miner.StartWork()
	}
}

// Stop gracefully shuts down all the nipowd services.
func (a *ComponentManager) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&a.shutdown, 1) != 1 {
		log.Infof("nipowd is already in the process of shutting down")
		return
	}

	log.Warnf("nipowd shutting down")

	if a.rpcServer != nil {
		err := a.rpcServer.Stop()
		if err != nil {
			log.Errorf("Error stopping the RPC server: %+v", err)
		}
	}

	// Stopping the controller stops the miner
	if a.stopController != nil {
		a.stopController()
		<-a.controllerDone
	}
	a.miner.StopWork()

	if a.metricsServer != nil {
		err := a.metricsServer.Stop()
		if err != nil {
			log.Errorf("Error stopping the metrics server: %+v", err)
		}
	}
}

// NewComponentManager returns a new ComponentManager instance.
// Use Start() to begin all services within this ComponentManager
func NewComponentManager(cfg *config.Config, db infrastructuredatabase.Database) (*ComponentManager, error) {
	params := cfg.NetParams()

	chain, err := consensus.NewFactory().NewConsensus(params, db)
	if err != nil {
		return nil, err
	}
	chain = metrics.InstrumentConsensus(chain, params.Name)
	chain.Subscribe(externalapi.HeadChangedEventName, logHeadChanged)

	if cfg.MiningAddress == (externalapi.Address{}) {
		log.Warnf("No mining address is set. Blocks mined on request of the RPC server " +
			"pay their rewards to the zero address")
	}
	blockMiner := miner.New(chain, miner.Config{
		Address:               cfg.MiningAddress,
		ExtraData:             []byte(cfg.MinerExtraData),
		NumWorkers:            cfg.MinerWorkers,
		TargetBlocksPerSecond: cfg.TargetBlocksPerSecond,
	})
	minerMetrics := metrics.NewMiner(params.Name)
	blockMiner.Subscribe(observable.Wildcard, func(event *miner.Event) {
		minerMetrics.Observe(event)
		logMinerEvent(event)
	})

	componentManager := &ComponentManager{
		cfg:            cfg,
		consensus:      chain,
		miner:          blockMiner,
		controller:     remotecontrol.New(blockMiner, cfg.RPCEventBufferSize),
		controllerDone: make(chan struct{}),
	}

	if !cfg.DisableRPC {
		componentManager.rpcServer = rpcserver.New(componentManager.controller, params.Prefix, cfg.RPCListeners)
	}
	if cfg.MetricsListen != "" {
		componentManager.metricsServer = metrics.NewServer(cfg.MetricsListen)
	}

	return componentManager, nil
}

func logHeadChanged(event externalapi.ChainEvent) {
	headChanged := event.(*externalapi.HeadChangedEvent)
	if headChanged.Rebranching {
		log.Infof("Rebranched to head %s at height %d", headChanged.Hash, headChanged.Block.Header.Height)
		return
	}
	log.Debugf("New head %s at height %d", headChanged.Hash, headChanged.Block.Header.Height)
}

func logMinerEvent(event *miner.Event) {
	switch event.Name {
	case miner.StartedEventName:
		log.Infof("Miner started")
	case miner.StoppedEventName:
		log.Infof("Miner stopped")
	case miner.HashrateChangedEventName:
		log.Debugf("Miner hashrate: %.2f H/s", event.Hashrate)
	case miner.BlockMinedEventName:
		log.Infof("Mined block %s at height %d (%s)", event.BlockHash, event.Block.Header.Height, event.Result)
	}
}
