package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/nipopow/nipowd/domain/chainconfig"
	"github.com/nipopow/nipowd/domain/consensus/utils/difficulty"
	"github.com/pkg/errors"
)

// NetworkFlags holds the network configuration, that is which network is selected.
type NetworkFlags struct {
	Testnet            bool   `long:"testnet" description:"Use the test network"`
	Simnet             bool   `long:"simnet" description:"Use the simulation test network"`
	Devnet             bool   `long:"devnet" description:"Use the development test network"`
	OverrideParamsFile string `long:"override-params-file" description:"Overrides chain params (allowed only on devnet)"`

	ActiveNetParams *chainconfig.Params
}

type overrideParamsConfig struct {
	PowMax                           *string `json:"powMax"`
	SkipProofOfWork                  *bool   `json:"skipProofOfWork"`
	TargetTimePerBlockInMilliSeconds *int64  `json:"targetTimePerBlockInMilliSeconds"`
	DifficultyAdjustmentWindowSize   *uint64 `json:"difficultyAdjustmentWindowSize"`
	MaxDifficultyAdjustmentFactor    *uint64 `json:"maxDifficultyAdjustmentFactor"`
	PastMedianTimeWindow             *int    `json:"pastMedianTimeWindow"`
	MaxTimestampDriftInMilliSeconds  *int64  `json:"maxTimestampDriftInMilliSeconds"`
	MaxBlockSize                     *int    `json:"maxBlockSize"`
	MaxExtraDataSize                 *int    `json:"maxExtraDataSize"`
	TransactionValidityWindow        *uint64 `json:"transactionValidityWindow"`
	BaseSubsidy                      *uint64 `json:"baseSubsidy"`
	SubsidyReductionInterval         *uint64 `json:"subsidyReductionInterval"`
	MaxOrphanBlocks                  *int    `json:"maxOrphanBlocks"`
	OrphanExpirationInSeconds        *int64  `json:"orphanExpirationInSeconds"`
	KnownInvalidCacheSize            *int    `json:"knownInvalidCacheSize"`
}

// ResolveNetwork parses the network command line argument and sets NetParams accordingly.
// It returns error if more than one network was selected, nil otherwise.
func (networkFlags *NetworkFlags) ResolveNetwork(parser *flags.Parser) error {
	// Default net is main net
	selected := chainconfig.MainnetParams
	// Multiple networks can't be selected simultaneously.
	numNets := 0
	if networkFlags.Testnet {
		numNets++
		selected = chainconfig.TestnetParams
	}
	if networkFlags.Simnet {
		numNets++
		selected = chainconfig.SimnetParams
	}
	if networkFlags.Devnet {
		numNets++
		selected = chainconfig.DevnetParams
	}
	if numNets > 1 {
		message := "Multiple networks parameters (testnet, simnet, devnet, etc.) cannot be used " +
			"together. Please choose only one network"
		err := errors.New(message)
		fmt.Fprintln(os.Stderr, err)
		if parser != nil {
			parser.WriteHelp(os.Stderr)
		}
		return err
	}

	// Overrides must not leak into the package level params
	selected.Genesis = selected.Genesis.Clone()
	networkFlags.ActiveNetParams = &selected

	err := networkFlags.overrideParams()
	if err != nil {
		return err
	}

	return networkFlags.ActiveNetParams.Validate()
}

// NetParams returns the ActiveNetParams
func (networkFlags *NetworkFlags) NetParams() *chainconfig.Params {
	return networkFlags.ActiveNetParams
}

func (networkFlags *NetworkFlags) overrideParams() error {
	if networkFlags.OverrideParamsFile == "" {
		return nil
	}

	if !networkFlags.Devnet {
		return errors.Errorf("override-params-file is allowed only when using devnet")
	}

	overrideParamsFile, err := os.Open(networkFlags.OverrideParamsFile)
	if err != nil {
		return errors.WithStack(err)
	}
	defer overrideParamsFile.Close()

	decoder := json.NewDecoder(overrideParamsFile)
	decoder.DisallowUnknownFields()
	config := &overrideParamsConfig{}
	err = decoder.Decode(config)
	if err != nil {
		return errors.Wrapf(err, "couldn't parse %s", networkFlags.OverrideParamsFile)
	}

	params := networkFlags.ActiveNetParams

	if config.PowMax != nil {
		powMax, ok := big.NewInt(0).SetString(*config.PowMax, 16)
		if !ok {
			return errors.Errorf("couldn't convert %s to big int", *config.PowMax)
		}

		genesisTarget := difficulty.CompactToBig(params.Genesis.Bits)
		if powMax.Cmp(genesisTarget) < 0 {
			return errors.Errorf("powMax (%s) is smaller than genesis's target (%s)", powMax.Text(16),
				genesisTarget.Text(16))
		}
		params.PowMax = powMax
	}

	if config.SkipProofOfWork != nil {
		params.SkipProofOfWork = *config.SkipProofOfWork
	}

	if config.TargetTimePerBlockInMilliSeconds != nil {
		params.TargetTimePerBlock = time.Duration(*config.TargetTimePerBlockInMilliSeconds) * time.Millisecond
	}

	if config.DifficultyAdjustmentWindowSize != nil {
		params.DifficultyAdjustmentWindowSize = *config.DifficultyAdjustmentWindowSize
	}

	if config.MaxDifficultyAdjustmentFactor != nil {
		params.MaxDifficultyAdjustmentFactor = *config.MaxDifficultyAdjustmentFactor
	}

	if config.PastMedianTimeWindow != nil {
		params.PastMedianTimeWindow = *config.PastMedianTimeWindow
	}

	if config.MaxTimestampDriftInMilliSeconds != nil {
		params.MaxTimestampDrift = time.Duration(*config.MaxTimestampDriftInMilliSeconds) * time.Millisecond
	}

	if config.MaxBlockSize != nil {
		params.MaxBlockSize = *config.MaxBlockSize
	}

	if config.MaxExtraDataSize != nil {
		params.MaxExtraDataSize = *config.MaxExtraDataSize
	}

	if config.TransactionValidityWindow != nil {
		params.TransactionValidityWindow = *config.TransactionValidityWindow
	}

	if config.BaseSubsidy != nil {
		params.BaseSubsidy = *config.BaseSubsidy
	}

	if config.SubsidyReductionInterval != nil {
		params.SubsidyReductionInterval = *config.SubsidyReductionInterval
	}

	if config.MaxOrphanBlocks != nil {
		params.MaxOrphanBlocks = *config.MaxOrphanBlocks
	}

	if config.OrphanExpirationInSeconds != nil {
		params.OrphanExpiration = time.Duration(*config.OrphanExpirationInSeconds) * time.Second
	}

	if config.KnownInvalidCacheSize != nil {
		params.KnownInvalidCacheSize = *config.KnownInvalidCacheSize
	}

	return nil
}
