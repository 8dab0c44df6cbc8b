package testutils

import (
	"testing"

	"github.com/nipopow/nipowd/domain/chainconfig"
)

// ForAllNets runs the passed testFunc with all available networks.
// If skipPow is set, proof of work is not checked on any of them.
// Every run gets its own copy of the network parameters, so tests
// may modify them freely.
func ForAllNets(t *testing.T, skipPow bool, testFunc func(*testing.T, *chainconfig.Params)) {
	allParams := []chainconfig.Params{
		chainconfig.MainnetParams,
		chainconfig.TestnetParams,
		chainconfig.SimnetParams,
		chainconfig.DevnetParams,
	}

	for _, params := range allParams {
		params := params
		params.Genesis = params.Genesis.Clone()
		t.Run(params.Name, func(t *testing.T) {
			t.Parallel()
			params.SkipProofOfWork = skipPow
			t.Logf("Running test for %s", params.Name)
			testFunc(t, &params)
		})
	}
}
