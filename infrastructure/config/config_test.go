package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/nipopow/nipowd/domain/chainconfig"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
)

func writeTestFile(t *testing.T, dir string, name string, content string) string {
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(content), 0600)
	if err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := loadConfig([]string{
		"-C", filepath.Join(tmpDir, "missing.conf"),
		"-b", tmpDir,
		"--logdir", tmpDir,
		"--simnet",
	})
	if err != nil {
		t.Fatalf("loadConfig: %+v", err)
	}

	if cfg.NetParams().Name != chainconfig.SimnetParams.Name {
		t.Fatalf("Expected simnet, got %s", cfg.NetParams().Name)
	}
	if cfg.AppDir != filepath.Join(tmpDir, "simnet") {
		t.Fatalf("The app dir is not namespaced by network: %s", cfg.AppDir)
	}
	if cfg.LogFile() != filepath.Join(tmpDir, "simnet", defaultLogFilename) {
		t.Fatalf("Unexpected log file %s", cfg.LogFile())
	}
	if len(cfg.RPCListeners) != 1 || cfg.RPCListeners[0] != "localhost:"+chainconfig.SimnetParams.RPCPort {
		t.Fatalf("Unexpected default RPC listeners %v", cfg.RPCListeners)
	}
	if cfg.MinerWorkers != runtime.NumCPU() {
		t.Fatalf("Expected %d miner workers by default, got %d", runtime.NumCPU(), cfg.MinerWorkers)
	}
	if cfg.Mine || cfg.MetricsListen != "" {
		t.Fatalf("Mining and metrics must be disabled by default")
	}
}

func TestLoadConfigFileAndCommandLine(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := writeTestFile(t, tmpDir, "nipowd.conf", "[Application Options]\n"+
		"testnet=1\n"+
		"minerworkers=3\n"+
		"metricslisten=localhost:9100\n"+
		"rpclisten=127.0.0.1\n"+
		"rpclisten=127.0.0.1:16710\n")

	cfg, err := loadConfig([]string{"-C", configFile, "-b", tmpDir, "--logdir", tmpDir, "--minerworkers=5"})
	if err != nil {
		t.Fatalf("loadConfig: %+v", err)
	}

	if cfg.NetParams().Name != chainconfig.TestnetParams.Name {
		t.Fatalf("Expected the network of the config file, got %s", cfg.NetParams().Name)
	}
	if cfg.MinerWorkers != 5 {
		t.Fatalf("Expected the command line to take precedence, got %d miner workers", cfg.MinerWorkers)
	}
	if cfg.MetricsListen != "localhost:9100" {
		t.Fatalf("Unexpected metrics listen address %s", cfg.MetricsListen)
	}
	if len(cfg.RPCListeners) != 1 || cfg.RPCListeners[0] != "127.0.0.1:16710" {
		t.Fatalf("Expected the RPC listeners to be normalized and deduplicated, got %v", cfg.RPCListeners)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()
	base := []string{"-C", filepath.Join(tmpDir, "missing.conf"), "-b", tmpDir, "--logdir", tmpDir}

	tests := []struct {
		name string
		args []string
	}{
		{name: "multiple networks", args: []string{"--testnet", "--simnet"}},
		{name: "mine without address", args: []string{"--simnet", "--mine"}},
		{name: "address of another network", args: []string{"--simnet", "--miningaddr", mustEncode(t, "nipowtest")}},
		{name: "bad profile port", args: []string{"--simnet", "--profile", "80"}},
		{name: "small database cache", args: []string{"--simnet", "--dbcache", "1"}},
		{name: "no miner workers", args: []string{"--simnet", "--minerworkers", "0"}},
		{name: "bad debug level", args: []string{"--simnet", "-d", "loud"}},
		{name: "override on simnet", args: []string{"--simnet", "--override-params-file", "params.json"}},
	}

	for _, test := range tests {
		_, err := loadConfig(append(append([]string{}, base...), test.args...))
		if err == nil {
			t.Fatalf("%s: expected an error", test.name)
		}
	}
}

func mustEncode(t *testing.T, prefix string) string {
	encoded, err := externalapi.Address{1, 2, 3}.Encode(prefix)
	if err != nil {
		t.Fatalf("Encode: %+v", err)
	}
	return encoded
}

func TestLoadConfigMiningAddress(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := loadConfig([]string{
		"-C", filepath.Join(tmpDir, "missing.conf"),
		"-b", tmpDir,
		"--logdir", tmpDir,
		"--simnet",
		"--mine",
		"--miningaddr", mustEncode(t, chainconfig.SimnetParams.Prefix),
	})
	if err != nil {
		t.Fatalf("loadConfig: %+v", err)
	}
	if cfg.MiningAddress != (externalapi.Address{1, 2, 3}) {
		t.Fatalf("Unexpected mining address %s", cfg.MiningAddress)
	}
}

func TestOverrideParams(t *testing.T) {
	tmpDir := t.TempDir()
	paramsFile := writeTestFile(t, tmpDir, "params.json", `{
		"targetTimePerBlockInMilliSeconds": 2000,
		"skipProofOfWork": true,
		"maxOrphanBlocks": 7,
		"orphanExpirationInSeconds": 30
	}`)

	networkFlags := &NetworkFlags{Devnet: true, OverrideParamsFile: paramsFile}
	err := networkFlags.ResolveNetwork(nil)
	if err != nil {
		t.Fatalf("ResolveNetwork: %+v", err)
	}
	params := networkFlags.NetParams()
	if params.TargetTimePerBlock != 2*time.Second || !params.SkipProofOfWork ||
		params.MaxOrphanBlocks != 7 || params.OrphanExpiration != 30*time.Second {
		t.Fatalf("The params were not overridden: %+v", params)
	}
	if chainconfig.DevnetParams.SkipProofOfWork || chainconfig.DevnetParams.TargetTimePerBlock == 2*time.Second {
		t.Fatalf("Overriding the params changed the package level devnet params")
	}

	unknownFieldFile := writeTestFile(t, tmpDir, "unknown.json", `{"k": 18}`)
	networkFlags = &NetworkFlags{Devnet: true, OverrideParamsFile: unknownFieldFile}
	err = networkFlags.ResolveNetwork(nil)
	if err == nil {
		t.Fatalf("Expected an error for an unknown param")
	}

	lowPowMaxFile := writeTestFile(t, tmpDir, "powmax.json", `{"powMax": "ff"}`)
	networkFlags = &NetworkFlags{Devnet: true, OverrideParamsFile: lowPowMaxFile}
	err = networkFlags.ResolveNetwork(nil)
	if err == nil {
		t.Fatalf("Expected an error for a powMax below the genesis target")
	}

	invalidFile := writeTestFile(t, tmpDir, "invalid.json", `{"maxOrphanBlocks": 0}`)
	networkFlags = &NetworkFlags{Devnet: true, OverrideParamsFile: invalidFile}
	err = networkFlags.ResolveNetwork(nil)
	if err == nil {
		t.Fatalf("Expected the overridden params to be validated")
	}
}
