// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/nipopow/nipowd/domain/consensus/model/externalapi"
	"github.com/nipopow/nipowd/infrastructure/logger"
	"github.com/nipopow/nipowd/version"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename   = "nipowd.conf"
	defaultDataDirname      = "data"
	defaultLogLevel         = "info"
	defaultLogDirname       = "logs"
	defaultLogFilename      = "nipowd.log"
	defaultErrLogFilename   = "nipowd_err.log"
	defaultDatabaseCacheMiB = 256
	defaultEventBufferSize  = 100
	minDatabaseCacheMiB     = 8
)

var (
	// DefaultAppDir is the default home directory for nipowd.
	DefaultAppDir = btcutil.AppDataDir("nipowd", false)

	defaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(DefaultAppDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(DefaultAppDir, defaultLogDirname)
)

// Flags defines the configuration options for nipowd.
//
// See LoadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion           bool     `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile            string   `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDir                string   `short:"b" long:"appdir" description:"Directory to store data"`
	LogDir                string   `long:"logdir" description:"Directory to log output."`
	DebugLevel            string   `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Profile               string   `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	DatabaseCacheMiB      int      `long:"dbcache" description:"Size of the database block cache in MiB"`
	Mine                  bool     `long:"mine" description:"Mine blocks using the CPU"`
	MiningAddress         string   `long:"miningaddr" description:"Address the block rewards are paid to -- required if the mine option is set"`
	MinerWorkers          int      `long:"minerworkers" description:"Number of mining goroutines (default: number of CPUs)"`
	TargetBlocksPerSecond float64  `long:"targetblockspersecond" description:"Maximum number of block templates to mine per second -- 0 mines as fast as possible"`
	MinerExtraData        string   `long:"minerextradata" description:"Extra data to put in mined blocks"`
	RPCListeners          []string `long:"rpclisten" description:"Add an interface/port to listen for miner control RPC connections (default port: 16610, testnet: 16710)"`
	DisableRPC            bool     `long:"norpc" description:"Disable the miner control RPC server"`
	RPCEventBufferSize    int      `long:"rpceventbuffer" description:"Number of miner events buffered per RPC event stream"`
	MetricsListen         string   `long:"metricslisten" description:"Interface/port to serve prometheus metrics on -- metrics are not served if empty"`
	NetworkFlags
}

// Config defines the configuration options for nipowd.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	*Flags
	MiningAddress externalapi.Address
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultAppDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func defaultFlags() *Flags {
	return &Flags{
		ConfigFile:         defaultConfigFile,
		DebugLevel:         defaultLogLevel,
		AppDir:             defaultDataDir,
		LogDir:             defaultLogDir,
		DatabaseCacheMiB:   defaultDatabaseCacheMiB,
		MinerWorkers:       runtime.NumCPU(),
		RPCEventBufferSize: defaultEventBufferSize,
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in nipowd functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options. Command line options always take precedence.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	cfgFlags := defaultFlags()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := *cfgFlags
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(cfgFlags, flags.Default)
	cfg := &Config{
		Flags: cfgFlags,
	}
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %s\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); !ok || flagsErr.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, err
	}

	err = cfg.ResolveNetwork(parser)
	if err != nil {
		return nil, err
	}

	funcName := "loadConfig"

	// Append the network type to the data directory so it is "namespaced"
	// per network. All data is specific to a network, so namespacing the
	// data directory means each individual piece of serialized data does
	// not have to worry about changing names per network and such.
	cfg.AppDir = cleanAndExpandPath(cfg.AppDir)
	cfg.AppDir = filepath.Join(cfg.AppDir, cfg.NetParams().Name)

	// Append the network type to the log directory so it is "namespaced"
	// per network in the same fashion as the data directory.
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.NetParams().Name)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	// Parse, validate, and set debug log level(s).
	if err := logger.ParseAndSetLogLevels(cfg.DebugLevel); err != nil {
		err := errors.Errorf("%s: %s", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	// Validate profile port number
	if cfg.Profile != "" {
		profilePort, err := strconv.Atoi(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			str := "%s: The profile port must be between 1024 and 65535"
			err := errors.Errorf(str, funcName)
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
	}

	if cfg.DatabaseCacheMiB < minDatabaseCacheMiB {
		str := "%s: The dbcache option may not be less than %d MiB -- parsed [%d]"
		err := errors.Errorf(str, funcName, minDatabaseCacheMiB, cfg.DatabaseCacheMiB)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	if cfg.RPCEventBufferSize < 1 {
		str := "%s: The rpceventbuffer option must be positive -- parsed [%d]"
		err := errors.Errorf(str, funcName, cfg.RPCEventBufferSize)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	if cfg.MinerWorkers < 1 {
		str := "%s: The minerworkers option must be positive -- parsed [%d]"
		err := errors.Errorf(str, funcName, cfg.MinerWorkers)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	if cfg.TargetBlocksPerSecond < 0 {
		str := "%s: The targetblockspersecond option may not be negative -- parsed [%f]"
		err := errors.Errorf(str, funcName, cfg.TargetBlocksPerSecond)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	maxExtraDataSize := cfg.NetParams().MaxExtraDataSize
	if len(cfg.MinerExtraData) > maxExtraDataSize {
		str := "%s: The minerextradata option may not be longer than %d bytes"
		err := errors.Errorf(str, funcName, maxExtraDataSize)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	// Check mining address is valid and saved parsed version
	if cfg.Flags.MiningAddress != "" {
		cfg.MiningAddress, err = externalapi.DecodeAddress(cfg.Flags.MiningAddress, cfg.NetParams().Prefix)
		if err != nil {
			str := "%s: mining address '%s' failed to decode: %s"
			err := errors.Errorf(str, funcName, cfg.Flags.MiningAddress, err)
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
	}

	// Ensure there is an address to mine to when the mine flag is set
	if cfg.Mine && cfg.Flags.MiningAddress == "" {
		str := "%s: the mine flag is set, but there is no address specified to send the block rewards to"
		err := errors.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	// Add default port to all rpc listener addresses if needed
	if !cfg.DisableRPC {
		if len(cfg.RPCListeners) == 0 {
			cfg.RPCListeners = []string{"localhost"}
		}
		cfg.RPCListeners = normalizeAddresses(cfg.RPCListeners, cfg.NetParams().RPCPort)
	}

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		log.Warnf("%s", configFileError)
	}

	return cfg, nil
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// normalizeAddresses returns a new slice with all the passed peer addresses
// normalized with the given default port, and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	seen := make(map[string]struct{}, len(addrs))
	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		addr = normalizeAddress(addr, defaultPort)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		result = append(result, addr)
	}
	return result
}

// LogFile returns the path of the log file that receives every log level
func (cfg *Config) LogFile() string {
	return filepath.Join(cfg.LogDir, defaultLogFilename)
}

// ErrLogFile returns the path of the log file that receives warnings and errors
func (cfg *Config) ErrLogFile() string {
	return filepath.Join(cfg.LogDir, defaultErrLogFilename)
}
