package main

import (
	"net"

	"github.com/jessevdk/go-flags"
	"github.com/nipopow/nipowd/infrastructure/config"
	"github.com/pkg/errors"
)

var (
	defaultRPCServer        = "localhost"
	defaultTimeout   uint64 = 30
)

type configFlags struct {
	RPCServer            string `short:"s" long:"rpcserver" description:"RPC server to connect to"`
	Timeout              uint64 `short:"t" long:"timeout" description:"Timeout for the request (in seconds) -- ignored by the events command"`
	ListCommands         bool   `short:"l" long:"list-commands" description:"List all commands and exit"`
	CommandAndParameters []string
	config.NetworkFlags
}

func parseConfig() (*configFlags, error) {
	cfg := &configFlags{
		RPCServer: defaultRPCServer,
		Timeout:   defaultTimeout,
	}
	parser := flags.NewParser(cfg, flags.HelpFlag)
	parser.Usage = "nipowctl [OPTIONS] [COMMAND]" +
		"\n\nUse `nipowctl --list-commands` to get a list of all commands"
	remainingArgs, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	if cfg.ListCommands {
		return cfg, nil
	}

	err = cfg.ResolveNetwork(parser)
	if err != nil {
		return nil, err
	}

	cfg.CommandAndParameters = remainingArgs
	if len(cfg.CommandAndParameters) != 1 {
		return nil, errors.New("Exactly one command must be specified")
	}

	return cfg, nil
}

// rpcAddress returns the RPC server address with the default port of the
// active network appended if it has none
func (cfg *configFlags) rpcAddress() string {
	_, _, err := net.SplitHostPort(cfg.RPCServer)
	if err != nil {
		return net.JoinHostPort(cfg.RPCServer, cfg.NetParams().RPCPort)
	}
	return cfg.RPCServer
}
