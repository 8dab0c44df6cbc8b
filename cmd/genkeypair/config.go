package main

import (
	"github.com/jessevdk/go-flags"
	"github.com/nipopow/nipowd/infrastructure/config"
)

type configFlags struct {
	Mnemonic   string `long:"mnemonic" description:"Derive the key pair from this bip39 mnemonic instead of generating a new one"`
	Passphrase string `long:"passphrase" default-mask:"-" description:"Optional bip39 passphrase"`
	config.NetworkFlags
}

func parseConfig() (*configFlags, error) {
	cfg := &configFlags{}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	err = cfg.ResolveNetwork(parser)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
