package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nipopow/nipowd/infrastructure/network/rpcserver"
)

func main() {
	cfg, err := parseConfig()
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error parsing command-line arguments: %s", err))
	}

	if cfg.ListCommands {
		printAllCommands(os.Stdout)
		return
	}

	commandName := cfg.CommandAndParameters[0]
	command, ok := commands[commandName]
	if !ok {
		printAllCommands(os.Stderr)
		printErrorAndExit(fmt.Sprintf("unknown command %s", commandName))
	}

	client, err := rpcserver.Connect(cfg.rpcAddress())
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error connecting to the RPC server: %s", err))
	}
	defer client.Close()

	ctx := context.Background()
	if commandName != eventsCommand {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
		defer cancel()
	}

	err = command.run(ctx, client, os.Stdout)
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error running %s: %s", commandName, err))
	}
}

func printErrorAndExit(message string) {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}
