package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/nipopow/nipowd/domain/miner/remotecontrol"
	"github.com/nipopow/nipowd/infrastructure/network/rpcserver"
	"github.com/pkg/errors"
)

const (
	getStateCommand = "get-state"
	eventsCommand   = "events"
)

type command struct {
	description string
	run         func(ctx context.Context, client *rpcserver.Client, output io.Writer) error
}

var commands = map[string]command{
	remotecontrol.StartWorkCommand: {
		description: "Start the miner",
		run: func(ctx context.Context, client *rpcserver.Client, output io.Writer) error {
			return client.StartWork(ctx)
		},
	},
	remotecontrol.StopWorkCommand: {
		description: "Stop the miner",
		run: func(ctx context.Context, client *rpcserver.Client, output io.Writer) error {
			return client.StopWork(ctx)
		},
	},
	getStateCommand: {
		description: "Print the address, hashrate and working state of the miner",
		run: func(ctx context.Context, client *rpcserver.Client, output io.Writer) error {
			state, err := client.GetState(ctx)
			if err != nil {
				return err
			}
			return printJSON(output, state)
		},
	},
	eventsCommand: {
		description: "Print the miner events as they happen",
		run: func(ctx context.Context, client *rpcserver.Client, output io.Writer) error {
			stream, err := client.Events(ctx)
			if err != nil {
				return err
			}
			for {
				event, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				err = printJSON(output, event)
				if err != nil {
					return err
				}
			}
		},
	},
}

func printJSON(output io.Writer, value interface{}) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = fmt.Fprintln(output, string(encoded))
	return errors.WithStack(err)
}

func printAllCommands(output io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(output, "Commands:")
	for _, name := range names {
		fmt.Fprintf(output, "\t%s: %s\n", name, commands[name].description)
	}
}
