package rpcserver

import (
	"github.com/nipopow/nipowd/domain/miner"
	"github.com/nipopow/nipowd/domain/miner/remotecontrol"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// State is the miner state as reported over RPC
type State struct {
	Address  string
	Hashrate float64
	Working  bool
}

// Event is a miner event as delivered over RPC. BlockHash, Height and
// Result are set for block-mined events.
type Event struct {
	Name      string
	Hashrate  float64
	BlockHash string
	Height    uint64
	Result    string
}

func stateToMessage(state remotecontrol.State, addressPrefix string) (*structpb.Struct, error) {
	address, err := state.Address.Encode(addressPrefix)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]interface{}{
		"address":  address,
		"hashrate": state.Hashrate,
		"working":  state.Working,
	})
}

func stateFromMessage(message *structpb.Struct) *State {
	fields := message.GetFields()
	return &State{
		Address:  fields["address"].GetStringValue(),
		Hashrate: fields["hashrate"].GetNumberValue(),
		Working:  fields["working"].GetBoolValue(),
	}
}

func eventToMessage(event *miner.Event) (*structpb.Struct, error) {
	values := map[string]interface{}{
		"name":     event.Name,
		"hashrate": event.Hashrate,
	}
	if event.Name == miner.BlockMinedEventName {
		if event.Block == nil || event.BlockHash == nil {
			return nil, errors.Errorf("%s event without a block", event.Name)
		}
		values["blockHash"] = event.BlockHash.String()
		values["height"] = float64(event.Block.Header.Height)
		values["result"] = event.Result.String()
	}
	return structpb.NewStruct(values)
}

func eventFromMessage(message *structpb.Struct) *Event {
	fields := message.GetFields()
	return &Event{
		Name:      fields["name"].GetStringValue(),
		Hashrate:  fields["hashrate"].GetNumberValue(),
		BlockHash: fields["blockHash"].GetStringValue(),
		Height:    uint64(fields["height"].GetNumberValue()),
		Result:    fields["result"].GetStringValue(),
	}
}
