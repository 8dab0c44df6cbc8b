package rpcserver

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a client of the MinerControl service
type Client struct {
	connection *grpc.ClientConn
}

// Connect creates a client of the server at address. The connection is
// established lazily on the first call.
func Connect(address string, options ...grpc.DialOption) (*Client, error) {
	options = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, options...)
	connection, err := grpc.NewClient(address, options...)
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to %s", address)
	}
	return &Client{connection: connection}, nil
}

// Close closes the connection to the server
func (c *Client) Close() error {
	return c.connection.Close()
}

// StartWork starts the remote miner
func (c *Client) StartWork(ctx context.Context) error {
	return c.connection.Invoke(ctx, fullMethodName(StartWorkMethod), &emptypb.Empty{}, &emptypb.Empty{})
}

// StopWork stops the remote miner
func (c *Client) StopWork(ctx context.Context) error {
	return c.connection.Invoke(ctx, fullMethodName(StopWorkMethod), &emptypb.Empty{}, &emptypb.Empty{})
}

// GetState returns the state of the remote miner
func (c *Client) GetState(ctx context.Context) (*State, error) {
	response := &structpb.Struct{}
	err := c.connection.Invoke(ctx, fullMethodName(GetStateMethod), &emptypb.Empty{}, response)
	if err != nil {
		return nil, err
	}
	return stateFromMessage(response), nil
}

// EventStream delivers the events of the remote miner
type EventStream struct {
	stream grpc.ClientStream
}

// Events subscribes to the events of the remote miner until ctx ends
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	stream, err := c.connection.NewStream(ctx, &eventsStreamDesc, fullMethodName(EventsMethod))
	if err != nil {
		return nil, err
	}
	err = stream.SendMsg(&emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	err = stream.CloseSend()
	if err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}

// Recv blocks until the next event arrives. It returns io.EOF once the
// server ended the stream.
func (s *EventStream) Recv() (*Event, error) {
	message := &structpb.Struct{}
	err := s.stream.RecvMsg(message)
	if err != nil {
		return nil, err
	}
	return eventFromMessage(message), nil
}
