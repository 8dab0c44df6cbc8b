package rpcserver

import (
	"context"
	"fmt"
	"net"
	"path"
	"time"

	"github.com/nipopow/nipowd/domain/miner/remotecontrol"
	"github.com/nipopow/nipowd/infrastructure/metrics"
	"github.com/nipopow/nipowd/util/panics"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server exposes a remotecontrol.Controller over gRPC
type Server struct {
	controller         *remotecontrol.Controller
	addressPrefix      string
	listeningAddresses []string
	server             *grpc.Server
	metrics            *metrics.RPCServer
}

// New creates a server for controller. Miner addresses are reported
// encoded under addressPrefix.
func New(controller *remotecontrol.Controller, addressPrefix string, listeningAddresses []string) *Server {
	s := &Server{
		controller:         controller,
		addressPrefix:      addressPrefix,
		listeningAddresses: listeningAddresses,
		metrics:            metrics.NewRPCServer(),
	}
	s.server = grpc.NewServer(
		grpc.UnaryInterceptor(s.unaryInterceptor),
		grpc.StreamInterceptor(s.streamInterceptor),
	)
	s.server.RegisterService(&minerControlServiceDesc, &minerControlService{server: s})
	return s
}

// Start listens on all the listening addresses
func (s *Server) Start() error {
	for _, listenAddress := range s.listeningAddresses {
		err := s.listenOn(listenAddress)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) listenOn(listenAddress string) error {
	listener, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return errors.Wrapf(err, "RPC server error listening on %s", listenAddress)
	}
	s.Serve(listener)

	log.Infof("RPC Server listening on %s", listener.Addr())
	return nil
}

// Serve serves RPC requests accepted by listener in a new goroutine
func (s *Server) Serve(listener net.Listener) {
	spawn("rpcserver.Server.Serve", func() {
		err := s.server.Serve(listener)
		if err != nil {
			panics.Exit(log, fmt.Sprintf("error serving RPC on %s: %+v", listener.Addr(), err))
		}
	})
}

// Stop stops the server, waiting up to two seconds for requests in flight
func (s *Server) Stop() error {
	const stopTimeout = 2 * time.Second

	stopChan := make(chan interface{})
	go func() {
		s.server.GracefulStop()
		close(stopChan)
	}()

	select {
	case <-stopChan:
	case <-time.After(stopTimeout):
		log.Warnf("Could not gracefully stop the RPC server: timed out after %s", stopTimeout)
		s.server.Stop()
	}
	return nil
}

func (s *Server) unaryInterceptor(ctx context.Context, request interface{}, info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (interface{}, error) {

	started := time.Now()
	response, err := handler(ctx, request)
	method := path.Base(info.FullMethod)
	s.metrics.Observe(method, err, started)
	if err != nil {
		log.Debugf("RPC %s failed: %s", method, err)
		return nil, toStatusError(err)
	}
	return response, nil
}

func (s *Server) streamInterceptor(srv interface{}, stream grpc.ServerStream, info *grpc.StreamServerInfo,
	handler grpc.StreamHandler) error {

	started := time.Now()
	err := handler(srv, stream)
	method := path.Base(info.FullMethod)
	s.metrics.Observe(method, err, started)
	if err != nil {
		log.Debugf("RPC stream %s ended: %s", method, err)
		return toStatusError(err)
	}
	return nil
}

// errControllerStopped ends event streams whose listener was closed
var errControllerStopped = errors.New("the miner controller stopped")

func toStatusError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, remotecontrol.ErrNotRunning), errors.Is(err, errControllerStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, remotecontrol.ErrUnknownCommand):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}

type minerControlService struct {
	server *Server
}

func (service *minerControlService) startWork(ctx context.Context) error {
	return service.server.controller.Execute(ctx, remotecontrol.StartWorkCommand)
}

func (service *minerControlService) stopWork(ctx context.Context) error {
	return service.server.controller.Execute(ctx, remotecontrol.StopWorkCommand)
}

func (service *minerControlService) getState(_ context.Context) (*structpb.Struct, error) {
	return stateToMessage(service.server.controller.State(), service.server.addressPrefix)
}

func (service *minerControlService) events(stream grpc.ServerStream) error {
	listener := service.server.controller.AddListener()
	defer service.server.controller.RemoveListener(listener)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-listener.Events():
			if !ok {
				return errControllerStopped
			}
			message, err := eventToMessage(event)
			if err != nil {
				return err
			}
			err = stream.SendMsg(message)
			if err != nil {
				return err
			}
		}
	}
}
