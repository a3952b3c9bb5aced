// Package rpc serves the simulator over gRPC. Messages are protobuf
// well-known wrapper types, so the service needs no generated code.
package rpc

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xtding233/contract-rng/internal/contract"
	"github.com/xtding233/contract-rng/internal/sim"
)

const (
	ServiceName = "contractrng.v1.Simulator"

	// ContractHeader selects the contract a call runs against.
	ContractHeader  = "contract"
	DefaultContract = "dice"
)

// SimulatorServer is the server API of ServiceName.
type SimulatorServer interface {
	Roll(context.Context, *wrapperspb.UInt32Value) (*wrapperspb.UInt32Value, error)
	NextU64(context.Context, *wrapperspb.UInt32Value) (*wrapperspb.UInt64Value, error)
	Nonce(context.Context, *emptypb.Empty) (*wrapperspb.UInt32Value, error)
	CloseLedger(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.UInt32Value, error)
}

// ServiceDesc describes ServiceName for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Roll", Handler: unaryHandler("Roll", SimulatorServer.Roll)},
		{MethodName: "NextU64", Handler: unaryHandler("NextU64", SimulatorServer.NextU64)},
		{MethodName: "Nonce", Handler: unaryHandler("Nonce", SimulatorServer.Nonce)},
		{MethodName: "CloseLedger", Handler: unaryHandler("CloseLedger", SimulatorServer.CloseLedger)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contractrng/v1/simulator.proto",
}

// unaryHandler adapts a typed method to grpc's generic unary handler.
func unaryHandler[Req, Resp any](method string, call func(SimulatorServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SimulatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SimulatorServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Register installs the simulator service on s.
func Register(s grpc.ServiceRegistrar, sm *sim.Simulator, logger zerolog.Logger) {
	s.RegisterService(&ServiceDesc, &service{sim: sm, log: logger.With().Str("component", "grpc").Logger()})
}

type service struct {
	sim *sim.Simulator
	log zerolog.Logger
}

func contractFrom(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(ContractHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return DefaultContract
}

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sim.ErrTooManyDraws), errors.Is(err, contract.ErrInvalidSides), errors.Is(err, contract.ErrInvalidProb):
		return status.Error(codes.InvalidArgument, err.Error())
	case sim.IsClientError(err):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func (s *service) Roll(ctx context.Context, in *wrapperspb.UInt32Value) (*wrapperspb.UInt32Value, error) {
	sides := in.GetValue()
	if sides == 0 {
		sides = contract.DefaultSides
	}
	face, err := s.sim.Roll(contractFrom(ctx), sides)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt32(face), nil
}

func (s *service) NextU64(ctx context.Context, in *wrapperspb.UInt32Value) (*wrapperspb.UInt64Value, error) {
	vals, err := s.sim.Draw(contractFrom(ctx), in.GetValue(), 1)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(vals[0]), nil
}

func (s *service) Nonce(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt32Value, error) {
	n, err := s.sim.Nonce(contractFrom(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt32(n), nil
}

func (s *service) CloseLedger(_ context.Context, in *wrapperspb.UInt64Value) (*wrapperspb.UInt32Value, error) {
	info := s.sim.CloseLedger(in.GetValue())
	s.log.Debug().Uint32("sequence", info.Sequence).Msg("ledger closed over grpc")
	return wrapperspb.UInt32(info.Sequence), nil
}
