package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls ServiceName on one contract.
type Client struct {
	cc       grpc.ClientConnInterface
	contract string
}

func NewClient(cc grpc.ClientConnInterface, contract string) *Client {
	if contract == "" {
		contract = DefaultContract
	}
	return &Client{cc: cc, contract: contract}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	ctx = metadata.AppendToOutgoingContext(ctx, ContractHeader, c.contract)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

// Roll rolls a die; sides 0 means the default die.
func (c *Client) Roll(ctx context.Context, sides uint32, opts ...grpc.CallOption) (uint32, error) {
	out := new(wrapperspb.UInt32Value)
	if err := c.invoke(ctx, "Roll", wrapperspb.UInt32(sides), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) NextU64(ctx context.Context, salt uint32, opts ...grpc.CallOption) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.invoke(ctx, "NextU64", wrapperspb.UInt32(salt), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

func (c *Client) Nonce(ctx context.Context, opts ...grpc.CallOption) (uint32, error) {
	out := new(wrapperspb.UInt32Value)
	if err := c.invoke(ctx, "Nonce", &emptypb.Empty{}, out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

// CloseLedger advances the ledger and returns the new sequence number.
func (c *Client) CloseLedger(ctx context.Context, secs uint64, opts ...grpc.CallOption) (uint32, error) {
	out := new(wrapperspb.UInt32Value)
	if err := c.invoke(ctx, "CloseLedger", wrapperspb.UInt64(secs), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
