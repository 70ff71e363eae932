package dispatch

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/anypb"
)

// EngineClient dispatches Commands to a remote engine over the single
// generic RPC method Register wires up.
type EngineClient struct {
	conn *grpc.ClientConn
}

// Dial opens a client connection to target, grounded in the teacher's
// grpc.Dial(..., grpc.WithInsecure()) pattern (network/detector/qtable.go)
// — this module has no TLS material of its own to wire in.
func Dial(target string) (*EngineClient, error) {
	conn, err := grpc.Dial(target, grpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("dispatch: dial %s: %w", target, err)
	}
	return &EngineClient{conn: conn}, nil
}

func (c *EngineClient) Close() error {
	return c.conn.Close()
}

// Dispatch sends cmd to the engine and waits for its Ack.
func (c *EngineClient) Dispatch(ctx context.Context, cmd Command) (Ack, error) {
	req, err := encodeCommand(cmd)
	if err != nil {
		return Ack{}, err
	}
	resp := &anypb.Any{}
	fullMethod := "/" + serviceName + "/" + dispatchMethod
	if err := c.conn.Invoke(ctx, fullMethod, req, resp); err != nil {
		return Ack{}, fmt.Errorf("dispatch: %w", err)
	}
	return decodeAck(resp)
}
