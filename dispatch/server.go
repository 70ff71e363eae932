package dispatch

import (
	"context"

	json "github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "flowcore.dispatch.Engine"
const dispatchMethod = "Dispatch"

// EngineServer is what a concrete dataflow engine implements to receive
// dispatched commands. cmd/coordinatord's default wiring uses Loopback.
type EngineServer interface {
	Dispatch(ctx context.Context, cmd Command) (Ack, error)
}

// Register wires srv onto s under the single generic RPC method every
// Command travels through, using a hand-written grpc.ServiceDesc instead
// of protoc-generated registration code.
func Register(s *grpc.Server, srv EngineServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: dispatchMethod, Handler: dispatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dispatch.proto",
}

func dispatchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := &anypb.Any{}
	if err := dec(req); err != nil {
		return nil, err
	}
	cmd, err := decodeCommand(req)
	if err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, in interface{}) (interface{}, error) {
		ack, err := srv.(EngineServer).Dispatch(ctx, in.(Command))
		if err != nil {
			return nil, err
		}
		return encodeAck(ack)
	}
	if interceptor == nil {
		return handler(ctx, cmd)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + dispatchMethod}
	return interceptor(ctx, cmd, info, handler)
}

func decodeCommand(a *anypb.Any) (Command, error) {
	bv := &wrapperspb.BytesValue{}
	if err := a.UnmarshalTo(bv); err != nil {
		return Command{}, err
	}
	var cmd Command
	if err := json.Unmarshal(bv.Value, &cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func encodeCommand(cmd Command) (*anypb.Any, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	return anypb.New(&wrapperspb.BytesValue{Value: b})
}

func decodeAck(a *anypb.Any) (Ack, error) {
	bv := &wrapperspb.BytesValue{}
	if err := a.UnmarshalTo(bv); err != nil {
		return Ack{}, err
	}
	var ack Ack
	if err := json.Unmarshal(bv.Value, &ack); err != nil {
		return Ack{}, err
	}
	return ack, nil
}

func encodeAck(ack Ack) (*anypb.Any, error) {
	b, err := json.Marshal(ack)
	if err != nil {
		return nil, err
	}
	return anypb.New(&wrapperspb.BytesValue{Value: b})
}
