package dispatch

import "context"

// Loopback is the default EngineServer cmd/coordinatord registers when no
// external dataflow engine is configured: it accepts every command
// unconditionally, enough to exercise the client path end to end without
// implementing any actual dataflow execution.
type Loopback struct{}

func (Loopback) Dispatch(ctx context.Context, cmd Command) (Ack, error) {
	return Ack{OK: true}, nil
}
