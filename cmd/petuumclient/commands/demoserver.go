package commands

import (
	"context"

	"github.com/HelloBinge/petuum/internal/logger"
	"github.com/HelloBinge/petuum/pkg/transport"
)

// demoServer is a toy parameter-server peer for the in-process demo
// cluster: it answers every row request with an empty row (the client's
// own cached deltas fill it in via oplog replay) and otherwise drops
// messages on the floor. It exists only so `run` has something on the
// other end of the bus; it is not a server implementation this repository
// otherwise provides.
//
// transport.Message carries no sender field — the wire contract assumes a
// connection-oriented transport where the peer is implicit. This demo
// serves exactly one client worker, so it replies to that fixed id rather
// than trying to recover a sender from the message.
type demoServer struct {
	id       int32
	clientID int32
	bus      transport.Bus
}

func newDemoServer(id, clientID int32, bus transport.Bus) *demoServer {
	return &demoServer{id: id, clientID: clientID, bus: bus}
}

func (s *demoServer) Run(ctx context.Context) error {
	for {
		msg, err := s.bus.Receive(ctx, s.id)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msg.Kind != transport.KindRowRequest {
			continue
		}

		reply := transport.Message{
			RequestID: msg.RequestID,
			Kind:      transport.KindRowReply,
			TableID:   msg.TableID,
			RowID:     msg.RowID,
			Clock:     msg.Clock,
			Version:   msg.Version,
		}
		if err := s.bus.Send(ctx, s.id, s.clientID, reply); err != nil {
			logger.ErrorCtx(ctx, "demo server: failed to reply", logger.Err(err))
		}
	}
}
