package wsock

import (
	"context"

	"github.com/suilhq/suil/pkg/task"
)

// Broadcast sends payload as an op-type frame to every connection
// currently in reg, one pkg/task.Spawn sender per peer so a single slow
// socket can't stall delivery to the rest. It only reaches connections
// held by this process; in a multi-worker deployment, pair it with
// BroadcastCluster to also reach connections held by sibling workers.
// The call blocks until every send has been attempted (success or
// failure); per-connection errors are reported through the returned
// slice in completion order, which is not defined since sends run
// concurrently.
func Broadcast(ctx context.Context, reg *Registry, op Opcode, payload []byte) []error {
	if reg.Len() == 0 {
		return nil
	}
	if reg.Len() == 1 {
		var single error
		reg.Each(func(c *Conn) { single = c.Send(op, payload) })
		if single != nil {
			return []error{single}
		}
		return nil
	}

	type result struct {
		err error
	}
	done := task.NewChannel[result](0)
	n := 0
	reg.Each(func(c *Conn) {
		n++
		conn := c
		task.Spawn(ctx, func(ctx context.Context) {
			err := conn.Send(op, payload)
			_ = done.Send(ctx, result{err: err})
		})
	})

	var errs []error
	for i := 0; i < n; i++ {
		r, ok, err := done.Recv(ctx)
		if !ok {
			if err != nil {
				errs = append(errs, err)
			}
			break
		}
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return errs
}

// ClusterBus delivers a tagged frame to sibling worker processes. A
// *worker.Broadcaster satisfies this without either package importing the
// other: wsock only needs to call Send, never construct one.
type ClusterBus interface {
	Send(tag byte, payload []byte) []error
}

// BroadcastCluster fans payload out to every local connection in reg via
// Broadcast, then forwards the same frame to every sibling worker over
// bus so their own local registries receive it too. bus may be nil
// (single-process deployments), in which case this is just Broadcast.
// The returned errors combine both legs with no indication of which:
// callers that need to distinguish a local delivery failure from a
// cluster one should call Broadcast and bus.Send separately instead.
func BroadcastCluster(ctx context.Context, reg *Registry, op Opcode, payload []byte, bus ClusterBus) []error {
	errs := Broadcast(ctx, reg, op, payload)
	if bus == nil {
		return errs
	}
	return append(errs, bus.Send(byte(op), payload)...)
}
