package netif

import (
	"time"

	"github.com/softroute/softroute/internal/proto/ethernet"
	"github.com/softroute/softroute/internal/proto/ipv4"
)

const (
	// pendingTTL is the lifetime of a neighbor entry awaiting an ARP
	// reply. It also bounds how often a new request may be sent for the
	// same address: at most one per entry lifetime.
	pendingTTL = 5 * time.Second
	// resolvedTTL is the lifetime of a resolved neighbor entry. Any ARP
	// traffic from the neighbor restarts it.
	resolvedTTL = 30 * time.Second
)

// neighborState is the lifecycle state of a neighbor entry.
type neighborState uint8

const (
	// statePending marks an entry whose MAC address is still unknown; an
	// ARP request is in flight and datagrams queue up on the entry.
	statePending neighborState = iota
	// stateResolved marks an entry with a known MAC address.
	stateResolved
)

// String returns the state's string representation.
func (m neighborState) String() string {
	switch m {
	case statePending:
		return "PENDING"
	case stateResolved:
		return "RESOLVED"
	default:
		return "UNKNOWN"
	}
}

// neighbor is a single ARP cache entry.
//
// The pending datagram queue lives inside the entry: it is non-nil exactly
// while the entry is pending, so the entry and its queue cannot fall out of
// step.
type neighbor struct {
	state neighborState
	// mac is meaningful only when state is stateResolved.
	mac ethernet.Addr
	// ttl is the remaining lifetime, decremented by Interface.Tick.
	ttl time.Duration
	// queue holds datagrams awaiting resolution, oldest first.
	queue []ipv4.Datagram
	// queueBytes is the serialized size of everything in queue.
	queueBytes int
}
