// Package events defines the Pathfinder event-bus message shapes described
// in spec.md Section 4.4 and Section 6: the Node record shared across
// several event kinds, the inbound kinds the manager reacts to (NODE,
// SESSIONS), and the outbound kinds it emits (SESSION, SESSION_ENDED,
// DISCOVERED_PATH, SEARCH_REQ).
//
// The Bus itself (the asynchronous resolver side) is an out-of-scope
// collaborator (spec.md Section 1); this package only fixes the message
// shapes and the synchronous Publish/Subscribe contract spec.md Section 5
// requires ("a synchronous send to a subscriber"), grounded on the
// dispatch/fan-out shape of dantte-lp-gobfd's Manager.rawNotifyCh /
// publicNotifyCh, simplified from a channel pair to a direct callback
// because the manager never yields mid-dispatch.
package events

import "github.com/yangm97/cjdns/src/crypto"

// Kind identifies an event's payload shape and direction.
type Kind uint32

const (
	// KindNode is inbound: Pathfinder reports a discovered (ip6, path, key, version).
	KindNode Kind = iota
	// KindSessions is inbound: Pathfinder asks for an enumeration of known sessions.
	KindSessions
	// KindSession is outbound: emitted on session creation and on a SESSIONS request.
	KindSession
	// KindSessionEnded is outbound: emitted once per session at teardown.
	KindSessionEnded
	// KindDiscoveredPath is outbound: emitted when recvSwitchLabel transitions.
	KindDiscoveredPath
	// KindSearchReq is outbound: emitted when inside ingress needs a path for an IPv6.
	KindSearchReq
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "NODE"
	case KindSessions:
		return "SESSIONS"
	case KindSession:
		return "SESSION"
	case KindSessionEnded:
		return "SESSION_ENDED"
	case KindDiscoveredPath:
		return "DISCOVERED_PATH"
	case KindSearchReq:
		return "SEARCH_REQ"
	default:
		return "UNKNOWN"
	}
}

// BroadcastPf is the destination/source Pathfinder id meaning "every
// subscribed Pathfinder" (spec.md Section 4.4).
const BroadcastPf uint32 = 0xffffffff

// MetricUnknown is the sentinel metric value the manager always emits,
// because path-quality metrics are a spec.md Non-goal (Section 1).
const MetricUnknown uint32 = 0xffffffff

// Node is the fixed-size record shared across NODE, SESSION,
// DISCOVERED_PATH-adjacent, and SESSION_ENDED payloads (spec.md Section 4.4).
type Node struct {
	Path      uint64
	Metric    uint32
	Version   uint32
	IP6       crypto.IPv6
	PublicKey crypto.PublicKey
}

// Event is one message on the Pathfinder bus, inbound or outbound.
type Event struct {
	Kind Kind
	// DestOrSourcePf is the destination Pathfinder id for outbound events, or
	// the originating Pathfinder id for inbound ones.
	DestOrSourcePf uint32
	Node           Node
}

// Bus is the Pathfinder event-bus collaborator. Publish must deliver
// synchronously and in program order relative to other Publish calls made
// from within the same ingress call (spec.md Section 5: "Events emitted from
// a single ingress call are delivered in program order before that ingress
// returns").
type Bus interface {
	Publish(Event)
}

// Subscriber receives inbound events (NODE, SESSIONS) from the bus.
// core.Manager implements it; neither core.New nor cmd/cored registers it
// with a bus, so inbound events reach the manager only through direct
// HandleEvent calls.
type Subscriber interface {
	HandleEvent(Event)
}
