// Package table implements the per-peer Session and the dual-keyed
// SessionTable described in spec.md Section 3 and Section 4.1, grounded on
// the teacher's sessionInfo/sessions pair (src/yggdrasil/session.go) and on
// dantte-lp-gobfd's Manager (sessions/sessionsByPeer maps,
// DiscriminatorAllocator) for the stable-handle allocation strategy.
package table

import (
	"github.com/yangm97/cjdns/src/alloc"
	"github.com/yangm97/cjdns/src/crypto"
)

// Session holds everything the manager knows about one peer (spec.md
// Section 3).
type Session struct {
	scope *alloc.Scope
	ca    *crypto.Session

	receiveHandle crypto.Handle
	sendHandle    crypto.Handle

	sendSwitchLabel uint64
	recvSwitchLabel uint64

	version uint32

	timeOfCreation int64

	// internalIndex is this session's stable slot in its owning
	// SessionTable's slab; it is not reused until the session is removed
	// (spec.md Section 3: "Handle... internalIndex... not reused until the
	// entry is removed").
	internalIndex int
}

// newSession constructs a Session owned by a child of parent, wired to the
// given CryptoAuth collaborator session.
func newSession(parent *alloc.Scope, ca *crypto.Session, receiveHandle crypto.Handle, label uint64, version uint32, now int64) *Session {
	return &Session{
		scope:           parent.NewChild(),
		ca:              ca,
		receiveHandle:   receiveHandle,
		sendSwitchLabel: label,
		version:         version,
		timeOfCreation:  now,
	}
}

// CA returns the session's owned CryptoAuth collaborator state.
func (s *Session) CA() *crypto.Session { return s.ca }

// IP6 returns the session's peer IPv6 (spec.md invariant: "caSession.herIp6
// equals the IPv6 key of the session").
func (s *Session) IP6() crypto.IPv6 { return s.ca.HerIP6() }

// PublicKey returns the session's peer public key.
func (s *Session) PublicKey() crypto.PublicKey { return s.ca.HerPublicKey() }

// ReceiveHandle returns the handle the peer must stamp on packets destined
// to us. Fixed for the session's lifetime.
func (s *Session) ReceiveHandle() crypto.Handle { return s.receiveHandle }

// SendHandle returns the handle we must stamp on packets to the peer, or 0
// if not yet learned.
func (s *Session) SendHandle() crypto.Handle { return s.sendHandle }

// SetSendHandle records the handle the peer chose for us to use, learned
// from the first four plaintext bytes of the handshake response (spec.md
// Section 4.2 step 7).
func (s *Session) SetSendHandle(h crypto.Handle) { s.sendHandle = h }

// SendSwitchLabel returns the label we currently use to reach the peer.
func (s *Session) SendSwitchLabel() uint64 { return s.sendSwitchLabel }

// SetSendSwitchLabel overwrites the outbound label, e.g. on a Pathfinder NODE
// update.
func (s *Session) SetSendSwitchLabel(label uint64) { s.sendSwitchLabel = label }

// RecvSwitchLabel returns the last label observed on an incoming packet.
func (s *Session) RecvSwitchLabel() uint64 { return s.recvSwitchLabel }

// SetRecvSwitchLabel records a newly observed inbound label. Callers are
// responsible for comparing against the previous value to decide whether a
// DISCOVERED_PATH event is due (spec.md Section 4.2 step 10).
func (s *Session) SetRecvSwitchLabel(label uint64) { s.recvSwitchLabel = label }

// Version returns the peer's protocol version, 0 until learned.
func (s *Session) Version() uint32 { return s.version }

// SetVersion updates the peer's protocol version.
func (s *Session) SetVersion(v uint32) { s.version = v }

// TimeOfCreation returns the millisecond timestamp the session was allocated.
func (s *Session) TimeOfCreation() int64 { return s.timeOfCreation }

// InternalIndex returns the session's stable slab slot.
func (s *Session) InternalIndex() int { return s.internalIndex }

// Scope returns the session's owning allocator scope. Releasing it fires the
// session's registered teardown actions, which remove it from its
// SessionTable and notify the table's onRemoved callback; the CryptoAuth
// session value itself is not touched.
func (s *Session) Scope() *alloc.Scope { return s.scope }
