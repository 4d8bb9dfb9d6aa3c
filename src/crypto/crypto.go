// Package crypto declares the value types and collaborator interface the
// session manager uses for per-peer cryptographic state. The handshake and
// AEAD themselves are out of scope (see spec.md Section 1); this package
// only fixes the shapes the session manager depends on, the way the
// teacher's crypto.BoxPubKey/crypto.Handle types do for the box primitive
// it DOES own.
package crypto

import "fmt"

// PublicKey is a peer's long-term public key.
type PublicKey [32]byte

func (k PublicKey) String() string {
	return fmt.Sprintf("%x", [32]byte(k))
}

// IsZero reports whether k is the all-zero key, used by inside ingress to
// tell "no key embedded in this route header" from a real key.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// IPv6 is the 16-byte address derived from a PublicKey.
type IPv6 [16]byte

func (a IPv6) String() string {
	return fmt.Sprintf("%x", [16]byte(a))
}

// Handle is the 32-bit demultiplexing identifier described in spec.md
// Section 3. Values 0-3 are reserved by the handshake protocol.
type Handle uint32

// ReservedHandleMax is the highest handle value reserved for in-band
// handshake nonces; the manager never assigns a handle <= this value.
const ReservedHandleMax Handle = 3

// IsReserved reports whether h is one of the handshake nonce values 0-3.
func (h Handle) IsReserved() bool {
	return h <= ReservedHandleMax
}

// State is the CryptoAuth handshake/established state. States progress
// monotonically: HandshakeOne -> HandshakeTwo -> HandshakeThree -> Established.
type State int

const (
	StateHandshakeOne State = iota
	StateHandshakeTwo
	StateHandshakeThree
	StateEstablished
)

// String renders a State for logging, mirroring the CryptoAuth collaborator's
// required stateString operation (spec.md Section 6).
func (s State) String() string {
	switch s {
	case StateHandshakeOne:
		return "HANDSHAKE1"
	case StateHandshakeTwo:
		return "HANDSHAKE2"
	case StateHandshakeThree:
		return "HANDSHAKE3"
	case StateEstablished:
		return "ESTABLISHED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// IsPostHandshakeThree reports whether the session has progressed past the
// third handshake stage, the threshold the inside ready-to-send path (spec.md
// Section 4.3) and switch ingress header rewrite (Section 4.2 step 8) key off
// of.
func (s State) IsPostHandshakeThree() bool {
	return s >= StateEstablished
}

// Session is the owned CryptoAuth session state for one peer. It is the
// receiver for the collaborator operations below; the session manager never
// reaches into its fields.
type Session struct {
	herIP6       IPv6
	herPublicKey PublicKey
	state        State
	lastTouch    int64 // opaque timestamp, owned by the CryptoAuth collaborator
}

// NewSession constructs a Session value. Authenticator implementations
// (including the test fake) use this to hand a manager-compatible session
// back from their own NewSession operation.
func NewSession(herIP6 IPv6, herKey PublicKey, state State) *Session {
	return &Session{herIP6: herIP6, herPublicKey: herKey, state: state}
}

// HerIP6 returns the session's peer IPv6, derived once at creation.
func (s *Session) HerIP6() IPv6 { return s.herIP6 }

// HerPublicKey returns the session's peer public key.
func (s *Session) HerPublicKey() PublicKey { return s.herPublicKey }

// RawState returns the session's last-known state without consulting the
// Authenticator collaborator; used for logging/snapshots only. Callers that
// need authoritative state must go through Authenticator.State.
func (s *Session) RawState() State { return s.state }

// SetRawState updates the session's cached state. Called by an Authenticator
// implementation after a state transition.
func (s *Session) SetRawState(st State) { s.state = st }

// Authenticator is the CryptoAuth collaborator described in spec.md Section 6.
// Production builds wire this to the real CryptoAuth library; tests use a
// fake (see src/core/testing_fakes_test.go) the way the teacher's sessionInfo
// wraps operations on *crypto.BoxSharedKey/*crypto.BoxNonce it does not itself
// implement.
type Authenticator interface {
	// ExtractHandshakeKey reads the peer's long-term public key out of a
	// handshake packet's header (spec.md Section 4.2 step 5: "Extract the
	// peer public key from the handshake"). ok is false if msg is too short
	// or malformed to contain one.
	ExtractHandshakeKey(msg []byte) (key PublicKey, ok bool)

	// NewSession creates a session for theirKey/theirIP6. isOutgoing
	// distinguishes a session opened by inside ingress (we speak first) from
	// one opened by switch ingress (peer spoke first); label seeds the new
	// session's initial switch label.
	NewSession(theirKey PublicKey, theirIP6 IPv6, isOutgoing bool, label uint64) (*Session, error)

	// Decrypt attempts to authenticate-and-decrypt msg in place against sess.
	// ok is false on any authentication failure.
	Decrypt(sess *Session, msg []byte) (plaintext []byte, ok bool)

	// Encrypt authenticates-and-encrypts msg in place against sess. The
	// manager treats a false return on an established (post-HANDSHAKE3)
	// session as a programming error and panics; on a session still in the
	// handshake it drops the packet. CryptoAuth's own retry/resend logic
	// lives below this collaborator.
	Encrypt(sess *Session, msg []byte) (ciphertext []byte, ok bool)

	// State returns sess's current handshake/established state.
	State(sess *Session) State

	// ResetIfTimeout resets sess to HandshakeOne if the handshake has stalled.
	ResetIfTimeout(sess *Session)

	// StateString renders a State for logging.
	StateString(s State) string
}
