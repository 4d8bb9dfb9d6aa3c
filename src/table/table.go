package table

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/yangm97/cjdns/src/alloc"
	"github.com/yangm97/cjdns/src/crypto"
)

// firstHandleMin and firstHandleMax bound the uniform random range
// firstHandle is drawn from at construction (spec.md Section 3).
const (
	firstHandleMin = 4
	firstHandleMax = 100000
)

// ErrAlreadyPresent is returned by Insert when a session already exists for
// the given IPv6 (spec.md Section 4.1: "Fails if ip6 already present").
var ErrAlreadyPresent = errors.New("table: session already present for ip6")

// slot is one entry in the table's handle slab. A nil session with
// freed=true marks a reusable slot.
type slot struct {
	session *Session
	freed   bool
}

// SessionTable is the dual-keyed map described in spec.md Section 4.1:
// IPv6 -> Session, and stable handle -> Session via a tagged-index slab with
// a free list, the approach spec.md Section 9's Design Notes recommend.
//
// Grounded on dantte-lp-gobfd's Manager (sessions map + sessionsByPeer map +
// DiscriminatorAllocator), generalized so the allocated key is
// firstHandle+internalIndex rather than a uniformly random value, since the
// spec requires handles to be stable across table mutation.
type SessionTable struct {
	scope *alloc.Scope

	firstHandle crypto.Handle
	slab        []slot
	freeList    []int
	byIP6       map[crypto.IPv6]*Session
}

// New creates an empty SessionTable owned by a child of parent, with
// firstHandle drawn uniformly from [4, 100000].
func New(parent *alloc.Scope) (*SessionTable, error) {
	fh, err := randomFirstHandle()
	if err != nil {
		return nil, fmt.Errorf("table: choose firstHandle: %w", err)
	}
	return &SessionTable{
		scope:       parent.NewChild(),
		firstHandle: fh,
		byIP6:       make(map[crypto.IPv6]*Session),
	}, nil
}

func randomFirstHandle() (crypto.Handle, error) {
	span := uint32(firstHandleMax - firstHandleMin + 1)
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(buf[:]) % span
	return crypto.Handle(firstHandleMin + n), nil
}

// FirstHandle returns the table's randomly chosen handle offset.
func (t *SessionTable) FirstHandle() crypto.Handle { return t.firstHandle }

// LookupByIP6 returns the session for ip6, if any.
func (t *SessionTable) LookupByIP6(ip6 crypto.IPv6) (*Session, bool) {
	s, ok := t.byIP6[ip6]
	return s, ok
}

// LookupByHandle returns the session for handle, if any. internalIndex is
// computed as handle - firstHandle and rejected if out of range (spec.md
// Section 4.1).
func (t *SessionTable) LookupByHandle(h crypto.Handle) (*Session, bool) {
	if h < t.firstHandle {
		return nil, false
	}
	idx := int(h - t.firstHandle)
	if idx < 0 || idx >= len(t.slab) {
		return nil, false
	}
	sl := t.slab[idx]
	if sl.freed || sl.session == nil {
		return nil, false
	}
	return sl.session, true
}

// Insert allocates a fresh receive-handle for a new Session wrapping ca, and
// indexes it by both ip6 and handle. Returns ErrAlreadyPresent if ip6 is
// already indexed; callers are expected to check LookupByIP6 first (spec.md
// Section 4.1).
//
// onRemoved, if non-nil, is invoked exactly once when the session is removed
// from the table -- either via Remove or because the session's scope was
// released out from under the table -- so callers (the session manager) can
// emit SESSION_ENDED (spec.md Section 3: "destruction emits exactly one
// SESSION_ENDED event").
func (t *SessionTable) Insert(ip6 crypto.IPv6, ca *crypto.Session, label uint64, version uint32, now int64, onRemoved func(*Session)) (*Session, error) {
	if _, exists := t.byIP6[ip6]; exists {
		return nil, ErrAlreadyPresent
	}

	idx := t.allocIndex()
	handle := t.firstHandle + crypto.Handle(idx)

	sess := newSession(t.scope, ca, handle, label, version, now)
	sess.internalIndex = idx

	t.slab[idx] = slot{session: sess}
	t.byIP6[ip6] = sess

	sess.Scope().OnRelease(func() {
		t.remove(sess)
		if onRemoved != nil {
			onRemoved(sess)
		}
	})

	return sess, nil
}

// allocIndex returns a free slab slot, extending the slab if the free list
// is empty.
func (t *SessionTable) allocIndex() int {
	if n := len(t.freeList); n > 0 {
		idx := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		return idx
	}
	t.slab = append(t.slab, slot{})
	return len(t.slab) - 1
}

// remove drops sess from both indices and frees its slab slot for reuse.
// Safe to call even if sess was already removed.
func (t *SessionTable) remove(sess *Session) {
	idx := sess.internalIndex
	if idx >= 0 && idx < len(t.slab) && t.slab[idx].session == sess {
		t.slab[idx] = slot{freed: true}
		t.freeList = append(t.freeList, idx)
	}
	if cur, ok := t.byIP6[sess.IP6()]; ok && cur == sess {
		delete(t.byIP6, sess.IP6())
	}
}

// Remove releases sess's scope, which, via the callback registered in
// Insert, removes it from the table and notifies the caller (spec.md
// Section 4.1: "invoked indirectly when a session's scope is released").
func (t *SessionTable) Remove(sess *Session) {
	sess.Scope().Release()
}

// Count returns the number of live sessions.
func (t *SessionTable) Count() int {
	return len(t.byIP6)
}

// Enumerate returns the externally visible handle of every live session, a
// snapshot stable against concurrent mutation for the caller's single-
// threaded scope (spec.md Section 4.1).
func (t *SessionTable) Enumerate() []crypto.Handle {
	handles := make([]crypto.Handle, 0, len(t.byIP6))
	for _, sl := range t.slab {
		if sl.freed || sl.session == nil {
			continue
		}
		handles = append(handles, sl.session.ReceiveHandle())
	}
	return handles
}

// ForEach calls fn for every live session, in slab order.
func (t *SessionTable) ForEach(fn func(*Session)) {
	for _, sl := range t.slab {
		if sl.freed || sl.session == nil {
			continue
		}
		fn(sl.session)
	}
}
