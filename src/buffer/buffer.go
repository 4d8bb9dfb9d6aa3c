// Package buffer implements the BufferedMessage store described in spec.md
// Section 3 and Section 4.5: a bounded map of IPv6 -> pending outbound
// packet, replaced-not-stacked per IPv6, pruned by a periodic tick and by a
// synchronous sweep when the ceiling is hit.
//
// Grounded on the teacher's scope-owned, channel-buffered state (e.g.
// sessionInfo.fromRouter/recv channels in src/yggdrasil/session.go, and the
// broader util.Cancellation-gated worker lifecycle) generalized into a
// plain map the way spec.md Section 3 specifies, since the manager itself is
// single-threaded and does not need a channel here.
package buffer

import (
	"github.com/yangm97/cjdns/src/alloc"
	"github.com/yangm97/cjdns/src/crypto"
)

// TTLSeconds is the age at which a buffered entry becomes eligible for
// pruning (spec.md Section 4.5: "removes entries whose age is >= 10
// seconds").
const TTLSeconds int64 = 10

// entry is one buffered outbound packet.
type entry struct {
	packet               []byte
	scope                *alloc.Scope
	insertionTimeSeconds int64
}

// Store is the bounded, TTL-pruned buffered-message map.
type Store struct {
	scope   *alloc.Scope
	max     int
	entries map[crypto.IPv6]entry
}

// New creates an empty Store with the given ceiling, owned by a child of
// parent.
func New(parent *alloc.Scope, maxBufferedMessages int) *Store {
	return &Store{
		scope:   parent.NewChild(),
		max:     maxBufferedMessages,
		entries: make(map[crypto.IPv6]entry),
	}
}

// Len returns the current number of buffered entries.
func (s *Store) Len() int { return len(s.entries) }

// Has reports whether ip6 already has a buffered entry.
func (s *Store) Has(ip6 crypto.IPv6) bool {
	_, ok := s.entries[ip6]
	return ok
}

// Drop releases and removes any buffered entry for ip6. Used both to make
// room for a replacement (spec.md Section 3: "A new entry for an IPv6 that
// already has one replaces the older") and when draining on a NODE event.
func (s *Store) Drop(ip6 crypto.IPv6) {
	if e, ok := s.entries[ip6]; ok {
		delete(s.entries, ip6)
		e.scope.Release()
	}
}

// Take removes and returns the buffered packet for ip6 and its adopted
// scope, if any, without releasing that scope -- the caller (event-bus
// pipeline re-entering ready-to-send) takes ownership and is responsible for
// releasing it once the packet has been forwarded.
func (s *Store) Take(ip6 crypto.IPv6) (packet []byte, scope *alloc.Scope, ok bool) {
	e, exists := s.entries[ip6]
	if !exists {
		return nil, nil, false
	}
	delete(s.entries, ip6)
	return e.packet, e.scope, true
}

// Insert adopts packetScope (the packet's originating allocator scope) into
// the store and records the packet for ip6 at nowSeconds. The caller must
// have already verified room exists (via Len()<max or a prior Prune) and
// that no entry already exists for ip6 (via Drop, per spec.md Section 3's
// replace-not-stack rule).
func (s *Store) Insert(ip6 crypto.IPv6, packet []byte, packetScope *alloc.Scope, nowSeconds int64) {
	s.scope.Adopt(packetScope)
	s.entries[ip6] = entry{packet: packet, scope: packetScope, insertionTimeSeconds: nowSeconds}
}

// IsFull reports whether the store is at its configured ceiling.
func (s *Store) IsFull() bool {
	return s.max > 0 && len(s.entries) >= s.max
}

// Prune releases and removes every entry whose age is >= TTLSeconds as of
// nowSeconds (spec.md Section 4.5). Returns the number of entries removed.
func (s *Store) Prune(nowSeconds int64) int {
	var removed int
	for ip6, e := range s.entries {
		if nowSeconds-e.insertionTimeSeconds >= TTLSeconds {
			delete(s.entries, ip6)
			e.scope.Release()
			removed++
		}
	}
	return removed
}
