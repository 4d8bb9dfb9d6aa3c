// Package address derives the 16-byte IPv6 identity of a peer from its
// long-term public key, grounded on the teacher's address.AddrForNodeID
// (src/yggdrasil/session.go calls address.AddrForNodeID/SubnetForNodeID when
// building sinfo.theirAddr/theirSubnet). This package generalizes that single
// call into the fc-prefixed addressing scheme spec.md Section 4.2 step 5
// requires, and supplies the validity check switch ingress uses to drop a
// handshake whose key does not produce a valid address.
package address

import (
	"golang.org/x/crypto/blake2b"

	"github.com/yangm97/cjdns/src/crypto"
)

// FCPrefix is the leading byte every address derived from a public key must
// carry (spec.md GLOSSARY: "fc-prefixed address").
const FCPrefix = 0xfc

// FromPublicKey derives the IPv6 identity for a public key as the first 16
// bytes of its blake2b-512 hash, unmodified. Returns ok=false if the hash
// does not itself begin with 0xfc (no prefix is forced onto it), matching
// the teacher's convention that not every public key produces a routable
// address.
func FromPublicKey(key crypto.PublicKey) (addr crypto.IPv6, ok bool) {
	sum := blake2b.Sum512(key[:])
	if sum[0] != FCPrefix {
		return crypto.IPv6{}, false
	}
	copy(addr[:], sum[:16])
	return addr, true
}

// IsValid reports whether addr carries the fc prefix this network requires.
func IsValid(addr crypto.IPv6) bool {
	return addr[0] == FCPrefix
}
