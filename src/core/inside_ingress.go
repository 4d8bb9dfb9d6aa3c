package core

import (
	"fmt"
	"log/slog"

	"github.com/yangm97/cjdns/internal/metrics"
	"github.com/yangm97/cjdns/src/alloc"
	"github.com/yangm97/cjdns/src/crypto"
	"github.com/yangm97/cjdns/src/events"
	"github.com/yangm97/cjdns/src/table"
	"github.com/yangm97/cjdns/src/wire"
)

// HandleInsidePacket is the inside ingress pipeline (spec.md Section 4.3):
// resolve the session by IPv6 (or create it from an embedded key), choose a
// label, and either hand off to ready-to-send or buffer-and-search.
//
// packetScope is the packet's originating allocator scope. When the packet
// is buffered, ownership transfers into the buffered-message store and
// packetScope is not released here; in every other outcome it is released
// before HandleInsidePacket returns.
func (m *Manager) HandleInsidePacket(packet []byte, packetScope *alloc.Scope) {
	rh, err := wire.DecodeRouteHeader(packet)
	if err != nil {
		// spec.md Section 7: a too-short route header on the inside
		// interface is a programming error, not a drop -- the inside
		// interface's own framing guarantees this length.
		panic(fmt.Sprintf("core: inside ingress packet shorter than route header: %v", err))
	}
	body := packet[wire.RouteHeaderSize:]

	sess, found := m.table.LookupByIP6(rh.IP6)
	if !found {
		if !rh.PublicKey.IsZero() {
			s, cerr := m.getOrCreateSession(rh.IP6, rh.PublicKey, rh.Version, rh.SH.Label, true)
			if cerr != nil {
				m.log.Debug("drop: session creation failed",
					slog.String("ip6", rh.IP6.String()), slog.Any("err", cerr))
				m.recordDrop(metrics.DropSessionCreateFail)
				packetScope.Release()
				return
			}
			sess = s
			found = true
		} else {
			m.bufferAndSearch(rh.IP6, packet, packetScope)
			return
		}
	}

	if rh.Version != 0 {
		sess.SetVersion(rh.Version)
	}

	label := rh.SH.Label
	if label == 0 {
		if sess.SendSwitchLabel() != 0 {
			label = sess.SendSwitchLabel()
		} else {
			m.bufferAndSearch(rh.IP6, packet, packetScope)
			return
		}
	}

	m.readyToSend(sess, label, body)
	packetScope.Release()
}

// bufferAndSearch implements the buffer-and-search fallback shared by
// inside ingress steps 3 and 5 (spec.md Section 4.3): replace any existing
// buffered entry for ip6, prune on overflow, drop if still full, otherwise
// buffer and emit SEARCH_REQ.
func (m *Manager) bufferAndSearch(ip6 crypto.IPv6, packet []byte, packetScope *alloc.Scope) {
	if m.buffer.Has(ip6) {
		m.buffer.Drop(ip6)
	}

	nowSeconds := m.clock.NowMillis() / 1000

	if m.buffer.IsFull() {
		m.buffer.Prune(nowSeconds)
	}
	if m.buffer.IsFull() {
		m.log.Debug("drop: buffer full", slog.String("ip6", ip6.String()))
		m.recordDrop(metrics.DropBufferFull)
		packetScope.Release()
		return
	}

	m.buffer.Insert(ip6, packet, packetScope, nowSeconds)
	if m.mtx != nil {
		m.mtx.BufferedMessages.Set(float64(m.buffer.Len()))
	}
	m.bus.Publish(events.Event{
		Kind:           events.KindSearchReq,
		DestOrSourcePf: events.BroadcastPf,
		Node:           events.Node{IP6: ip6, Metric: events.MetricUnknown},
	})
}

// readyToSend implements the ready-to-send path shared by inside ingress and
// the event-bus NODE drain (spec.md Section 4.3 "Ready-to-send"): prefix a
// pre-HANDSHAKE3 payload with our receiveHandle, encrypt, prefix a
// post-HANDSHAKE3 ciphertext with our sendHandle, reveal the switch header,
// forward.
func (m *Manager) readyToSend(sess *table.Session, label uint64, body []byte) {
	established := m.auth.State(sess.CA()).IsPostHandshakeThree()

	plaintext := body
	if !established {
		prefixed := make([]byte, wire.HandleSize+len(body))
		wire.PutHandle(prefixed, sess.ReceiveHandle())
		copy(prefixed[wire.HandleSize:], body)
		plaintext = prefixed
	}

	ciphertext, ok := m.auth.Encrypt(sess.CA(), plaintext)
	if !ok {
		if established {
			// spec.md Section 7: post-handshake encrypt failure is a
			// programming error.
			panic(fmt.Sprintf("core: post-handshake encrypt failed for %s", sess.IP6()))
		}
		m.log.Debug("drop: handshake encrypt failed", slog.String("ip6", sess.IP6().String()))
		m.recordDrop(metrics.DropHandshakeEncrypt)
		return
	}

	var out []byte
	if established {
		out = make([]byte, wire.SwitchHeaderSize+wire.HandleSize+len(ciphertext))
		wire.PutHandle(out[wire.SwitchHeaderSize:], sess.SendHandle())
		copy(out[wire.SwitchHeaderSize+wire.HandleSize:], ciphertext)
	} else {
		out = make([]byte, wire.SwitchHeaderSize+len(ciphertext))
		copy(out[wire.SwitchHeaderSize:], ciphertext)
	}

	sh := wire.SwitchHeader{Label: label}
	sh.Encode(out)

	m.sw.SendSwitch(out)
}
