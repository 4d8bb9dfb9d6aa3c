package core

import (
	"encoding/binary"
	"log/slog"

	"github.com/yangm97/cjdns/internal/metrics"
	"github.com/yangm97/cjdns/src/address"
	"github.com/yangm97/cjdns/src/alloc"
	"github.com/yangm97/cjdns/src/crypto"
	"github.com/yangm97/cjdns/src/events"
	"github.com/yangm97/cjdns/src/table"
	"github.com/yangm97/cjdns/src/wire"
)

// HandleSwitchPacket is the switch ingress pipeline (spec.md Section 4.2):
// decode nonce-or-handle, resolve or create the session, decrypt, rewrite to
// inside-form, forward upstream.
//
// packetScope is the packet's originating allocator scope (the packet
// allocator collaborator itself is out of scope per spec.md Section 1).
// HandleSwitchPacket always either forwards a freshly built inside-form
// packet and releases packetScope, or drops and releases packetScope; it
// never retains it.
func (m *Manager) HandleSwitchPacket(packet []byte, packetScope *alloc.Scope) {
	defer packetScope.Release()

	if err := wire.CheckRunt(packet); err != nil {
		m.log.Debug("drop: runt switch packet", slog.Int("len", len(packet)))
		m.recordDrop(metrics.DropRunt)
		return
	}

	sh, err := wire.DecodeSwitchHeader(packet)
	if err != nil {
		m.log.Debug("drop: bad switch header", slog.Any("err", err))
		return
	}
	rest := packet[wire.SwitchHeaderSize:]

	n, err := wire.DecodeHandleOrNonce(rest)
	if err != nil {
		m.log.Debug("drop: runt switch packet", slog.Int("len", len(packet)))
		m.recordDrop(metrics.DropRunt)
		return
	}

	var (
		sess    *table.Session
		payload []byte
		isSetup bool
	)

	if !n.IsReserved() {
		s, ok := m.table.LookupByHandle(n)
		if !ok {
			m.log.Debug("drop: unrecognized handle", slog.Uint64("handle", uint64(n)))
			m.recordDrop(metrics.DropUnknownHandle)
			return
		}
		sess = s
		payload = rest[wire.HandleSize:]
		m.mtxRunPacket()
	} else {
		if len(rest) < wire.HandleSize+wire.MinHandshakeTrailerSize {
			m.log.Debug("drop: short handshake packet", slog.Int("len", len(rest)))
			m.recordDrop(metrics.DropShortHandshake)
			return
		}
		handshake := rest[wire.HandleSize:]

		key, ok := m.auth.ExtractHandshakeKey(handshake)
		if !ok {
			m.log.Debug("drop: malformed handshake key")
			m.recordDrop(metrics.DropBadHandshakeKey)
			return
		}
		ip6, ok := address.FromPublicKey(key)
		if !ok {
			m.log.Debug("drop: handshake key does not derive an fc-prefixed address")
			m.recordDrop(metrics.DropBadHandshakeKey)
			return
		}
		if key == m.ownPublicKey {
			m.log.Debug("drop: handshake claims to be from own key")
			m.recordDrop(metrics.DropOwnKey)
			return
		}

		s, err := m.getOrCreateSession(ip6, key, 0, sh.Label, false)
		if err != nil {
			m.log.Debug("drop: session creation failed", slog.Any("err", err))
			m.recordDrop(metrics.DropSessionCreateFail)
			return
		}
		sess = s
		payload = handshake
		isSetup = true
		m.mtxHandshakePacket()
	}

	plaintext, ok := m.auth.Decrypt(sess.CA(), payload)
	if !ok {
		m.log.Debug("drop: decrypt failed",
			slog.String("ip6", sess.IP6().String()),
			slog.String("state", m.auth.StateString(m.auth.State(sess.CA()))),
		)
		m.recordDrop(metrics.DropDecryptFailed)
		return
	}

	body := plaintext
	if isSetup {
		if len(plaintext) < wire.HandleSize {
			m.log.Debug("drop: handshake completion too short for send-handle")
			return
		}
		sess.SetSendHandle(crypto.Handle(binary.BigEndian.Uint32(plaintext[:wire.HandleSize])))
		body = plaintext[wire.HandleSize:]
	}

	out := make([]byte, wire.RouteHeaderSize+len(body))
	rh := wire.RouteHeader{
		SH:        sh,
		Version:   sess.Version(),
		IP6:       sess.IP6(),
		PublicKey: sess.PublicKey(),
	}
	rh.Encode(out)
	copy(out[wire.RouteHeaderSize:], body)

	if sh.Label != sess.RecvSwitchLabel() {
		sess.SetRecvSwitchLabel(sh.Label)
		m.bus.Publish(events.Event{
			Kind:           events.KindDiscoveredPath,
			DestOrSourcePf: events.BroadcastPf,
			Node: events.Node{
				Path:      sh.Label,
				Metric:    events.MetricUnknown,
				Version:   sess.Version(),
				IP6:       sess.IP6(),
				PublicKey: sess.PublicKey(),
			},
		})
		if m.mtx != nil {
			m.mtx.DiscoveredPaths.Inc()
		}
	}

	m.inside.SendInside(out)
}
