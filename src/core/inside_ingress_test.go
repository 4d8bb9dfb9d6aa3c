package core_test

import (
	"bytes"
	"testing"

	"github.com/yangm97/cjdns/src/alloc"
	"github.com/yangm97/cjdns/src/crypto"
	"github.com/yangm97/cjdns/src/events"
	"github.com/yangm97/cjdns/src/wire"
)

func buildRouteHeaderPacket(label uint64, version uint32, ip6 crypto.IPv6, key crypto.PublicKey, body []byte) []byte {
	packet := make([]byte, wire.RouteHeaderSize+len(body))
	rh := wire.RouteHeader{
		SH:        wire.SwitchHeader{Label: label},
		Version:   version,
		IP6:       ip6,
		PublicKey: key,
	}
	rh.Encode(packet)
	copy(packet[wire.RouteHeaderSize:], body)
	return packet
}

func TestHandleInsidePacketCreatesSessionAndSendsHandshake(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	ip6 := crypto.IPv6{0xfc, 1}
	key := crypto.PublicKey{1, 2, 3}
	body := []byte("outbound payload")

	packet := buildRouteHeaderPacket(0x55, 18, ip6, key, body)
	rig.mgr.HandleInsidePacket(packet, alloc.NewScope())

	if got := rig.mgr.SessionCount(); got != 1 {
		t.Fatalf("SessionCount() = %d, want 1", got)
	}
	if len(rig.sw.sent) != 1 {
		t.Fatalf("SendSwitch called %d times, want 1", len(rig.sw.sent))
	}

	out := rig.sw.sent[0]
	sh, err := wire.DecodeSwitchHeader(out)
	if err != nil {
		t.Fatalf("DecodeSwitchHeader: %v", err)
	}
	if sh.Label != 0x55 {
		t.Errorf("forwarded label = %x, want 0x55", sh.Label)
	}

	// Session is freshly created (pre-HANDSHAKE3), so the forwarded frame
	// carries our receiveHandle ahead of the "ciphertext" (identity fake).
	rest := out[wire.SwitchHeaderSize:]
	if !bytes.Contains(rest, body) {
		t.Errorf("forwarded frame does not contain original body: %x", rest)
	}
}

func TestHandleInsidePacketWithNoLabelOrSessionBuffers(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	ip6 := crypto.IPv6{0xfc, 2}

	packet := buildRouteHeaderPacket(0, 0, ip6, crypto.PublicKey{}, []byte("no route yet"))
	rig.mgr.HandleInsidePacket(packet, alloc.NewScope())

	if got := rig.mgr.BufferedCount(); got != 1 {
		t.Fatalf("BufferedCount() = %d, want 1", got)
	}
	if len(rig.sw.sent) != 0 {
		t.Error("a packet with no session and no key must not be forwarded")
	}

	var sawSearchReq bool
	for _, ev := range rig.bus.published {
		if ev.Kind == events.KindSearchReq {
			sawSearchReq = true
		}
	}
	if !sawSearchReq {
		t.Error("expected a SEARCH_REQ event when buffering")
	}
}

func TestHandleInsidePacketReplacesBufferedEntry(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	ip6 := crypto.IPv6{0xfc, 3}

	first := buildRouteHeaderPacket(0, 0, ip6, crypto.PublicKey{}, []byte("first"))
	second := buildRouteHeaderPacket(0, 0, ip6, crypto.PublicKey{}, []byte("second"))

	rig.mgr.HandleInsidePacket(first, alloc.NewScope())
	rig.mgr.HandleInsidePacket(second, alloc.NewScope())

	if got := rig.mgr.BufferedCount(); got != 1 {
		t.Errorf("BufferedCount() = %d, want 1 (replace, not stack)", got)
	}
}

func TestHandleInsidePacketUsesExistingSessionLabel(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	ip6 := crypto.IPv6{0xfc, 4}
	key := crypto.PublicKey{4, 4, 4}

	// First packet with an explicit label creates the session and records it.
	first := buildRouteHeaderPacket(0x77, 0, ip6, key, []byte("a"))
	rig.mgr.HandleInsidePacket(first, alloc.NewScope())

	// Second packet with no label should reuse the session's sendSwitchLabel.
	second := buildRouteHeaderPacket(0, 0, ip6, crypto.PublicKey{}, []byte("b"))
	rig.mgr.HandleInsidePacket(second, alloc.NewScope())

	if got := rig.mgr.BufferedCount(); got != 0 {
		t.Errorf("BufferedCount() = %d, want 0 -- second packet should reuse the known label", got)
	}
	if len(rig.sw.sent) != 2 {
		t.Errorf("SendSwitch called %d times, want 2", len(rig.sw.sent))
	}
}
