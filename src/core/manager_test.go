package core_test

import (
	"testing"

	"github.com/yangm97/cjdns/src/alloc"
	"github.com/yangm97/cjdns/src/core"
	"github.com/yangm97/cjdns/src/crypto"
)

type testRig struct {
	mgr    *core.Manager
	auth   *fakeAuthenticator
	bus    *fakeBus
	clock  *fakeClock
	sw     *fakeSwitchSender
	inside *fakeInsideSender
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	auth := newFakeAuthenticator()
	bus := &fakeBus{}
	clock := &fakeClock{millis: 1_000_000}
	sw := &fakeSwitchSender{}
	inside := &fakeInsideSender{}

	mgr, err := core.New(core.Config{
		OwnPublicKey:        crypto.PublicKey{0xaa},
		MaxBufferedMessages: 4,
		Auth:                auth,
		Bus:                 bus,
		Clock:               clock,
		Switch:              sw,
		Inside:              inside,
	})
	if err != nil {
		t.Fatalf("core.New: %v", err)
	}
	t.Cleanup(mgr.Close)

	return &testRig{mgr: mgr, auth: auth, bus: bus, clock: clock, sw: sw, inside: inside}
}

func TestNewManagerStartsEmpty(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)

	if got := rig.mgr.SessionCount(); got != 0 {
		t.Errorf("SessionCount() = %d, want 0", got)
	}
	if got := rig.mgr.BufferedCount(); got != 0 {
		t.Errorf("BufferedCount() = %d, want 0", got)
	}
}

func TestCloseReleasesSessions(t *testing.T) {
	t.Parallel()

	auth := newFakeAuthenticator()
	bus := &fakeBus{}
	clock := &fakeClock{millis: 0}

	mgr, err := core.New(core.Config{
		Auth:   auth,
		Bus:    bus,
		Clock:  clock,
		Switch: &fakeSwitchSender{},
		Inside: &fakeInsideSender{},
	})
	if err != nil {
		t.Fatalf("core.New: %v", err)
	}

	packet := buildRouteHeaderPacket(0x10, 0, crypto.IPv6{0xfc, 1}, crypto.PublicKey{1}, []byte("a"))
	mgr.HandleInsidePacket(packet, alloc.NewScope())
	if got := mgr.SessionCount(); got != 1 {
		t.Fatalf("SessionCount() before Close = %d, want 1", got)
	}

	mgr.Close()
	mgr.Close() // idempotent

	if got := mgr.SessionCount(); got != 0 {
		t.Errorf("SessionCount() after Close = %d, want 0", got)
	}
}
