package core_test

import (
	"github.com/yangm97/cjdns/src/crypto"
	"github.com/yangm97/cjdns/src/events"
)

// fakeClock is a Clock the test controls explicitly instead of wall time.
type fakeClock struct {
	millis int64
}

func (c *fakeClock) NowMillis() int64 { return c.millis }

// fakeSwitchSender records every packet handed to SendSwitch.
type fakeSwitchSender struct {
	sent [][]byte
}

func (s *fakeSwitchSender) SendSwitch(packet []byte) {
	s.sent = append(s.sent, append([]byte(nil), packet...))
}

// fakeInsideSender records every packet handed to SendInside.
type fakeInsideSender struct {
	sent [][]byte
}

func (s *fakeInsideSender) SendInside(packet []byte) {
	s.sent = append(s.sent, append([]byte(nil), packet...))
}

// fakeBus records every published event in order, satisfying events.Bus.
type fakeBus struct {
	published []events.Event
}

func (b *fakeBus) Publish(ev events.Event) {
	b.published = append(b.published, ev)
}

// fakeAuthenticator is a minimal, non-cryptographic stand-in for the
// CryptoAuth collaborator: Encrypt/Decrypt are identity transforms so tests
// can assert on the manager's header rewriting and handle bookkeeping without
// depending on real handshake mechanics. Per-call failure is toggled via the
// exported fields below.
type fakeAuthenticator struct {
	extractedKey crypto.PublicKey
	extractOK    bool

	decryptOK bool
	encryptOK bool

	newSessionErr error
}

func newFakeAuthenticator() *fakeAuthenticator {
	return &fakeAuthenticator{extractOK: true, decryptOK: true, encryptOK: true}
}

func (a *fakeAuthenticator) ExtractHandshakeKey(msg []byte) (crypto.PublicKey, bool) {
	if !a.extractOK {
		return crypto.PublicKey{}, false
	}
	return a.extractedKey, true
}

func (a *fakeAuthenticator) NewSession(theirKey crypto.PublicKey, theirIP6 crypto.IPv6, isOutgoing bool, label uint64) (*crypto.Session, error) {
	if a.newSessionErr != nil {
		return nil, a.newSessionErr
	}
	return crypto.NewSession(theirIP6, theirKey, crypto.StateHandshakeOne), nil
}

func (a *fakeAuthenticator) Decrypt(sess *crypto.Session, msg []byte) ([]byte, bool) {
	if !a.decryptOK {
		return nil, false
	}
	return msg, true
}

func (a *fakeAuthenticator) Encrypt(sess *crypto.Session, msg []byte) ([]byte, bool) {
	if !a.encryptOK {
		return nil, false
	}
	return msg, true
}

func (a *fakeAuthenticator) State(sess *crypto.Session) crypto.State { return sess.RawState() }

func (a *fakeAuthenticator) ResetIfTimeout(sess *crypto.Session) {}

func (a *fakeAuthenticator) StateString(s crypto.State) string { return s.String() }
