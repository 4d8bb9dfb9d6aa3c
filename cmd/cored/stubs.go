package main

import (
	"log/slog"
	"time"

	"github.com/yangm97/cjdns/internal/config"
	"github.com/yangm97/cjdns/internal/metrics"
	"github.com/yangm97/cjdns/src/core"
	"github.com/yangm97/cjdns/src/crypto"
	"github.com/yangm97/cjdns/src/events"
)

// newManager builds a core.Manager wired to the collaborators that are out
// of scope for this component (spec.md Section 1): CryptoAuth, the
// Pathfinder event bus, and the inside/switch transport. The stand-ins below
// keep cored runnable end-to-end without them; swapping in real adapters
// means replacing noopBus/discardSender/droppingAuthenticator with
// production implementations, not touching core.Manager.
func newManager(cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) (*core.Manager, error) {
	return core.New(core.Config{
		MaxBufferedMessages:        cfg.Session.MaxBufferedMessages,
		MetricHalflifeMilliseconds: cfg.Session.MetricHalflifeMilliseconds,
		Auth:                       droppingAuthenticator{},
		Bus:                        noopBus{logger: logger},
		Clock:                      wallClock{},
		Switch:                     discardSender{logger: logger, interfaceName: "switch"},
		Inside:                     discardSender{logger: logger, interfaceName: "inside"},
		Logger:                     logger,
		Metrics:                    collector,
	})
}

// wallClock is the production Clock, grounded on the teacher's direct
// time.Now() calls in createSession/sessionInfo.update.
type wallClock struct{}

func (wallClock) NowMillis() int64 { return time.Now().UnixMilli() }

// discardSender logs and drops packets handed to the switch or inside
// interface. A real deployment replaces this with the actual network
// transport; those interfaces are out of scope for this component.
type discardSender struct {
	logger        *slog.Logger
	interfaceName string
}

func (d discardSender) SendSwitch(packet []byte) {
	d.logger.Debug("discarding outbound packet: no transport wired",
		slog.String("interface", d.interfaceName), slog.Int("len", len(packet)))
}

func (d discardSender) SendInside(packet []byte) {
	d.logger.Debug("discarding outbound packet: no transport wired",
		slog.String("interface", d.interfaceName), slog.Int("len", len(packet)))
}

// noopBus logs published events without delivering them anywhere. A real
// deployment replaces this with the Pathfinder event-bus client.
type noopBus struct {
	logger *slog.Logger
}

func (b noopBus) Publish(ev events.Event) {
	b.logger.Debug("dropping published event: no pathfinder bus wired", slog.String("kind", ev.Kind.String()))
}

// droppingAuthenticator implements crypto.Authenticator by failing every
// handshake-key extraction, decrypt and encrypt (NewSession succeeds, with
// the session in HandshakeOne), standing in for the CryptoAuth collaborator
// (out of scope per spec.md Section 1) until a real implementation is wired
// in.
type droppingAuthenticator struct{}

func (droppingAuthenticator) ExtractHandshakeKey([]byte) (crypto.PublicKey, bool) {
	return crypto.PublicKey{}, false
}

func (droppingAuthenticator) NewSession(theirKey crypto.PublicKey, theirIP6 crypto.IPv6, isOutgoing bool, label uint64) (*crypto.Session, error) {
	return crypto.NewSession(theirIP6, theirKey, crypto.StateHandshakeOne), nil
}

func (droppingAuthenticator) Decrypt(*crypto.Session, []byte) ([]byte, bool) { return nil, false }

func (droppingAuthenticator) Encrypt(*crypto.Session, []byte) ([]byte, bool) { return nil, false }

func (droppingAuthenticator) State(sess *crypto.Session) crypto.State { return sess.RawState() }

func (droppingAuthenticator) ResetIfTimeout(sess *crypto.Session) {
	sess.SetRawState(crypto.StateHandshakeOne)
}

func (droppingAuthenticator) StateString(s crypto.State) string { return s.String() }
