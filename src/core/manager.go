// Package core implements the Session Manager described in spec.md: the
// convergence point between the inside interface, the switch interface, and
// the Pathfinder event bus (spec.md Section 1).
//
// Grounded on the teacher's sessions/sessionInfo pair
// (_examples/mjsir911-yggdrasil-go/src/yggdrasil/session.go) for the overall
// shape of a session manager sitting over a dual-keyed table, and on
// dantte-lp-gobfd's bfd.Manager (internal/bfd/manager.go) for the
// CRUD-plus-demux API surface and structured-logging conventions this
// package follows.
package core

import (
	"log/slog"

	"github.com/yangm97/cjdns/internal/metrics"
	"github.com/yangm97/cjdns/src/alloc"
	"github.com/yangm97/cjdns/src/buffer"
	"github.com/yangm97/cjdns/src/crypto"
	"github.com/yangm97/cjdns/src/events"
	"github.com/yangm97/cjdns/src/table"
)

// Clock supplies the current time for buffer-message timestamps and session
// creation times. Injected so tests can control aging deterministically,
// grounded on the teacher's explicit time.Now() calls in sessionInfo.update
// and createSession, generalized into a seam.
type Clock interface {
	NowMillis() int64
}

// SwitchSender forwards an encrypted packet out the switch interface.
type SwitchSender interface {
	SendSwitch(packet []byte)
}

// InsideSender forwards a decrypted packet up the inside interface.
type InsideSender interface {
	SendInside(packet []byte)
}

// Config bundles the collaborators and tunables the Manager needs (spec.md
// Section 6: Configuration, and Section 6: CryptoAuth collaborator).
type Config struct {
	// OwnPublicKey is the local node's long-term public key, used to drop a
	// handshake that claims to be from ourselves (spec.md Section 4.2 step 5).
	OwnPublicKey crypto.PublicKey

	// MaxBufferedMessages bounds the buffered-message store (spec.md Section 6).
	MaxBufferedMessages int

	// MetricHalflifeMilliseconds is retained for interface compatibility and
	// unused by current logic (spec.md Section 6, Section 9's "retained dead
	// code" note).
	MetricHalflifeMilliseconds int

	Auth    crypto.Authenticator
	Bus     events.Bus
	Clock   Clock
	Switch  SwitchSender
	Inside  InsideSender
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Manager is the Session Manager. It is single-threaded by contract (spec.md
// Section 5): every exported entry point must be called from the same
// goroutine, one at a time.
type Manager struct {
	scope *alloc.Scope

	table  *table.SessionTable
	buffer *buffer.Store

	auth   crypto.Authenticator
	bus    events.Bus
	clock  Clock
	sw     SwitchSender
	inside InsideSender
	log    *slog.Logger
	mtx    *metrics.Collector

	ownPublicKey crypto.PublicKey
}

// New constructs a Manager, choosing firstHandle and wiring the session
// table and buffered-message store (spec.md Section 4.6: Wiring /
// construction).
func New(cfg Config) (*Manager, error) {
	scope := alloc.NewScope()

	st, err := table.New(scope)
	if err != nil {
		scope.Release()
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "core.manager"))

	m := &Manager{
		scope:        scope,
		table:        st,
		buffer:       buffer.New(scope, cfg.MaxBufferedMessages),
		auth:         cfg.Auth,
		bus:          cfg.Bus,
		clock:        cfg.Clock,
		sw:           cfg.Switch,
		inside:       cfg.Inside,
		log:          logger,
		mtx:          cfg.Metrics,
		ownPublicKey: cfg.OwnPublicKey,
	}

	m.log.Info("session manager constructed", slog.Uint64("first_handle", uint64(st.FirstHandle())))

	return m, nil
}

// Close releases every session, buffered message, and the table itself.
func (m *Manager) Close() {
	m.scope.Release()
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int { return m.table.Count() }

// BufferedCount returns the number of currently buffered outbound packets.
func (m *Manager) BufferedCount() int { return m.buffer.Len() }

// recordDrop increments the drop counter for reason if a metrics collector
// was configured; otherwise it is a no-op.
func (m *Manager) recordDrop(reason metrics.DropReason) {
	if m.mtx != nil {
		m.mtx.RecordDrop(reason)
	}
}

func (m *Manager) mtxRunPacket() {
	if m.mtx != nil {
		m.mtx.RunPackets.Inc()
	}
}

func (m *Manager) mtxHandshakePacket() {
	if m.mtx != nil {
		m.mtx.HandshakePackets.Inc()
	}
}

// getOrCreateSession returns the existing session for ip6, or creates one,
// emitting exactly one SESSION event before any application packet is
// forwarded from or to it (spec.md Section 5, Section 9's "Event emission
// inside session creation" note).
func (m *Manager) getOrCreateSession(ip6 crypto.IPv6, key crypto.PublicKey, version uint32, label uint64, isOutgoing bool) (*table.Session, error) {
	if sess, ok := m.table.LookupByIP6(ip6); ok {
		return sess, nil
	}

	ca, err := m.auth.NewSession(key, ip6, isOutgoing, label)
	if err != nil {
		return nil, err
	}

	now := m.clock.NowMillis()
	sess, err := m.table.Insert(ip6, ca, label, version, now, m.onSessionRemoved)
	if err != nil {
		return nil, err
	}

	m.log.Info("session created",
		slog.String("ip6", ip6.String()),
		slog.Uint64("receive_handle", uint64(sess.ReceiveHandle())),
		slog.Uint64("label", label),
	)

	if m.mtx != nil {
		m.mtx.Sessions.Inc()
		m.mtx.SessionsCreated.Inc()
	}

	m.emitSession(sess)

	return sess, nil
}

// onSessionRemoved is registered with the table at Insert time and fires
// when a session's scope is released, emitting the single SESSION_ENDED
// event spec.md Section 3 requires.
func (m *Manager) onSessionRemoved(sess *table.Session) {
	m.log.Info("session ended",
		slog.String("ip6", sess.IP6().String()),
		slog.Uint64("send_label", sess.SendSwitchLabel()),
	)
	if m.mtx != nil {
		m.mtx.Sessions.Dec()
		m.mtx.SessionsEnded.Inc()
	}
	m.bus.Publish(events.Event{
		Kind:           events.KindSessionEnded,
		DestOrSourcePf: events.BroadcastPf,
		Node: events.Node{
			Path:      sess.SendSwitchLabel(),
			Metric:    events.MetricUnknown,
			Version:   sess.Version(),
			IP6:       sess.IP6(),
			PublicKey: sess.PublicKey(),
		},
	})
}

func (m *Manager) emitSession(sess *table.Session) {
	m.bus.Publish(events.Event{
		Kind:           events.KindSession,
		DestOrSourcePf: events.BroadcastPf,
		Node: events.Node{
			Path:      sess.SendSwitchLabel(),
			Metric:    events.MetricUnknown,
			Version:   sess.Version(),
			IP6:       sess.IP6(),
			PublicKey: sess.PublicKey(),
		},
	})
}
