package core

import (
	"log/slog"

	"github.com/yangm97/cjdns/src/events"
	"github.com/yangm97/cjdns/src/table"
	"github.com/yangm97/cjdns/src/wire"
)

// HandleEvent implements the event-bus pipeline's inbound half (spec.md
// Section 4.4): NODE drains a buffered packet or updates an existing
// session; SESSIONS enumerates every known session back to the requester.
// It is the Manager's events.Subscriber.HandleEvent implementation.
func (m *Manager) HandleEvent(ev events.Event) {
	switch ev.Kind {
	case events.KindNode:
		m.handleNode(ev.Node)
	case events.KindSessions:
		m.handleSessionsRequest(ev.DestOrSourcePf)
	default:
		m.log.Debug("ignoring event of non-inbound kind", slog.String("kind", ev.Kind.String()))
	}
}

func (m *Manager) handleNode(n events.Node) {
	if packet, pktScope, ok := m.buffer.Take(n.IP6); ok {
		sess, err := m.getOrCreateSession(n.IP6, n.PublicKey, n.Version, n.Path, true)
		if err != nil {
			m.log.Debug("drop: buffered-packet session creation failed",
				slog.String("ip6", n.IP6.String()), slog.Any("err", err))
			pktScope.Release()
			return
		}

		_, derr := wire.DecodeRouteHeader(packet)
		if derr != nil {
			panic("core: buffered packet lost its route header")
		}

		sess.SetSendSwitchLabel(n.Path)
		sess.SetVersion(n.Version)

		label := n.Path
		if label == 0 {
			label = sess.SendSwitchLabel()
		}

		m.readyToSend(sess, label, packet[wire.RouteHeaderSize:])
		pktScope.Release()
		return
	}

	if sess, ok := m.table.LookupByIP6(n.IP6); ok {
		sess.SetSendSwitchLabel(n.Path)
		sess.SetVersion(n.Version)
		return
	}

	// No buffered packet and no session: we have no interest in this peer
	// (spec.md Section 4.4).
}

func (m *Manager) handleSessionsRequest(requestingPf uint32) {
	m.table.ForEach(func(sess *table.Session) {
		m.bus.Publish(events.Event{
			Kind:           events.KindSession,
			DestOrSourcePf: requestingPf,
			Node: events.Node{
				Path:      sess.SendSwitchLabel(),
				Metric:    events.MetricUnknown,
				Version:   sess.Version(),
				IP6:       sess.IP6(),
				PublicKey: sess.PublicKey(),
			},
		})
	})
}
