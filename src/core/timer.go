package core

import "log/slog"

// BufferTick is the buffer timeout pipeline (spec.md Section 4.5): invoked
// by the event loop's timer collaborator every 10 seconds, it prunes
// buffered entries whose age has reached the TTL. nowMillis is the current
// time as milliseconds, matching Clock.NowMillis.
func (m *Manager) BufferTick(nowMillis int64) {
	removed := m.buffer.Prune(nowMillis / 1000)
	if removed > 0 {
		m.log.Debug("pruned buffered messages", slog.Int("count", removed))
	}
	if m.mtx != nil {
		m.mtx.BufferedMessages.Set(float64(m.buffer.Len()))
	}
}
