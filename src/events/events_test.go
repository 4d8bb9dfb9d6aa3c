package events_test

import (
	"testing"

	"github.com/yangm97/cjdns/src/events"
)

func TestKindString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		k    events.Kind
		want string
	}{
		{events.KindNode, "NODE"},
		{events.KindSessions, "SESSIONS"},
		{events.KindSession, "SESSION"},
		{events.KindSessionEnded, "SESSION_ENDED"},
		{events.KindDiscoveredPath, "DISCOVERED_PATH"},
		{events.KindSearchReq, "SEARCH_REQ"},
		{events.Kind(999), "UNKNOWN"},
	}

	for _, tc := range cases {
		if got := tc.k.String(); got != tc.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tc.k, got, tc.want)
		}
	}
}

type recordingBus struct {
	events []events.Event
}

func (b *recordingBus) Publish(ev events.Event) {
	b.events = append(b.events, ev)
}

func TestBusPublishOrdering(t *testing.T) {
	t.Parallel()

	var bus recordingBus
	bus.Publish(events.Event{Kind: events.KindSession, DestOrSourcePf: events.BroadcastPf})
	bus.Publish(events.Event{Kind: events.KindDiscoveredPath, DestOrSourcePf: events.BroadcastPf})

	if len(bus.events) != 2 {
		t.Fatalf("got %d events, want 2", len(bus.events))
	}
	if bus.events[0].Kind != events.KindSession || bus.events[1].Kind != events.KindDiscoveredPath {
		t.Error("events should be recorded in publish order")
	}
}
