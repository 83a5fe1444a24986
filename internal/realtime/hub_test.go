package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/tmorell/launchdeck/internal/member"
	"github.com/tmorell/launchdeck/internal/plugin"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventPluginInstalled, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventPluginInstalled, EventPluginUninstalled},
	}}

	installed := &Event{Type: EventPluginInstalled}
	uninstalled := &Event{Type: EventPluginUninstalled}
	joined := &Event{Type: EventMemberJoined}

	if !h.shouldSend(client, installed) {
		t.Error("Should receive plugin_installed events")
	}
	if !h.shouldSend(client, uninstalled) {
		t.Error("Should receive plugin_uninstalled events")
	}
	if h.shouldSend(client, joined) {
		t.Error("Should NOT receive member_joined events")
	}
}

func TestShouldSend_TenantFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		TenantIDs: []string{"ten_1"},
	}}

	matching := &Event{Type: EventPluginUpdated, TenantID: "ten_1"}
	notMatching := &Event{Type: EventPluginUpdated, TenantID: "ten_2"}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on tenant ID")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other tenants")
	}
}

func TestShouldSend_GroupFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Groups: []string{"notifications"},
	}}

	matching := &Event{
		Type: EventPluginInstalled,
		Data: map[string]any{"group": "notifications", "plugin": "discord"},
	}
	notMatching := &Event{
		Type: EventPluginInstalled,
		Data: map[string]any{"group": "automation", "plugin": "outbound-webhook"},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on group")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other groups")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	event := &Event{Type: EventPluginUpdated}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

func TestShouldSend_NonMapData(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Groups: []string{"notifications"},
	}}

	// Event with non-map data should not crash
	event := &Event{
		Type: EventMemberJoined,
		Data: "string data not a map",
	}

	// Group filter skips non-map data (can't extract the group), so event passes through
	if !h.shouldSend(client, event) {
		t.Error("Non-map data should pass through when group filter can't extract a group")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_BroadcastAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(&Event{Type: EventPluginUpdated, Timestamp: time.Now()})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_PluginEventDelivered(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.PluginEvent(plugin.Event{
		TenantID: "ten_1", Group: "notifications", Plugin: "discord", Action: "installed",
	})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for plugin event")
	}
}

func TestHub_PluginEventUnknownActionDropped(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.PluginEvent(plugin.Event{TenantID: "ten_1", Action: ""})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected no events for empty action, got %v", stats["totalEvents"])
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants membership events
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []EventType{EventMemberJoined}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Send a plugin event (should be filtered out)
	h.Broadcast(&Event{Type: EventPluginUpdated, Timestamp: time.Now()})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive plugin event")
	default:
		// Good - filtered out
	}

	// Send a membership event (should be received)
	h.MemberEvent(member.Event{
		TenantID: "ten_1", Action: "member_joined", ID: "mem_1", Role: member.RoleMember,
	})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive member_joined event")
	}
}
