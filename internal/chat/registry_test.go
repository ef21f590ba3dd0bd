package chat

import (
	"errors"
	"testing"
)

type fakeConn struct {
	received []interface{}
	failWith error
	closed   bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.received = append(c.received, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestRegistryBroadcastReachesAllRoomMembers(t *testing.T) {
	registry := NewRegistry()
	conn1 := &fakeConn{}
	conn2 := &fakeConn{}
	registry.Join("conv-1", conn1)
	registry.Join("conv-1", conn2)

	delivered := registry.Broadcast("conv-1", "hello")
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
	if len(conn1.received) != 1 || len(conn2.received) != 1 {
		t.Fatalf("expected both members to receive the payload")
	}
}

func TestRegistryBroadcastIsScopedToTheRoom(t *testing.T) {
	registry := NewRegistry()
	member := &fakeConn{}
	outsider := &fakeConn{}
	registry.Join("conv-1", member)
	registry.Join("conv-2", outsider)

	registry.Broadcast("conv-1", "hello")
	if len(outsider.received) != 0 {
		t.Fatalf("payload leaked into another room")
	}
}

func TestRegistryRemovesEmptyRoomEntry(t *testing.T) {
	registry := NewRegistry()
	conn1 := &fakeConn{}
	conn2 := &fakeConn{}
	registry.Join("conv-1", conn1)
	registry.Join("conv-1", conn2)

	registry.Leave("conv-1", conn1)
	if registry.RoomSize("conv-1") != 1 {
		t.Fatalf("expected one remaining member")
	}

	registry.Leave("conv-1", conn2)
	if registry.RoomSize("conv-1") != 0 {
		t.Fatalf("expected empty room")
	}

	// broadcasting into the vacated room delivers to nobody and does not error
	if delivered := registry.Broadcast("conv-1", "anyone?"); delivered != 0 {
		t.Fatalf("expected zero deliveries, got %d", delivered)
	}
}

func TestRegistryDropsConnectionWhoseSendFails(t *testing.T) {
	registry := NewRegistry()
	healthy := &fakeConn{}
	broken := &fakeConn{failWith: errors.New("connection reset")}
	registry.Join("conv-1", broken)
	registry.Join("conv-1", healthy)

	delivered := registry.Broadcast("conv-1", "hello")
	if delivered != 1 {
		t.Fatalf("expected delivery to the healthy member only, got %d", delivered)
	}
	if !broken.closed {
		t.Fatalf("expected the broken connection to be closed")
	}
	if registry.RoomSize("conv-1") != 1 {
		t.Fatalf("expected the broken connection to be unregistered")
	}
}

func TestRegistryNotifyTargetsSingleUserConnection(t *testing.T) {
	registry := NewRegistry()
	conn := &fakeConn{}
	registry.Attach("user-b", conn)

	if ok := registry.Notify("user-b", "ping"); !ok {
		t.Fatalf("expected delivery to the live connection")
	}
	if len(conn.received) != 1 {
		t.Fatalf("expected one notification, got %d", len(conn.received))
	}

	// offline user: silent no-op
	if ok := registry.Notify("user-offline", "ping"); ok {
		t.Fatalf("notifying an offline user must be a no-op")
	}
}

func TestRegistryAttachReplacesPreviousConnection(t *testing.T) {
	registry := NewRegistry()
	old := &fakeConn{}
	replacement := &fakeConn{}
	registry.Attach("user-b", old)
	registry.Attach("user-b", replacement)

	if !old.closed {
		t.Fatalf("expected the replaced connection to be closed")
	}
	registry.Notify("user-b", "ping")
	if len(replacement.received) != 1 || len(old.received) != 0 {
		t.Fatalf("notification should reach only the replacement connection")
	}
}

func TestRegistryDetachIgnoresStaleConnection(t *testing.T) {
	registry := NewRegistry()
	old := &fakeConn{}
	current := &fakeConn{}
	registry.Attach("user-b", old)
	registry.Attach("user-b", current)

	// a late cleanup from the replaced socket must not evict the current one
	registry.Detach("user-b", old)
	if ok := registry.Notify("user-b", "ping"); !ok {
		t.Fatalf("current connection should still be registered")
	}
}
