package websocket

import (
	"testing"

	"github.com/google/uuid"
)

func TestRegistryBind(t *testing.T) {
	hub := NewHub()
	reg := NewRegistry()
	userID := uuid.New()

	client := NewClient(hub, nil, userID)

	first, err := reg.Bind(client, userID)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if !first {
		t.Error("expected first=true for the first connection")
	}

	if !reg.IsOnline(userID) {
		t.Error("expected user to be online after bind")
	}

	t.Run("rebind same user is a no-op", func(t *testing.T) {
		first, err := reg.Bind(client, userID)
		if err != nil {
			t.Fatalf("Bind() error = %v", err)
		}
		if first {
			t.Error("expected first=false on rebind")
		}
		if got := len(reg.ConnectionsFor(userID)); got != 1 {
			t.Errorf("expected 1 connection, got %d", got)
		}
	})

	t.Run("rebind to another user fails", func(t *testing.T) {
		_, err := reg.Bind(client, uuid.New())
		if err != ErrAlreadyBound {
			t.Errorf("expected ErrAlreadyBound, got %v", err)
		}
	})
}

func TestRegistryMultipleConnections(t *testing.T) {
	hub := NewHub()
	reg := NewRegistry()
	userID := uuid.New()

	c1 := NewClient(hub, nil, userID)
	c2 := NewClient(hub, nil, userID)

	if first, _ := reg.Bind(c1, userID); !first {
		t.Error("expected first=true for c1")
	}
	if first, _ := reg.Bind(c2, userID); first {
		t.Error("expected first=false for c2")
	}

	if got := len(reg.ConnectionsFor(userID)); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}

	if _, last, ok := reg.Unbind(c1); !ok || last {
		t.Errorf("Unbind(c1) = last=%v ok=%v, want last=false ok=true", last, ok)
	}
	if !reg.IsOnline(userID) {
		t.Error("user must stay online while c2 is bound")
	}

	if _, last, ok := reg.Unbind(c2); !ok || !last {
		t.Errorf("Unbind(c2) = last=%v ok=%v, want last=true ok=true", last, ok)
	}
	if reg.IsOnline(userID) {
		t.Error("user must be offline after last unbind")
	}
}

func TestRegistryUnbindUnbound(t *testing.T) {
	reg := NewRegistry()
	client := NewClient(NewHub(), nil, uuid.New())

	if _, _, ok := reg.Unbind(client); ok {
		t.Error("Unbind of an unbound connection must be a no-op")
	}
}

func TestRegistryOnlineUsers(t *testing.T) {
	hub := NewHub()
	reg := NewRegistry()
	u1, u2 := uuid.New(), uuid.New()

	c1 := NewClient(hub, nil, u1)
	c2 := NewClient(hub, nil, u2)
	reg.Bind(c1, u1)
	reg.Bind(c2, u2)

	online := toSet(reg.OnlineUsers())
	if len(online) != 2 || !online[u1] || !online[u2] {
		t.Errorf("OnlineUsers() = %v, want both users", reg.OnlineUsers())
	}

	reg.Unbind(c2)
	online = toSet(reg.OnlineUsers())
	if len(online) != 1 || !online[u1] {
		t.Errorf("OnlineUsers() = %v, want only the bound user", reg.OnlineUsers())
	}
}

func TestRegistryConnectionsForUnknownUser(t *testing.T) {
	reg := NewRegistry()

	if got := reg.ConnectionsFor(uuid.New()); len(got) != 0 {
		t.Errorf("expected empty slice, got %d connections", len(got))
	}
}
