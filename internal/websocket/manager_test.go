package websocket

import (
	"testing"
	"time"
)

func newTestManager(maxClients int) *Manager {
	return NewManager(maxClients, 512, time.Second, time.Minute, 30*time.Second)
}

func TestManager_RegisterAfterStopDoesNotBlock(t *testing.T) {
	m := newTestManager(10)
	go m.Run()
	m.Stop()

	registered := make(chan bool, 1)
	go func() {
		registered <- m.Register(NewClient("late", "127.0.0.1:1", nil, m))
	}()

	select {
	case ok := <-registered:
		if ok {
			t.Error("expected Register to report false after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("Register blocked after Stop")
	}
}

func TestManager_RegisterWithoutRunAfterStop(t *testing.T) {
	m := newTestManager(10)
	m.Stop()

	done := make(chan struct{})
	go func() {
		m.Register(NewClient("late", "127.0.0.1:1", nil, m))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Register blocked on a stopped manager")
	}
}

func TestManager_RegisterAndMaxClients(t *testing.T) {
	m := newTestManager(1)
	go m.Run()
	defer m.Stop()

	first := NewClient("a", "127.0.0.1:1", nil, m)
	second := NewClient("b", "127.0.0.1:2", nil, m)

	if !m.Register(first) || !m.Register(second) {
		t.Fatal("expected both registrations to be accepted by Run")
	}

	deadline := time.Now().Add(time.Second)
	for m.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", m.ClientCount())
	}

	select {
	case _, open := <-second.Send:
		if open {
			t.Error("expected rejected client's send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("rejected client was not closed")
	}
}
