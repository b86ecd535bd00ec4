package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stopRecorder struct {
	mu    sync.Mutex
	stops []typingKey
}

func (r *stopRecorder) record(roomID, userID uuid.UUID) {
	r.mu.Lock()
	r.stops = append(r.stops, typingKey{roomID: roomID, userID: userID})
	r.mu.Unlock()
}

func (r *stopRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stops)
}

func TestTypingDebouncerStartOnce(t *testing.T) {
	rec := &stopRecorder{}
	d := NewTypingDebouncer(50*time.Millisecond, rec.record)

	roomID, userID := uuid.New(), uuid.New()

	if !d.Touch(roomID, userID) {
		t.Fatal("first Touch must report started")
	}
	if d.Touch(roomID, userID) {
		t.Error("repeated Touch within the window must not report started")
	}
	if d.Touch(roomID, userID) {
		t.Error("repeated Touch within the window must not report started")
	}

	// Одно срабатывание после окна тишины, сколько бы ни было Touch до него
	time.Sleep(150 * time.Millisecond)

	if got := rec.count(); got != 1 {
		t.Errorf("expected exactly 1 stop, got %d", got)
	}
	if d.Armed(roomID, userID) {
		t.Error("indicator must be disarmed after expiry")
	}
}

func TestTypingDebouncerRearm(t *testing.T) {
	rec := &stopRecorder{}
	d := NewTypingDebouncer(80*time.Millisecond, rec.record)

	roomID, userID := uuid.New(), uuid.New()

	d.Touch(roomID, userID)
	time.Sleep(50 * time.Millisecond)
	d.Touch(roomID, userID)
	time.Sleep(50 * time.Millisecond)

	// Второй Touch перевзвел таймер, исходное окно уже прошло
	if got := rec.count(); got != 0 {
		t.Fatalf("expected no stop while the window keeps sliding, got %d", got)
	}

	time.Sleep(100 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Errorf("expected 1 stop after the slid window, got %d", got)
	}
}

func TestTypingDebouncerExplicitStop(t *testing.T) {
	rec := &stopRecorder{}
	d := NewTypingDebouncer(time.Minute, rec.record)

	roomID, userID := uuid.New(), uuid.New()

	d.Touch(roomID, userID)
	if !d.Stop(roomID, userID) {
		t.Fatal("Stop on an armed indicator must report a transition")
	}
	if got := rec.count(); got != 1 {
		t.Fatalf("expected 1 stop callback, got %d", got)
	}

	// Повторный стоп и стоп без старта безвредны
	if d.Stop(roomID, userID) {
		t.Error("Stop must be a no-op when idle")
	}
	if d.Stop(uuid.New(), userID) {
		t.Error("Stop must be a no-op for an unknown room")
	}
	if got := rec.count(); got != 1 {
		t.Errorf("idle stops must not fire callbacks, got %d", got)
	}

	// Отмененный таймер не должен сработать позже
	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Errorf("stale timer fired after Stop, stops=%d", got)
	}
}

func TestTypingDebouncerStopAll(t *testing.T) {
	rec := &stopRecorder{}
	d := NewTypingDebouncer(time.Minute, rec.record)

	userID := uuid.New()
	other := uuid.New()
	r1, r2 := uuid.New(), uuid.New()

	d.Touch(r1, userID)
	d.Touch(r2, userID)
	d.Touch(r1, other)

	rooms := d.StopAll(userID)
	if len(rooms) != 2 {
		t.Fatalf("expected 2 swept rooms, got %d", len(rooms))
	}
	if got := rec.count(); got != 2 {
		t.Errorf("expected 2 stop callbacks, got %d", got)
	}

	// Чужой индикатор не задет
	if !d.Armed(r1, other) {
		t.Error("sweep must not touch other users")
	}
	if d.Armed(r1, userID) || d.Armed(r2, userID) {
		t.Error("swept indicators must be disarmed")
	}

	if got := d.StopAll(userID); len(got) != 0 {
		t.Errorf("repeated sweep must be empty, got %v", got)
	}
}

func TestTypingDebouncerCancel(t *testing.T) {
	rec := &stopRecorder{}
	d := NewTypingDebouncer(30*time.Millisecond, rec.record)

	roomID, userID := uuid.New(), uuid.New()

	d.Touch(roomID, userID)
	d.cancel(roomID, userID)

	time.Sleep(100 * time.Millisecond)

	// Откат снимает таймер молча, без перехода в Idle
	if got := rec.count(); got != 0 {
		t.Errorf("cancel must not fire onStop, got %d", got)
	}
	if d.Armed(roomID, userID) {
		t.Error("cancel must disarm the indicator")
	}
}
