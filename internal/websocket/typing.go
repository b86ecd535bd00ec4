package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Окно тишины, после которого индикатор печати гаснет сам
const typingWindow = 2 * time.Second

type typingKey struct {
	roomID uuid.UUID
	userID uuid.UUID
}

type typingEntry struct {
	timer *time.Timer
	gen   uint64
}

// TypingDebouncer ведет машину состояний Idle -> Typing -> Idle на каждую
// пару (комната, пользователь). Повторные события печати перевзводят таймер
// без повторного "started". Счетчик поколений отбрасывает срабатывание
// таймера, устаревшее из-за гонки с перевзводом или явным стопом.
type TypingDebouncer struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[typingKey]*typingEntry
	gen     uint64

	// onStop вызывается для каждого перехода Typing -> Idle:
	// таймаут, явный стоп и зачистка при отключении
	onStop func(roomID, userID uuid.UUID)
}

func NewTypingDebouncer(window time.Duration, onStop func(roomID, userID uuid.UUID)) *TypingDebouncer {
	if window <= 0 {
		window = typingWindow
	}
	return &TypingDebouncer{
		window:  window,
		entries: make(map[typingKey]*typingEntry),
		onStop:  onStop,
	}
}

// Touch регистрирует событие печати. Возвращает true только на переходе
// Idle -> Typing; при уже взведенном таймере просто перевзводит его.
func (d *TypingDebouncer) Touch(roomID, userID uuid.UUID) bool {
	key := typingKey{roomID: roomID, userID: userID}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen

	if entry, ok := d.entries[key]; ok {
		entry.timer.Stop()
		entry.gen = gen
		entry.timer = time.AfterFunc(d.window, func() { d.expire(key, gen) })
		return false
	}

	d.entries[key] = &typingEntry{
		gen:   gen,
		timer: time.AfterFunc(d.window, func() { d.expire(key, gen) }),
	}
	return true
}

// Stop гасит индикатор по явному пустому событию.
// Для неактивного ключа - безвредный no-op.
func (d *TypingDebouncer) Stop(roomID, userID uuid.UUID) bool {
	key := typingKey{roomID: roomID, userID: userID}

	d.mu.Lock()
	entry, ok := d.entries[key]
	if ok {
		entry.timer.Stop()
		delete(d.entries, key)
	}
	d.mu.Unlock()

	if ok {
		d.onStop(roomID, userID)
	}
	return ok
}

// StopAll гасит все индикаторы пользователя при отключении и возвращает
// затронутые комнаты. Таймеры снимаются детерминированно, ни один не
// сработает после зачистки.
func (d *TypingDebouncer) StopAll(userID uuid.UUID) []uuid.UUID {
	d.mu.Lock()
	var rooms []uuid.UUID
	for key, entry := range d.entries {
		if key.userID != userID {
			continue
		}
		entry.timer.Stop()
		delete(d.entries, key)
		rooms = append(rooms, key.roomID)
	}
	d.mu.Unlock()

	for _, roomID := range rooms {
		d.onStop(roomID, userID)
	}
	return rooms
}

// Armed сообщает, взведен ли индикатор для пары (комната, пользователь)
func (d *TypingDebouncer) Armed(roomID, userID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.entries[typingKey{roomID: roomID, userID: userID}]
	return ok
}

// cancel снимает таймер без перехода в Idle: для отката, когда
// персистентность старта не удалась и "started" так и не ушел
func (d *TypingDebouncer) cancel(roomID, userID uuid.UUID) {
	key := typingKey{roomID: roomID, userID: userID}

	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.entries[key]; ok {
		entry.timer.Stop()
		delete(d.entries, key)
	}
}

func (d *TypingDebouncer) expire(key typingKey, gen uint64) {
	d.mu.Lock()
	entry, ok := d.entries[key]
	if !ok || entry.gen != gen {
		// Таймер устарел: ключ уже погашен или перевзведен
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	d.mu.Unlock()

	d.onStop(key.roomID, key.userID)
}
