package websocket

import (
	"sync"

	"github.com/google/uuid"
)

// MembershipIndex - кэш членства комнат поверх хранилища для быстрых
// решений о fan-out. Прямая и обратная карты меняются только вместе,
// поэтому membersOf и roomsFor всегда взаимно обратны.
type MembershipIndex struct {
	mu          sync.RWMutex
	roomsByUser map[uuid.UUID]map[uuid.UUID]struct{}
	usersByRoom map[uuid.UUID]map[uuid.UUID]struct{}
	hydrated    map[uuid.UUID]bool

	// loader поднимает комнаты пользователя из хранилища при первом обращении
	loader func(userID uuid.UUID) ([]uuid.UUID, error)
}

func NewMembershipIndex(loader func(userID uuid.UUID) ([]uuid.UUID, error)) *MembershipIndex {
	return &MembershipIndex{
		roomsByUser: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		usersByRoom: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		hydrated:    make(map[uuid.UUID]bool),
		loader:      loader,
	}
}

// LoadForUser лениво гидрирует индекс из хранилища при первом подключении
// пользователя и возвращает его комнаты.
func (m *MembershipIndex) LoadForUser(userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	done := m.hydrated[userID]
	m.mu.RUnlock()

	if !done {
		rooms, err := m.loader(userID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		for _, roomID := range rooms {
			m.addLocked(roomID, userID)
		}
		m.hydrated[userID] = true
		m.mu.Unlock()
	}

	return m.RoomsFor(userID), nil
}

func (m *MembershipIndex) AddMember(roomID, userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addLocked(roomID, userID)
}

func (m *MembershipIndex) RemoveMember(roomID, userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rooms, ok := m.roomsByUser[userID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(m.roomsByUser, userID)
		}
	}
	if users, ok := m.usersByRoom[roomID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(m.usersByRoom, roomID)
		}
	}
}

func (m *MembershipIndex) RoomsFor(userID uuid.UUID) []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]uuid.UUID, 0, len(m.roomsByUser[userID]))
	for roomID := range m.roomsByUser[userID] {
		rooms = append(rooms, roomID)
	}
	return rooms
}

func (m *MembershipIndex) MembersOf(roomID uuid.UUID) []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(m.usersByRoom[roomID]))
	for userID := range m.usersByRoom[roomID] {
		users = append(users, userID)
	}
	return users
}

func (m *MembershipIndex) IsMember(roomID, userID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.usersByRoom[roomID][userID]
	return ok
}

func (m *MembershipIndex) addLocked(roomID, userID uuid.UUID) {
	if _, ok := m.roomsByUser[userID]; !ok {
		m.roomsByUser[userID] = make(map[uuid.UUID]struct{})
	}
	m.roomsByUser[userID][roomID] = struct{}{}

	if _, ok := m.usersByRoom[roomID]; !ok {
		m.usersByRoom[roomID] = make(map[uuid.UUID]struct{})
	}
	m.usersByRoom[roomID][userID] = struct{}{}
}
