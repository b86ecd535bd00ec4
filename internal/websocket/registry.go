package websocket

import (
	"sync"

	"github.com/google/uuid"
)

// Registry отслеживает привязку живых соединений к пользователям.
// Один пользователь может держать несколько соединений одновременно.
// Все мутации сериализованы внутренним мьютексом; присутствие
// (online/offline) переключает вызывающая сторона по флагам first/last.
type Registry struct {
	mu     sync.RWMutex
	byConn map[uuid.UUID]uuid.UUID
	byUser map[uuid.UUID]map[uuid.UUID]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[uuid.UUID]uuid.UUID),
		byUser: make(map[uuid.UUID]map[uuid.UUID]*Client),
	}
}

// Bind привязывает соединение к пользователю. Повторная привязка того же
// соединения к тому же пользователю - no-op, к другому - ErrAlreadyBound.
// first=true, если это первое живое соединение пользователя.
func (r *Registry) Bind(client *Client, userID uuid.UUID) (first bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bound, ok := r.byConn[client.ID]; ok {
		if bound == userID {
			return false, nil
		}
		return false, ErrAlreadyBound
	}

	r.byConn[client.ID] = userID

	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[uuid.UUID]*Client)
		r.byUser[userID] = conns
	}
	conns[client.ID] = client

	return len(conns) == 1, nil
}

// Unbind снимает привязку. last=true, если соединений у пользователя
// больше не осталось. Для непривязанного соединения - no-op.
func (r *Registry) Unbind(client *Client) (userID uuid.UUID, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.byConn[client.ID]
	if !ok {
		return uuid.Nil, false, false
	}

	delete(r.byConn, client.ID)

	if conns, exists := r.byUser[userID]; exists {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(r.byUser, userID)
			last = true
		}
	}

	return userID, last, true
}

// UserOf возвращает пользователя, к которому привязано соединение
func (r *Registry) UserOf(client *Client) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.byConn[client.ID]
	return userID, ok
}

// ConnectionsFor возвращает живые соединения пользователя, возможно пустой срез
func (r *Registry) ConnectionsFor(userID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	clients := make([]*Client, 0, len(conns))
	for _, c := range conns {
		clients = append(clients, c)
	}
	return clients
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser[userID]) > 0
}

// OnlineUsers возвращает список пользователей хотя бы с одним соединением
func (r *Registry) OnlineUsers() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	return users
}
