package websocket

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub владеет живыми соединениями и подписками на комнаты и выполняет
// fan-out. Запись получателю неблокирующая: медленный клиент теряет
// события, но не тормозит комнату.
type Hub struct {
	registry *Registry

	// Соединения, подписанные на комнату (уровень соединения, не пользователя)
	rooms map[uuid.UUID]map[uuid.UUID]*Client

	clients map[uuid.UUID]*Client

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry: NewRegistry(),
		rooms:    make(map[uuid.UUID]map[uuid.UUID]*Client),
		clients:  make(map[uuid.UUID]*Client),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry возвращает реестр привязок соединений к пользователям
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run гоняет keepalive ping, пока hub не остановят
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.rooms = make(map[uuid.UUID]map[uuid.UUID]*Client)
}

// Register регистрирует новое соединение. До connect-рукопожатия оно
// не привязано к пользователю и не получает событий комнат.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	log.Printf("Client registered: %s", client.ID)
}

// Unregister убирает соединение из всех комнат и закрывает его канал
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for roomID := range client.subscriptions() {
		h.removeFromRoomLocked(client, roomID)
	}

	delete(h.clients, client.ID)
	close(client.Send)

	log.Printf("Client unregistered: %s", client.ID)
}

// JoinRoom подписывает соединение на события комнаты. Только локальная
// подписка, без персистентности и без broadcast.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}
	h.rooms[roomID][client.ID] = client
	client.subscribe(roomID)
}

// LeaveRoom снимает подписку соединения на комнату
func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(client, roomID)
}

func (h *Hub) removeFromRoomLocked(client *Client, roomID uuid.UUID) {
	if room, ok := h.rooms[roomID]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	client.unsubscribe(roomID)
}

// SendToRoom отправляет событие всем подписанным на комнату соединениям
func (h *Hub) SendToRoom(roomID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[roomID] {
		client.push(data)
	}
}

// SendToRoomExcept отправляет событие в комнату, пропуская все
// соединения указанного пользователя
func (h *Hub) SendToRoomExcept(roomID uuid.UUID, data []byte, excludeUserID uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[roomID] {
		if userID, ok := h.registry.UserOf(client); ok && userID == excludeUserID {
			continue
		}
		client.push(data)
	}
}

// SendToUser отправляет событие на все живые соединения пользователя.
// Срез из реестра может опережать Unregister, поэтому под RLock пушим
// только соединениям, еще состоящим в hub: их каналы открыты.
func (h *Hub) SendToUser(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.registry.ConnectionsFor(userID) {
		if _, ok := h.clients[client.ID]; !ok {
			continue
		}
		client.push(data)
	}
}

// SendToAll отправляет событие всем зарегистрированным соединениям
func (h *Hub) SendToAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		client.push(data)
	}
}

// OnlineInRoom возвращает пользователей с хотя бы одним соединением в комнате
func (h *Hub) OnlineInRoom(roomID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	for _, client := range h.rooms[roomID] {
		if userID, ok := h.registry.UserOf(client); ok {
			seen[userID] = true
		}
	}

	users := make([]uuid.UUID, 0, len(seen))
	for userID := range seen {
		users = append(users, userID)
	}
	return users
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if data, err := marshalEvent(EventPing, nil, uuid.Nil, nil); err == nil {
		for _, client := range h.clients {
			client.push(data)
		}
	}
}
