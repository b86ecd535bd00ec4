package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 512 * 1024 // 512KB
)

// EventHandler обрабатывает входящие события соединения.
// Disconnected вызывается ровно один раз при разрыве, включая аварийный.
type EventHandler interface {
	HandleEvent(client *Client, ev *Event) error
	Disconnected(client *Client)
}

// Client - одно живое соединение. UserID приходит из auth-рукопожатия при
// апгрейде; привязка к реестру происходит только на событии connect.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub

	mu    sync.RWMutex
	rooms map[uuid.UUID]bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		rooms:  make(map[uuid.UUID]bool),
		Hub:    hub,
	}
}

// ReadPump читает события от клиента
func (c *Client) ReadPump(handler EventHandler) {
	defer func() {
		handler.Disconnected(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev Event
		err := c.Conn.ReadJSON(&ev)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if ev.Type == EventPong {
			continue
		}

		ev.UserID = c.UserID

		if err := handler.HandleEvent(c, &ev); err != nil {
			log.Printf("Error handling %s: %v", ev.Type, err)
			c.SendError(err.Error())
		}

		if ev.Type == EventDisconnect {
			break
		}
	}
}

// WritePump отправляет события клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.Conn.WriteMessage(websocket.TextMessage, data)

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent сериализует и ставит событие в очередь отправки
func (c *Client) SendEvent(eventType EventType, roomID *uuid.UUID, data interface{}) error {
	raw, err := marshalEvent(eventType, roomID, c.UserID, data)
	if err != nil {
		return err
	}

	select {
	case c.Send <- raw:
		return nil
	default:
		return ErrClientQueueFull
	}
}

// SendError отправляет ошибку только этому соединению
func (c *Client) SendError(errorMsg string) {
	c.SendEvent(EventRoomError, nil, map[string]string{
		"error": errorMsg,
	})
}

func (c *Client) IsInRoom(roomID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[roomID]
}

// push - неблокирующая запись; переполненная очередь теряет событие
func (c *Client) push(data []byte) {
	select {
	case c.Send <- data:
	default:
		log.Printf("Client %s send channel full", c.ID)
	}
}

func (c *Client) subscribe(roomID uuid.UUID) {
	c.mu.Lock()
	c.rooms[roomID] = true
	c.mu.Unlock()
}

func (c *Client) unsubscribe(roomID uuid.UUID) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

func (c *Client) subscriptions() map[uuid.UUID]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make(map[uuid.UUID]bool, len(c.rooms))
	for roomID := range c.rooms {
		rooms[roomID] = true
	}
	return rooms
}
