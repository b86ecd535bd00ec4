package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/relaychat/internal/models"
)

// EventType определяет типы событий
type EventType string

const (
	// Системные типы
	EventPing EventType = "ping"
	EventPong EventType = "pong"

	// Входящие события
	EventConnect        EventType = "connect"
	EventDisconnect     EventType = "disconnect"
	EventJoinRoom       EventType = "join-room"
	EventLeaveRoom      EventType = "leave-room"
	EventSendMessage    EventType = "send-message"
	EventEditMessage    EventType = "edit-message"
	EventDeleteMessage  EventType = "delete-message"
	EventAddReaction    EventType = "add-message-reaction"
	EventRemoveReaction EventType = "remove-message-reaction"
	EventTypingMessage  EventType = "typing-message"
	EventCreateRoom     EventType = "create-room"
	EventAddRoomUser    EventType = "add-room-user"
	EventRemoveRoomUser EventType = "remove-room-user"

	// Исходящие события
	EventMessageAdded      EventType = "message-added"
	EventMessageEdited     EventType = "message-edited"
	EventMessageDeleted    EventType = "message-deleted"
	EventRoomAdded         EventType = "room-added"
	EventRoomUpdated       EventType = "room-updated"
	EventRoomRemoved       EventType = "room-removed"
	EventRoomCreated       EventType = "room-created"
	EventRoomError         EventType = "room-error"
	EventUserStatusChanged EventType = "user-status-changed"
	EventUserStartedTyping EventType = "user-started-typing"
	EventUserStoppedTyping EventType = "user-stopped-typing"
	EventReactionAdded     EventType = "message-reaction-added"
	EventReactionRemoved   EventType = "message-reaction-removed"
	EventRoomUserAdded     EventType = "room-user-added"
	EventRoomUserRemoved   EventType = "room-user-removed"
)

// Event - конверт для всех событий через соединение
type Event struct {
	Type      EventType       `json:"event"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func marshalEvent(eventType EventType, roomID *uuid.UUID, userID uuid.UUID, data interface{}) ([]byte, error) {
	ev := Event{
		Type:      eventType,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: time.Now(),
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		ev.Data = raw
	}

	return json.Marshal(ev)
}

// Входящие payload'ы

type SendMessagePayload struct {
	Content string        `json:"content"`
	Files   []FilePayload `json:"files,omitempty"`
}

type FilePayload struct {
	Name      string  `json:"name"`
	Size      int64   `json:"size"`
	Type      string  `json:"type"`
	Extension string  `json:"extension"`
	URL       string  `json:"url"`
	Preview   string  `json:"preview,omitempty"`
	Audio     bool    `json:"audio,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}

type EditMessagePayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Content   string    `json:"content"`
}

type DeleteMessagePayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

type ReactionPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Emoji     string    `json:"emoji"`
	Unicode   string    `json:"unicode,omitempty"`
}

type TypingPayload struct {
	Content string `json:"content"`
}

type CreateRoomPayload struct {
	Name    string      `json:"name"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

type RoomUserPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// Исходящие представления

type UserView struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Status    string    `json:"status,omitempty"`
}

type FileView struct {
	Name      string  `json:"name"`
	Size      int64   `json:"size"`
	Type      string  `json:"type"`
	Extension string  `json:"extension"`
	URL       string  `json:"url"`
	Preview   string  `json:"preview,omitempty"`
	Audio     bool    `json:"audio,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}

// ReactionGroup - агрегат реакций одного эмодзи
type ReactionGroup struct {
	Unicode string      `json:"unicode"`
	Users   []uuid.UUID `json:"users"`
}

type MessageView struct {
	ID        uuid.UUID                `json:"id"`
	RoomID    uuid.UUID                `json:"room_id"`
	SenderID  uuid.UUID                `json:"sender_id"`
	Username  string                   `json:"username,omitempty"`
	AvatarURL string                   `json:"avatar_url,omitempty"`
	Content   string                   `json:"content"`
	Edited    bool                     `json:"edited"`
	Deleted   bool                     `json:"deleted"`
	CreatedAt time.Time                `json:"created_at"`
	Files     []FileView               `json:"files,omitempty"`
	Reactions map[string]ReactionGroup `json:"reactions"`
}

type RoomView struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	LastMessage string     `json:"last_message,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`
	Users       []UserView `json:"users"`
}

type StatusView struct {
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"`
}

// LastMessageView - денормализованная сводка для room-updated
type LastMessageView struct {
	Content   string    `json:"content"`
	SenderID  uuid.UUID `json:"sender_id"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type RoomSummaryView struct {
	RoomID      uuid.UUID       `json:"room_id"`
	LastMessage LastMessageView `json:"last_message"`
}

type ReactionRef struct {
	Emoji   string `json:"emoji"`
	Unicode string `json:"unicode,omitempty"`
}

// ReactionEventView несет действующего пользователя и итоговый агрегат
type ReactionEventView struct {
	MessageID uuid.UUID                `json:"message_id"`
	UserID    uuid.UUID                `json:"user_id"`
	Reaction  ReactionRef              `json:"reaction"`
	Reactions map[string]ReactionGroup `json:"reactions"`
}

// NewMessageView собирает представление из модели с предзагруженными связями
func NewMessageView(msg *models.Message) MessageView {
	view := MessageView{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Edited:    msg.Edited,
		Deleted:   msg.Deleted,
		CreatedAt: msg.CreatedAt,
		Reactions: aggregateReactions(msg.Reactions),
	}

	if msg.Sender.ID != uuid.Nil {
		view.Username = msg.Sender.Username
		view.AvatarURL = msg.Sender.AvatarURL
	}

	for _, f := range msg.Files {
		view.Files = append(view.Files, FileView{
			Name:      f.Name,
			Size:      f.Size,
			Type:      f.Type,
			Extension: f.Extension,
			URL:       f.URL,
			Preview:   f.Preview,
			Audio:     f.Audio,
			Duration:  f.Duration,
		})
	}

	return view
}

// NewRoomView собирает представление комнаты с участниками
func NewRoomView(room *models.Room) RoomView {
	view := RoomView{
		ID:          room.ID,
		Name:        room.Name,
		AvatarURL:   room.AvatarURL,
		LastMessage: room.LastMessage,
		LastUpdated: room.LastUpdated,
		Users:       make([]UserView, 0, len(room.Members)),
	}

	for _, m := range room.Members {
		view.Users = append(view.Users, UserView{
			ID:        m.ID,
			Username:  m.Username,
			AvatarURL: m.AvatarURL,
			Status:    m.Status,
		})
	}

	return view
}

func aggregateReactions(reactions []models.Reaction) map[string]ReactionGroup {
	groups := make(map[string]ReactionGroup)
	for _, r := range reactions {
		group, ok := groups[r.Emoji]
		if !ok {
			group = ReactionGroup{Unicode: r.Unicode}
		}
		group.Users = append(group.Users, r.UserID)
		groups[r.Emoji] = group
	}
	return groups
}
