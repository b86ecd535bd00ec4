package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/relaychat/internal/models"
	"github.com/thereayou/relaychat/internal/services"
	"gorm.io/gorm"
)

// Размер страницы при гидрации комнат пользователя
const hydratePageSize = 100

// Router - единая точка входа для всех входящих realtime-событий.
// Авторизация по членству, затем персистентность, затем fan-out; частичное
// состояние никогда не уходит в broadcast. Ошибка одного события
// возвращается только исходному соединению и не задевает остальных.
type Router struct {
	store   services.Store
	hub     *Hub
	members *MembershipIndex
	typing  *TypingDebouncer

	// Порядок доставки в пределах комнаты равен порядку коммитов:
	// персист+broadcast идут под локом комнаты
	mu        sync.Mutex
	roomLocks map[uuid.UUID]*sync.Mutex
}

func NewRouter(store services.Store, hub *Hub) *Router {
	r := &Router{
		store:     store,
		hub:       hub,
		roomLocks: make(map[uuid.UUID]*sync.Mutex),
	}
	r.members = NewMembershipIndex(r.loadUserRooms)
	r.typing = NewTypingDebouncer(typingWindow, r.typingStopped)
	return r
}

// Members возвращает индекс членства комнат
func (r *Router) Members() *MembershipIndex {
	return r.members
}

// HandleEvent обрабатывает входящее событие соединения
func (r *Router) HandleEvent(client *Client, ev *Event) error {
	switch ev.Type {
	case EventConnect:
		return r.handleConnect(client)

	case EventDisconnect:
		// Полная зачистка идет через Disconnected после выхода из ReadPump
		return nil

	case EventJoinRoom:
		return r.handleJoinRoom(client, ev)

	case EventLeaveRoom:
		return r.handleLeaveRoom(client, ev)

	case EventSendMessage:
		return r.handleSendMessage(client, ev)

	case EventEditMessage:
		return r.handleEditMessage(client, ev)

	case EventDeleteMessage:
		return r.handleDeleteMessage(client, ev)

	case EventAddReaction:
		return r.handleAddReaction(client, ev)

	case EventRemoveReaction:
		return r.handleRemoveReaction(client, ev)

	case EventTypingMessage:
		return r.handleTyping(client, ev)

	case EventCreateRoom:
		return r.handleCreateRoom(client, ev)

	case EventAddRoomUser:
		return r.handleAddRoomUser(client, ev)

	case EventRemoveRoomUser:
		return r.handleRemoveRoomUser(client, ev)

	default:
		log.Printf("Unknown event type: %s", ev.Type)
		return nil
	}
}

// Disconnected выполняет зачистку при разрыве, включая аварийный:
// индикаторы печати гаснут до того, как присутствие уходит в offline.
func (r *Router) Disconnected(client *Client) {
	if userID, ok := r.hub.Registry().UserOf(client); ok {
		r.typing.StopAll(userID)

		if _, last, _ := r.hub.Registry().Unbind(client); last {
			if err := r.store.SetPresence(userID, models.StatusOffline); err != nil {
				log.Printf("Failed to set presence offline for %s: %v", userID, err)
			}
			r.broadcastStatus(userID, models.StatusOffline)
		}
	}

	r.hub.Unregister(client)
}

// connect: валидация личности, привязка, присутствие, гидрация членства
// и автоподписка на все комнаты пользователя
func (r *Router) handleConnect(client *Client) error {
	if _, err := r.store.GetUser(client.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	first, err := r.hub.Registry().Bind(client, client.UserID)
	if err != nil {
		return err
	}

	rooms, err := r.members.LoadForUser(client.UserID)
	if err != nil {
		return fmt.Errorf("hydrate rooms: %w", err)
	}
	for _, roomID := range rooms {
		r.hub.JoinRoom(client, roomID)
	}

	if first {
		if err := r.store.SetPresence(client.UserID, models.StatusOnline); err != nil {
			return fmt.Errorf("set presence: %w", err)
		}
		r.broadcastStatus(client.UserID, models.StatusOnline)
	}

	log.Printf("User %s connected and joined %d rooms", client.UserID, len(rooms))
	return nil
}

// join-room: только локальная подписка на broadcast комнаты
func (r *Router) handleJoinRoom(client *Client, ev *Event) error {
	if ev.RoomID == nil {
		return ErrInvalidMessage
	}
	r.hub.JoinRoom(client, *ev.RoomID)
	return nil
}

func (r *Router) handleLeaveRoom(client *Client, ev *Event) error {
	if ev.RoomID == nil {
		return ErrInvalidMessage
	}
	r.hub.LeaveRoom(client, *ev.RoomID)
	return nil
}

func (r *Router) handleSendMessage(client *Client, ev *Event) error {
	userID, err := r.boundUser(client)
	if err != nil {
		return err
	}
	if ev.RoomID == nil {
		return ErrInvalidMessage
	}
	roomID := *ev.RoomID

	var payload SendMessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return ErrInvalidMessage
	}
	if strings.TrimSpace(payload.Content) == "" && len(payload.Files) == 0 {
		return ErrEmptyContent
	}

	if err := r.requireMember(roomID, userID); err != nil {
		return err
	}

	lock := r.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	message := &models.Message{
		RoomID:    roomID,
		SenderID:  userID,
		Content:   payload.Content,
		CreatedAt: time.Now(),
	}
	for _, f := range payload.Files {
		message.Files = append(message.Files, models.MessageFile{
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

	if err := r.store.CreateMessage(message); err != nil {
		return fmt.Errorf("save message: %w", err)
	}

	view := NewMessageView(message)
	if sender, err := r.store.GetUser(userID); err == nil {
		view.Username = sender.Username
		view.AvatarURL = sender.AvatarURL
	} else {
		log.Printf("Failed to load sender %s: %v", userID, err)
	}

	r.broadcastToRoom(EventMessageAdded, roomID, userID, view)
	r.broadcastToRoom(EventRoomUpdated, roomID, userID, RoomSummaryView{
		RoomID: roomID,
		LastMessage: LastMessageView{
			Content:   message.Content,
			SenderID:  userID,
			Username:  view.Username,
			Timestamp: message.CreatedAt,
		},
	})

	return nil
}

func (r *Router) handleEditMessage(client *Client, ev *Event) error {
	userID, err := r.boundUser(client)
	if err != nil {
		return err
	}

	var payload EditMessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return ErrInvalidMessage
	}
	if strings.TrimSpace(payload.Content) == "" {
		return ErrEmptyContent
	}

	message, err := r.getMessage(payload.MessageID)
	if err != nil {
		return err
	}
	roomID := message.RoomID

	// TODO(product): редактирование и удаление не проверяют авторство -
	// так вел себя исходный протокол; ужесточать только решением продукта
	if err := r.requireMember(roomID, userID); err != nil {
		return err
	}

	lock := r.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.store.EditMessage(payload.MessageID, payload.Content); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}

	r.broadcastToRoom(EventMessageEdited, roomID, userID, map[string]interface{}{
		"message_id": payload.MessageID,
		"content":    payload.Content,
		"edited":     true,
	})

	return nil
}

func (r *Router) handleDeleteMessage(client *Client, ev *Event) error {
	userID, err := r.boundUser(client)
	if err != nil {
		return err
	}

	var payload DeleteMessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return ErrInvalidMessage
	}

	message, err := r.getMessage(payload.MessageID)
	if err != nil {
		return err
	}
	roomID := message.RoomID

	if err := r.requireMember(roomID, userID); err != nil {
		return err
	}

	lock := r.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.store.SoftDeleteMessage(payload.MessageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	r.broadcastToRoom(EventMessageDeleted, roomID, userID, map[string]interface{}{
		"message_id": payload.MessageID,
	})

	return nil
}

func (r *Router) handleAddReaction(client *Client, ev *Event) error {
	return r.handleReaction(client, ev, true)
}

func (r *Router) handleRemoveReaction(client *Client, ev *Event) error {
	return r.handleReaction(client, ev, false)
}

func (r *Router) handleReaction(client *Client, ev *Event, add bool) error {
	userID, err := r.boundUser(client)
	if err != nil {
		return err
	}

	var payload ReactionPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return ErrInvalidMessage
	}
	if payload.Emoji == "" {
		return ErrInvalidMessage
	}

	message, err := r.getMessage(payload.MessageID)
	if err != nil {
		return err
	}
	roomID := message.RoomID

	if err := r.requireMember(roomID, userID); err != nil {
		return err
	}

	lock := r.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	if add {
		reaction := &models.Reaction{
			MessageID: payload.MessageID,
			UserID:    userID,
			Emoji:     payload.Emoji,
			Unicode:   payload.Unicode,
		}
		if err := r.store.UpsertReaction(reaction); err != nil {
			return fmt.Errorf("add reaction: %w", err)
		}
	} else {
		if err := r.store.RemoveReaction(payload.MessageID, userID, payload.Emoji); err != nil {
			return fmt.Errorf("remove reaction: %w", err)
		}
	}

	reactions, err := r.store.ListReactions(payload.MessageID)
	if err != nil {
		log.Printf("Failed to load reactions for %s: %v", payload.MessageID, err)
	}

	eventType := EventReactionAdded
	if !add {
		eventType = EventReactionRemoved
	}
	r.broadcastToRoom(eventType, roomID, userID, ReactionEventView{
		MessageID: payload.MessageID,
		UserID:    userID,
		Reaction:  ReactionRef{Emoji: payload.Emoji, Unicode: payload.Unicode},
		Reactions: aggregateReactions(reactions),
	})

	return nil
}

// typing-message: непустой текст взводит/перевзводит индикатор,
// пустой гасит его. Получатели - комната без отправителя.
func (r *Router) handleTyping(client *Client, ev *Event) error {
	userID, err := r.boundUser(client)
	if err != nil {
		return err
	}
	if ev.RoomID == nil {
		return ErrInvalidMessage
	}
	roomID := *ev.RoomID

	var payload TypingPayload
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return ErrInvalidMessage
		}
	}

	if err := r.requireMember(roomID, userID); err != nil {
		return err
	}

	if payload.Content == "" {
		// Стоп по уже погасшему ключу - безвредный no-op
		r.typing.Stop(roomID, userID)
		return nil
	}

	if started := r.typing.Touch(roomID, userID); started {
		if err := r.store.SetTyping(roomID, userID); err != nil {
			r.typing.cancel(roomID, userID)
			return fmt.Errorf("set typing: %w", err)
		}
		if data, err := marshalEvent(EventUserStartedTyping, &roomID, userID, nil); err == nil {
			r.hub.SendToRoomExcept(roomID, data, userID)
		}
	}

	return nil
}

func (r *Router) handleCreateRoom(client *Client, ev *Event) error {
	creatorID, err := r.boundUser(client)
	if err != nil {
		return err
	}

	var payload CreateRoomPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return ErrInvalidMessage
	}

	// Создатель всегда участник: комната не рождается пустой
	memberIDs := payload.UserIDs
	hasCreator := false
	for _, id := range memberIDs {
		if id == creatorID {
			hasCreator = true
			break
		}
	}
	if !hasCreator {
		memberIDs = append(memberIDs, creatorID)
	}

	room := &models.Room{
		Name:      payload.Name,
		CreatedBy: creatorID,
		CreatedAt: time.Now(),
	}

	if err := r.store.CreateRoom(room, memberIDs); err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	for _, userID := range memberIDs {
		r.members.AddMember(room.ID, userID)
		for _, conn := range r.hub.Registry().ConnectionsFor(userID) {
			r.hub.JoinRoom(conn, room.ID)
		}
	}

	view := RoomView{ID: room.ID, Name: room.Name, LastUpdated: room.LastUpdated}
	if full, err := r.store.GetRoom(room.ID); err == nil {
		view = NewRoomView(full)
	} else {
		log.Printf("Failed to reload room %s: %v", room.ID, err)
	}

	for _, userID := range memberIDs {
		if userID == creatorID {
			continue
		}
		if data, err := marshalEvent(EventRoomAdded, &room.ID, creatorID, view); err == nil {
			r.hub.SendToUser(userID, data)
		}
	}

	// Прямой ack создателю
	return client.SendEvent(EventRoomCreated, &room.ID, view)
}

func (r *Router) handleAddRoomUser(client *Client, ev *Event) error {
	if _, err := r.boundUser(client); err != nil {
		return err
	}
	if ev.RoomID == nil {
		return ErrInvalidMessage
	}
	roomID := *ev.RoomID

	var payload RoomUserPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return ErrInvalidMessage
	}
	targetID := payload.UserID

	if _, err := r.store.GetRoom(roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("load room: %w", err)
	}

	// Несуществующий участник не должен оставить висячую запись членства
	if _, err := r.store.GetUser(targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	// Хранилище и индекс меняются только вместе, под локом комнаты
	lock := r.roomLock(roomID)
	lock.Lock()
	if err := r.store.AddMember(roomID, targetID); err != nil {
		lock.Unlock()
		return fmt.Errorf("add member: %w", err)
	}
	r.members.AddMember(roomID, targetID)
	lock.Unlock()

	for _, conn := range r.hub.Registry().ConnectionsFor(targetID) {
		r.hub.JoinRoom(conn, roomID)
	}

	if full, err := r.store.GetRoom(roomID); err == nil {
		if data, err := marshalEvent(EventRoomAdded, &roomID, targetID, NewRoomView(full)); err == nil {
			r.hub.SendToUser(targetID, data)
		}
	}

	r.broadcastToRoom(EventRoomUserAdded, roomID, targetID, map[string]interface{}{
		"room_id": roomID,
		"user_id": targetID,
	})

	return nil
}

func (r *Router) handleRemoveRoomUser(client *Client, ev *Event) error {
	if _, err := r.boundUser(client); err != nil {
		return err
	}
	if ev.RoomID == nil {
		return ErrInvalidMessage
	}
	roomID := *ev.RoomID

	var payload RoomUserPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return ErrInvalidMessage
	}
	targetID := payload.UserID

	lock := r.roomLock(roomID)
	lock.Lock()
	if err := r.store.RemoveMember(roomID, targetID); err != nil {
		lock.Unlock()
		return fmt.Errorf("remove member: %w", err)
	}
	r.members.RemoveMember(roomID, targetID)
	lock.Unlock()

	for _, conn := range r.hub.Registry().ConnectionsFor(targetID) {
		r.hub.LeaveRoom(conn, roomID)
	}

	if data, err := marshalEvent(EventRoomRemoved, &roomID, targetID, nil); err == nil {
		r.hub.SendToUser(targetID, data)
	}

	r.broadcastToRoom(EventRoomUserRemoved, roomID, targetID, map[string]interface{}{
		"room_id": roomID,
		"user_id": targetID,
	})

	return nil
}

// boundUser возвращает пользователя соединения, прошедшего connect
func (r *Router) boundUser(client *Client) (uuid.UUID, error) {
	userID, ok := r.hub.Registry().UserOf(client)
	if !ok {
		return uuid.Nil, ErrNotConnected
	}
	return userID, nil
}

// requireMember проверяет членство, при необходимости гидрируя индекс
func (r *Router) requireMember(roomID, userID uuid.UUID) error {
	if r.members.IsMember(roomID, userID) {
		return nil
	}

	if _, err := r.members.LoadForUser(userID); err != nil {
		return fmt.Errorf("hydrate rooms: %w", err)
	}

	if !r.members.IsMember(roomID, userID) {
		return ErrUserNotInRoom
	}
	return nil
}

func (r *Router) getMessage(id uuid.UUID) (*models.Message, error) {
	message, err := r.store.GetMessage(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("load message: %w", err)
	}
	return message, nil
}

func (r *Router) roomLock(roomID uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		r.roomLocks[roomID] = lock
	}
	return lock
}

func (r *Router) broadcastToRoom(eventType EventType, roomID, userID uuid.UUID, data interface{}) {
	raw, err := marshalEvent(eventType, &roomID, userID, data)
	if err != nil {
		log.Printf("Failed to marshal %s: %v", eventType, err)
		return
	}
	r.hub.SendToRoom(roomID, raw)
}

func (r *Router) broadcastStatus(userID uuid.UUID, status string) {
	if data, err := marshalEvent(EventUserStatusChanged, nil, userID, StatusView{UserID: userID, Status: status}); err == nil {
		r.hub.SendToAll(data)
	}
}

// typingStopped - единый выход Typing -> Idle: таймаут, явный стоп,
// зачистка на disconnect. Персист best-effort, затем broadcast.
func (r *Router) typingStopped(roomID, userID uuid.UUID) {
	if err := r.store.ClearTyping(roomID, userID); err != nil {
		log.Printf("Failed to clear typing %s in %s: %v", userID, roomID, err)
	}
	if data, err := marshalEvent(EventUserStoppedTyping, &roomID, userID, nil); err == nil {
		r.hub.SendToRoomExcept(roomID, data, userID)
	}
}

// loadUserRooms выбирает ВСЕ комнаты пользователя постранично: индекс
// членства обязан отражать хранилище целиком, а не первую страницу
func (r *Router) loadUserRooms(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for offset := 0; ; offset += hydratePageSize {
		rooms, err := r.store.ListRoomsForUser(userID, hydratePageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, room := range rooms {
			ids = append(ids, room.ID)
		}
		if len(rooms) < hydratePageSize {
			return ids, nil
		}
	}
}
