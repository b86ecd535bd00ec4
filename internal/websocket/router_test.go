package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/thereayou/relaychat/internal/database"
	"github.com/thereayou/relaychat/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type routerEnv struct {
	store  *database.Database
	hub    *Hub
	router *Router
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	// Одно соединение, иначе каждый коннект пула получает свою пустую in-memory базу
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store := database.NewDatabase(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	hub := NewHub()
	return &routerEnv{
		store:  store,
		hub:    hub,
		router: NewRouter(store, hub),
	}
}

func (e *routerEnv) makeUser(t *testing.T, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@relaychat.test", username),
		PasswordHash: "irrelevant",
	}
	if err := e.store.CreateUser(user); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func (e *routerEnv) makeRoom(t *testing.T, name string, memberIDs ...uuid.UUID) *models.Room {
	t.Helper()

	room := &models.Room{Name: name, CreatedBy: memberIDs[0]}
	if err := e.store.CreateRoom(room, memberIDs); err != nil {
		t.Fatalf("failed to create room %s: %v", name, err)
	}
	return room
}

// connect регистрирует соединение и проводит его через connect-рукопожатие
func (e *routerEnv) connect(t *testing.T, userID uuid.UUID) *Client {
	t.Helper()

	client := NewClient(e.hub, nil, userID)
	e.hub.Register(client)
	if err := e.router.HandleEvent(client, &Event{Type: EventConnect}); err != nil {
		t.Fatalf("connect failed for %s: %v", userID, err)
	}
	return client
}

func payloadEvent(t *testing.T, eventType EventType, roomID *uuid.UUID, payload interface{}) *Event {
	t.Helper()

	ev := &Event{Type: eventType, RoomID: roomID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		ev.Data = data
	}
	return ev
}

// drain вычитывает все события, накопившиеся в очереди соединения
func drain(t *testing.T, c *Client) []Event {
	t.Helper()

	var events []Event
	for {
		select {
		case raw := <-c.Send:
			var ev Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				t.Fatalf("failed to decode event: %v", err)
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func findEvent(events []Event, eventType EventType) (Event, bool) {
	for _, ev := range events {
		if ev.Type == eventType {
			return ev, true
		}
	}
	return Event{}, false
}

func TestRouterConnect(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	bob := env.makeUser(t, "bob")
	room := env.makeRoom(t, "general", alice.ID, bob.ID)

	client := env.connect(t, alice.ID)

	if !env.hub.Registry().IsOnline(alice.ID) {
		t.Error("expected alice to be online after connect")
	}
	if !client.IsInRoom(room.ID) {
		t.Error("expected connect to auto-join hydrated rooms")
	}

	stored, err := env.store.GetUser(alice.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if stored.Status != models.StatusOnline {
		t.Errorf("expected persisted status online, got %q", stored.Status)
	}

	events := drain(t, client)
	if ev, ok := findEvent(events, EventUserStatusChanged); !ok {
		t.Error("expected a user-status-changed broadcast on first connect")
	} else if ev.UserID != alice.ID {
		t.Errorf("status event for %s, want %s", ev.UserID, alice.ID)
	}

	t.Run("second connection is silent", func(t *testing.T) {
		c2 := env.connect(t, alice.ID)
		drain(t, c2)

		if events := drain(t, client); len(events) != 0 {
			t.Errorf("second connection must not rebroadcast presence, got %v", events)
		}
	})

	t.Run("unknown user is rejected", func(t *testing.T) {
		ghost := NewClient(env.hub, nil, uuid.New())
		env.hub.Register(ghost)

		err := env.router.HandleEvent(ghost, &Event{Type: EventConnect})
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestRouterSendMessage(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	bob := env.makeUser(t, "bob")
	room := env.makeRoom(t, "general", alice.ID, bob.ID)

	aliceC := env.connect(t, alice.ID)
	bobC := env.connect(t, bob.ID)
	drain(t, aliceC)
	drain(t, bobC)

	ev := payloadEvent(t, EventSendMessage, &room.ID, SendMessagePayload{Content: "hello"})
	if err := env.router.HandleEvent(aliceC, ev); err != nil {
		t.Fatalf("send-message failed: %v", err)
	}

	bobEvents := drain(t, bobC)

	added, ok := findEvent(bobEvents, EventMessageAdded)
	if !ok {
		t.Fatal("expected message-added on bob's connection")
	}
	var view MessageView
	if err := json.Unmarshal(added.Data, &view); err != nil {
		t.Fatalf("failed to decode message view: %v", err)
	}
	if view.Content != "hello" || view.SenderID != alice.ID || view.Username != "alice" {
		t.Errorf("unexpected message view: %+v", view)
	}

	updated, ok := findEvent(bobEvents, EventRoomUpdated)
	if !ok {
		t.Fatal("expected room-updated after the message")
	}
	var summary RoomSummaryView
	if err := json.Unmarshal(updated.Data, &summary); err != nil {
		t.Fatalf("failed to decode room summary: %v", err)
	}
	if summary.LastMessage.Content != "hello" || summary.LastMessage.SenderID != alice.ID {
		t.Errorf("unexpected room summary: %+v", summary)
	}

	// Отправитель тоже получает broadcast
	if _, ok := findEvent(drain(t, aliceC), EventMessageAdded); !ok {
		t.Error("expected message-added on the sender's connection")
	}

	stored, err := env.store.GetRoomMessages(room.ID, 10, nil)
	if err != nil {
		t.Fatalf("GetRoomMessages() error = %v", err)
	}
	if len(stored) != 1 || stored[0].Content != "hello" {
		t.Fatalf("expected 1 persisted message, got %+v", stored)
	}

	roomRow, err := env.store.GetRoom(room.ID)
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if roomRow.LastMessage != "hello" {
		t.Errorf("room summary not denormalized, last_message=%q", roomRow.LastMessage)
	}
}

func TestRouterSendMessageRejections(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	bob := env.makeUser(t, "bob")
	outsider := env.makeUser(t, "mallory")
	room := env.makeRoom(t, "private", alice.ID, bob.ID)

	bobC := env.connect(t, bob.ID)
	outsiderC := env.connect(t, outsider.ID)
	drain(t, bobC)
	drain(t, outsiderC)

	t.Run("not a member", func(t *testing.T) {
		ev := payloadEvent(t, EventSendMessage, &room.ID, SendMessagePayload{Content: "let me in"})
		if err := env.router.HandleEvent(outsiderC, ev); !errors.Is(err, ErrUserNotInRoom) {
			t.Errorf("expected ErrUserNotInRoom, got %v", err)
		}

		// Ничего не записано и не разослано
		if msgs, _ := env.store.GetRoomMessages(room.ID, 10, nil); len(msgs) != 0 {
			t.Errorf("rejected message must not be persisted, got %d rows", len(msgs))
		}
		if events := drain(t, bobC); len(events) != 0 {
			t.Errorf("rejected message must not be broadcast, got %v", events)
		}
	})

	t.Run("empty content without files", func(t *testing.T) {
		ev := payloadEvent(t, EventSendMessage, &room.ID, SendMessagePayload{Content: "   "})
		if err := env.router.HandleEvent(bobC, ev); !errors.Is(err, ErrEmptyContent) {
			t.Errorf("expected ErrEmptyContent, got %v", err)
		}
	})

	t.Run("missing room id", func(t *testing.T) {
		ev := payloadEvent(t, EventSendMessage, nil, SendMessagePayload{Content: "hi"})
		if err := env.router.HandleEvent(bobC, ev); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("expected ErrInvalidMessage, got %v", err)
		}
	})

	t.Run("connection without handshake", func(t *testing.T) {
		raw := NewClient(env.hub, nil, alice.ID)
		env.hub.Register(raw)

		ev := payloadEvent(t, EventSendMessage, &room.ID, SendMessagePayload{Content: "hi"})
		if err := env.router.HandleEvent(raw, ev); !errors.Is(err, ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})
}

func TestRouterEditAndDeleteMessage(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	bob := env.makeUser(t, "bob")
	room := env.makeRoom(t, "general", alice.ID, bob.ID)

	aliceC := env.connect(t, alice.ID)
	bobC := env.connect(t, bob.ID)

	send := payloadEvent(t, EventSendMessage, &room.ID, SendMessagePayload{Content: "draft"})
	if err := env.router.HandleEvent(aliceC, send); err != nil {
		t.Fatalf("send-message failed: %v", err)
	}
	msgs, err := env.store.GetRoomMessages(room.ID, 10, nil)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d (err=%v)", len(msgs), err)
	}
	msgID := msgs[0].ID
	drain(t, aliceC)
	drain(t, bobC)

	// Членства достаточно: боб правит сообщение алисы
	edit := payloadEvent(t, EventEditMessage, nil, EditMessagePayload{MessageID: msgID, Content: "final"})
	if err := env.router.HandleEvent(bobC, edit); err != nil {
		t.Fatalf("edit-message failed: %v", err)
	}

	if ev, ok := findEvent(drain(t, aliceC), EventMessageEdited); !ok {
		t.Error("expected message-edited broadcast")
	} else if ev.RoomID == nil || *ev.RoomID != room.ID {
		t.Error("message-edited must carry the room id")
	}

	edited, err := env.store.GetMessage(msgID)
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if edited.Content != "final" || !edited.Edited {
		t.Errorf("expected edited content, got %+v", edited)
	}

	del := payloadEvent(t, EventDeleteMessage, nil, DeleteMessagePayload{MessageID: msgID})
	if err := env.router.HandleEvent(bobC, del); err != nil {
		t.Fatalf("delete-message failed: %v", err)
	}

	if _, ok := findEvent(drain(t, aliceC), EventMessageDeleted); !ok {
		t.Error("expected message-deleted broadcast")
	}

	// Tombstone: строка остается, история ее не отдает
	deleted, err := env.store.GetMessage(msgID)
	if err != nil {
		t.Fatalf("deleted row must remain fetchable, err = %v", err)
	}
	if !deleted.Deleted {
		t.Error("expected deleted flag on the row")
	}
	if msgs, _ := env.store.GetRoomMessages(room.ID, 10, nil); len(msgs) != 0 {
		t.Errorf("history must exclude deleted messages, got %d", len(msgs))
	}

	t.Run("unknown message", func(t *testing.T) {
		edit := payloadEvent(t, EventEditMessage, nil, EditMessagePayload{MessageID: uuid.New(), Content: "x"})
		if err := env.router.HandleEvent(bobC, edit); !errors.Is(err, ErrMessageNotFound) {
			t.Errorf("expected ErrMessageNotFound, got %v", err)
		}
	})
}

func TestRouterReactions(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	bob := env.makeUser(t, "bob")
	room := env.makeRoom(t, "general", alice.ID, bob.ID)

	aliceC := env.connect(t, alice.ID)
	bobC := env.connect(t, bob.ID)

	send := payloadEvent(t, EventSendMessage, &room.ID, SendMessagePayload{Content: "react to this"})
	if err := env.router.HandleEvent(aliceC, send); err != nil {
		t.Fatalf("send-message failed: %v", err)
	}
	msgs, _ := env.store.GetRoomMessages(room.ID, 10, nil)
	msgID := msgs[0].ID
	drain(t, aliceC)
	drain(t, bobC)

	add := payloadEvent(t, EventAddReaction, nil, ReactionPayload{MessageID: msgID, Emoji: "thumbsup", Unicode: "\U0001F44D"})
	if err := env.router.HandleEvent(bobC, add); err != nil {
		t.Fatalf("add-message-reaction failed: %v", err)
	}
	// Повторная реакция того же пользователя заменяет строку, а не дублирует
	if err := env.router.HandleEvent(bobC, add); err != nil {
		t.Fatalf("repeated reaction failed: %v", err)
	}

	rows, err := env.store.ListReactions(msgID)
	if err != nil {
		t.Fatalf("ListReactions() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected a single reaction row, got %d", len(rows))
	}

	events := drain(t, aliceC)
	added, ok := findEvent(events, EventReactionAdded)
	if !ok {
		t.Fatal("expected message-reaction-added broadcast")
	}
	var view ReactionEventView
	if err := json.Unmarshal(added.Data, &view); err != nil {
		t.Fatalf("failed to decode reaction view: %v", err)
	}
	if view.UserID != bob.ID || view.MessageID != msgID {
		t.Errorf("unexpected reaction event: %+v", view)
	}
	group, ok := view.Reactions["thumbsup"]
	if !ok || len(group.Users) != 1 || group.Users[0] != bob.ID {
		t.Errorf("unexpected aggregate: %+v", view.Reactions)
	}

	remove := payloadEvent(t, EventRemoveReaction, nil, ReactionPayload{MessageID: msgID, Emoji: "thumbsup"})
	if err := env.router.HandleEvent(bobC, remove); err != nil {
		t.Fatalf("remove-message-reaction failed: %v", err)
	}

	removed, ok := findEvent(drain(t, aliceC), EventReactionRemoved)
	if !ok {
		t.Fatal("expected message-reaction-removed broadcast")
	}
	// Свежая структура: Unmarshal сливает в уже заполненную карту
	var removedView ReactionEventView
	if err := json.Unmarshal(removed.Data, &removedView); err != nil {
		t.Fatalf("failed to decode reaction view: %v", err)
	}
	if len(removedView.Reactions) != 0 {
		t.Errorf("expected empty aggregate after removal, got %+v", removedView.Reactions)
	}

	if rows, _ := env.store.ListReactions(msgID); len(rows) != 0 {
		t.Errorf("expected no reaction rows after removal, got %d", len(rows))
	}
}

func TestRouterTyping(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	bob := env.makeUser(t, "bob")
	room := env.makeRoom(t, "general", alice.ID, bob.ID)

	aliceC := env.connect(t, alice.ID)
	bobC := env.connect(t, bob.ID)
	drain(t, aliceC)
	drain(t, bobC)

	typing := payloadEvent(t, EventTypingMessage, &room.ID, TypingPayload{Content: "h"})
	if err := env.router.HandleEvent(aliceC, typing); err != nil {
		t.Fatalf("typing-message failed: %v", err)
	}

	if _, ok := findEvent(drain(t, bobC), EventUserStartedTyping); !ok {
		t.Error("expected user-started-typing on bob's connection")
	}
	// Отправителю индикатор не шлется
	if events := drain(t, aliceC); len(events) != 0 {
		t.Errorf("typing must not echo to the sender, got %v", events)
	}
	if users, _ := env.store.ListTyping(room.ID); len(users) != 1 || users[0] != alice.ID {
		t.Errorf("expected alice in typing state, got %v", users)
	}

	// Продолжение набора в окне не дает второго started
	typing = payloadEvent(t, EventTypingMessage, &room.ID, TypingPayload{Content: "he"})
	if err := env.router.HandleEvent(aliceC, typing); err != nil {
		t.Fatalf("typing-message failed: %v", err)
	}
	if events := drain(t, bobC); len(events) != 0 {
		t.Errorf("re-touch must not rebroadcast started, got %v", events)
	}

	// Пустой текст гасит индикатор
	stop := payloadEvent(t, EventTypingMessage, &room.ID, TypingPayload{Content: ""})
	if err := env.router.HandleEvent(aliceC, stop); err != nil {
		t.Fatalf("typing stop failed: %v", err)
	}
	if _, ok := findEvent(drain(t, bobC), EventUserStoppedTyping); !ok {
		t.Error("expected user-stopped-typing on bob's connection")
	}
	if users, _ := env.store.ListTyping(room.ID); len(users) != 0 {
		t.Errorf("expected typing state cleared, got %v", users)
	}

	// Стоп в покое - тишина
	if err := env.router.HandleEvent(aliceC, stop); err != nil {
		t.Fatalf("idle stop failed: %v", err)
	}
	if events := drain(t, bobC); len(events) != 0 {
		t.Errorf("idle stop must not broadcast, got %v", events)
	}
}

func TestRouterDisconnectWhileTyping(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	bob := env.makeUser(t, "bob")
	room := env.makeRoom(t, "general", alice.ID, bob.ID)

	aliceC := env.connect(t, alice.ID)
	bobC := env.connect(t, bob.ID)

	typing := payloadEvent(t, EventTypingMessage, &room.ID, TypingPayload{Content: "unfinished"})
	if err := env.router.HandleEvent(aliceC, typing); err != nil {
		t.Fatalf("typing-message failed: %v", err)
	}
	drain(t, bobC)

	env.router.Disconnected(aliceC)

	if env.hub.Registry().IsOnline(alice.ID) {
		t.Error("expected alice offline after disconnect")
	}
	stored, _ := env.store.GetUser(alice.ID)
	if stored.Status != models.StatusOffline {
		t.Errorf("expected persisted status offline, got %q", stored.Status)
	}
	if users, _ := env.store.ListTyping(room.ID); len(users) != 0 {
		t.Errorf("expected typing state swept on disconnect, got %v", users)
	}

	// Индикатор гаснет раньше, чем уходит offline
	events := drain(t, bobC)
	var stoppedIdx, statusIdx = -1, -1
	for i, ev := range events {
		switch ev.Type {
		case EventUserStoppedTyping:
			stoppedIdx = i
		case EventUserStatusChanged:
			statusIdx = i
		}
	}
	if stoppedIdx == -1 {
		t.Fatal("expected user-stopped-typing on disconnect")
	}
	if statusIdx == -1 {
		t.Fatal("expected user-status-changed on disconnect")
	}
	if stoppedIdx > statusIdx {
		t.Error("typing sweep must precede the presence broadcast")
	}
}

func TestRouterCreateRoom(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	bob := env.makeUser(t, "bob")

	aliceC := env.connect(t, alice.ID)
	bobC := env.connect(t, bob.ID)
	drain(t, aliceC)
	drain(t, bobC)

	create := payloadEvent(t, EventCreateRoom, nil, CreateRoomPayload{
		Name:    "project",
		UserIDs: []uuid.UUID{bob.ID},
	})
	if err := env.router.HandleEvent(aliceC, create); err != nil {
		t.Fatalf("create-room failed: %v", err)
	}

	// Создатель получает прямой ack, остальные участники - room-added
	ack, ok := findEvent(drain(t, aliceC), EventRoomCreated)
	if !ok {
		t.Fatal("expected room-created ack on the creator's connection")
	}
	var view RoomView
	if err := json.Unmarshal(ack.Data, &view); err != nil {
		t.Fatalf("failed to decode room view: %v", err)
	}
	if view.Name != "project" || len(view.Users) != 2 {
		t.Errorf("unexpected room view: %+v", view)
	}

	if _, ok := findEvent(drain(t, bobC), EventRoomAdded); !ok {
		t.Error("expected room-added on bob's connection")
	}

	roomID := view.ID
	if !env.router.Members().IsMember(roomID, alice.ID) || !env.router.Members().IsMember(roomID, bob.ID) {
		t.Error("both users must be indexed as members")
	}
	if !aliceC.IsInRoom(roomID) || !bobC.IsInRoom(roomID) {
		t.Error("live connections of all members must be subscribed")
	}

	stored, err := env.store.GetRoom(roomID)
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if len(stored.Members) != 2 {
		t.Errorf("expected 2 persisted members, got %d", len(stored.Members))
	}
}

func TestRouterRoomUserLifecycle(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	bob := env.makeUser(t, "bob")
	room := env.makeRoom(t, "general", alice.ID)

	aliceC := env.connect(t, alice.ID)
	bobC := env.connect(t, bob.ID)
	drain(t, aliceC)
	drain(t, bobC)

	add := payloadEvent(t, EventAddRoomUser, &room.ID, RoomUserPayload{UserID: bob.ID})
	if err := env.router.HandleEvent(aliceC, add); err != nil {
		t.Fatalf("add-room-user failed: %v", err)
	}

	if _, ok := findEvent(drain(t, bobC), EventRoomAdded); !ok {
		t.Error("expected room-added on the target's connection")
	}
	if !bobC.IsInRoom(room.ID) {
		t.Error("target's live connection must be subscribed")
	}
	if !env.router.Members().IsMember(room.ID, bob.ID) {
		t.Error("target must be indexed as a member")
	}
	if _, ok := findEvent(drain(t, aliceC), EventRoomUserAdded); !ok {
		t.Error("expected room-user-added broadcast in the room")
	}

	stored, _ := env.store.GetRoom(room.ID)
	if len(stored.Members) != 2 {
		t.Fatalf("expected 2 persisted members, got %d", len(stored.Members))
	}

	remove := payloadEvent(t, EventRemoveRoomUser, &room.ID, RoomUserPayload{UserID: bob.ID})
	if err := env.router.HandleEvent(aliceC, remove); err != nil {
		t.Fatalf("remove-room-user failed: %v", err)
	}

	if _, ok := findEvent(drain(t, bobC), EventRoomRemoved); !ok {
		t.Error("expected room-removed on the target's connection")
	}
	if bobC.IsInRoom(room.ID) {
		t.Error("target's live connection must be unsubscribed")
	}
	if env.router.Members().IsMember(room.ID, bob.ID) {
		t.Error("target must be dropped from the index")
	}
	if _, ok := findEvent(drain(t, aliceC), EventRoomUserRemoved); !ok {
		t.Error("expected room-user-removed broadcast in the room")
	}

	stored, _ = env.store.GetRoom(room.ID)
	if len(stored.Members) != 1 {
		t.Errorf("expected 1 persisted member, got %d", len(stored.Members))
	}

	t.Run("unknown room", func(t *testing.T) {
		missing := uuid.New()
		add := payloadEvent(t, EventAddRoomUser, &missing, RoomUserPayload{UserID: bob.ID})
		if err := env.router.HandleEvent(aliceC, add); !errors.Is(err, ErrRoomNotFound) {
			t.Errorf("expected ErrRoomNotFound, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		ghost := uuid.New()
		add := payloadEvent(t, EventAddRoomUser, &room.ID, RoomUserPayload{UserID: ghost})
		if err := env.router.HandleEvent(aliceC, add); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
		// Ни членства, ни broadcast для призрака
		if env.router.Members().IsMember(room.ID, ghost) {
			t.Error("ghost must not be indexed as a member")
		}
		if events := drain(t, aliceC); len(events) != 0 {
			t.Errorf("rejected add must not broadcast, got %v", events)
		}
	})
}

// Гидрация обязана покрыть все комнаты пользователя, сколько бы их ни было
func TestRouterHydrationCoversAllRooms(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	bob := env.makeUser(t, "bob")

	rooms := make([]*models.Room, hydratePageSize+1)
	for i := range rooms {
		rooms[i] = env.makeRoom(t, fmt.Sprintf("room-%d", i), alice.ID, bob.ID)
	}
	oldest := rooms[0]

	aliceC := env.connect(t, alice.ID)
	drain(t, aliceC)

	for _, room := range rooms {
		if !aliceC.IsInRoom(room.ID) {
			t.Fatalf("connect must auto-join every room, missing %s", room.Name)
		}
	}

	// Самая старая комната лежит за первой страницей выборки
	ev := payloadEvent(t, EventSendMessage, &oldest.ID, SendMessagePayload{Content: "still here"})
	if err := env.router.HandleEvent(aliceC, ev); err != nil {
		t.Fatalf("member of %s rejected: %v", oldest.Name, err)
	}
	if msgs, _ := env.store.GetRoomMessages(oldest.ID, 10, nil); len(msgs) != 1 {
		t.Errorf("expected the message persisted in %s", oldest.Name)
	}
}

func TestRouterUnknownEvent(t *testing.T) {
	env := newRouterEnv(t)

	alice := env.makeUser(t, "alice")
	client := env.connect(t, alice.ID)

	if err := env.router.HandleEvent(client, &Event{Type: "no-such-event"}); err != nil {
		t.Errorf("unknown events must be ignored, got %v", err)
	}
}
