package websocket

import "errors"

var (
	ErrClientQueueFull = errors.New("client message queue is full")
	ErrInvalidMessage  = errors.New("invalid message format")
	ErrEmptyContent    = errors.New("message content is required")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRoomNotFound    = errors.New("room not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUserNotInRoom   = errors.New("user is not a member of the room")
	ErrAlreadyBound    = errors.New("connection is already bound to a user")
	ErrNotConnected    = errors.New("connection is not bound to a user")
)
