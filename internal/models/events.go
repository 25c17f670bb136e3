package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type EventName string

// Client -> server
const (
	EventJoinRoom    EventName = "joinRoom"
	EventLeaveRoom   EventName = "leaveRoom"
	EventSendMessage EventName = "sendMessage"
)

// Server -> client
const (
	EventUserOnline      EventName = "userOnline"
	EventUserOffline     EventName = "userOffline"
	EventRoomJoined      EventName = "roomJoined"
	EventUserJoinedRoom  EventName = "userJoinedRoom"
	EventUserLeftRoom    EventName = "userLeftRoom"
	EventMessageReceived EventName = "messageReceived"
	EventMessageDeleted  EventName = "messageDeleted"
	EventError           EventName = "error"
)

type ErrorType string

const (
	ErrorAuth       ErrorType = "AUTH_ERROR"
	ErrorForbidden  ErrorType = "FORBIDDEN"
	ErrorNotFound   ErrorType = "NOT_FOUND"
	ErrorValidation ErrorType = "VALIDATION_ERROR"
	ErrorServer     ErrorType = "SERVER_ERROR"
	ErrorMessage    ErrorType = "MESSAGE_ERROR"

	// HTTP only.
	ErrorRateLimited ErrorType = "RATE_LIMITED"
	ErrorConflict    ErrorType = "CONFLICT"
)

// Envelope is the wire shape of every frame in both directions.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type OutboundEvent struct {
	Event EventName   `json:"event"`
	Data  interface{} `json:"data"`
}

func (e OutboundEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Handshake is the single frame a client sends when it did not present a
// credential during the upgrade request.
type Handshake struct {
	Token string `json:"token"`
}

// ClientEvent is implemented by JoinRoom, LeaveRoom and SendMessage only.
type ClientEvent interface {
	Name() EventName
}

type JoinRoom struct {
	RoomID string `json:"roomId" validate:"required,uuid"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId" validate:"required,uuid"`
}

type SendMessage struct {
	RoomID  string `json:"roomId" validate:"required,uuid"`
	Content string `json:"content"`
}

func (JoinRoom) Name() EventName    { return EventJoinRoom }
func (LeaveRoom) Name() EventName   { return EventLeaveRoom }
func (SendMessage) Name() EventName { return EventSendMessage }

type UserPresence struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type RoomJoined struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

type RoomMemberEvent struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type MessageReceived struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Content   string    `json:"content"`
	FileURL   *string   `json:"fileUrl,omitempty"`
	FileType  *string   `json:"fileType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    Identity  `json:"sender"`
}

func NewMessageReceived(m *Message) MessageReceived {
	return MessageReceived{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Content:   m.Content,
		FileURL:   m.FileURL,
		FileType:  m.FileType,
		CreatedAt: m.CreatedAt,
		Sender:    m.Sender,
	}
}

type MessageDeleted struct {
	ID     string `json:"id"`
	RoomID string `json:"roomId"`
}

type ErrorPayload struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

func ErrorEvent(errType ErrorType, message, field string) OutboundEvent {
	return OutboundEvent{
		Event: EventError,
		Data:  ErrorPayload{Type: errType, Message: message, Field: field},
	}
}

// DecodeError reports a frame or payload rejected at the connection boundary.
type DecodeError struct {
	Type    ErrorType
	Field   string
	Message string
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// DecodeClientEvent parses one inbound frame into a typed, validated event.
func DecodeClientEvent(raw []byte) (ClientEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Type: ErrorMessage, Message: "malformed event frame"}
	}

	var ev ClientEvent
	switch env.Event {
	case EventJoinRoom:
		var p JoinRoom
		if err := decodeData(env.Data, &p); err != nil {
			return nil, err
		}
		ev = p
	case EventLeaveRoom:
		var p LeaveRoom
		if err := decodeData(env.Data, &p); err != nil {
			return nil, err
		}
		ev = p
	case EventSendMessage:
		var p SendMessage
		if err := decodeData(env.Data, &p); err != nil {
			return nil, err
		}
		ev = p
	case "":
		return nil, &DecodeError{Type: ErrorMessage, Message: "missing event name"}
	default:
		return nil, &DecodeError{Type: ErrorMessage, Message: fmt.Sprintf("unknown event %q", env.Event)}
	}

	if err := Validate(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeData(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return &DecodeError{Type: ErrorValidation, Message: "missing event data"}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &DecodeError{Type: ErrorValidation, Message: "malformed event data"}
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct tags and reports the first failing field as a
// VALIDATION_ERROR.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &DecodeError{Type: ErrorValidation, Message: err.Error()}
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "uuid":
		msg = "must be a valid UUID"
	case "email":
		msg = "must be a valid email address"
	case "min":
		msg = "must be at least " + fe.Param() + " characters long"
	case "max":
		msg = "must be at most " + fe.Param() + " characters long"
	default:
		msg = "is invalid"
	}
	return &DecodeError{Type: ErrorValidation, Field: fe.Field(), Message: fe.Field() + " " + msg}
}
