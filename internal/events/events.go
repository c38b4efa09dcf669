// Package events defines the push-channel envelope exchanged with the board
// service and decodes it into a closed set of typed messages.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/boardsync/internal/model"
)

// Type is the envelope discriminator.
type Type string

// Envelope types sent by the board service.
const (
	TypeConnection  Type = "connection"
	TypeTaskCreated Type = "task_created"
	TypeTaskUpdated Type = "task_updated"
	TypeTaskDeleted Type = "task_deleted"
	TypePing        Type = "ping"
	TypePong        Type = "pong"
	TypeUserJoined  Type = "user_joined"
	TypeUserLeft    Type = "user_left"
)

// Envelope is the JSON shape of every push-channel frame.
type Envelope struct {
	Type          Type        `json:"type"`
	Task          *model.Task `json:"task,omitempty"`
	TaskID        string      `json:"task_id,omitempty"`
	UpdatedFields []string    `json:"updated_fields,omitempty"`
	UserID        string      `json:"user_id,omitempty"`
	UserName      string      `json:"user_name,omitempty"`
	ProjectID     string      `json:"project_id,omitempty"`
	Status        string      `json:"status,omitempty"`
	Timestamp     string      `json:"timestamp,omitempty"`
}

// Actor identifies who caused a pushed change.
type Actor struct {
	ID   string
	Name string
}

// Message is a decoded envelope. The concrete types below are the full set;
// anything else decodes to Unknown.
type Message interface {
	MessageType() Type
}

// Connection acknowledges a freshly opened channel.
type Connection struct {
	ProjectID string
	UserID    string
}

// TaskCreated carries a task added by some session.
type TaskCreated struct {
	Task  *model.Task
	Actor Actor
}

// TaskUpdated carries the full representation of a changed task.
type TaskUpdated struct {
	Task          *model.Task
	UpdatedFields []string
	Actor         Actor
}

// TaskDeleted names a task removed by some session.
type TaskDeleted struct {
	TaskID string
	Actor  Actor
}

// Ping is a keepalive request.
type Ping struct{}

// Pong answers a keepalive.
type Pong struct{}

// UserJoined reports another user opening the board.
type UserJoined struct {
	Actor Actor
}

// UserLeft reports another user leaving the board.
type UserLeft struct {
	Actor Actor
}

// Unknown is an envelope whose type this client does not understand.
type Unknown struct {
	Type Type
}

func (Connection) MessageType() Type  { return TypeConnection }
func (TaskCreated) MessageType() Type { return TypeTaskCreated }
func (TaskUpdated) MessageType() Type { return TypeTaskUpdated }
func (TaskDeleted) MessageType() Type { return TypeTaskDeleted }
func (Ping) MessageType() Type        { return TypePing }
func (Pong) MessageType() Type        { return TypePong }
func (UserJoined) MessageType() Type  { return TypeUserJoined }
func (UserLeft) MessageType() Type    { return TypeUserLeft }
func (u Unknown) MessageType() Type   { return u.Type }

// Changed reports whether field is listed in the update's changed fields.
func (u TaskUpdated) Changed(field string) bool {
	for _, f := range u.UpdatedFields {
		if f == field {
			return true
		}
	}
	return false
}

// MalformedError reports a frame that cannot be decoded or lacks the fields
// its type requires.
type MalformedError struct {
	Type   Type
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	msg := "malformed event"
	if e.Type != "" {
		msg += " " + string(e.Type)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Decode parses a raw frame. It never panics; malformed input yields a
// *MalformedError and unrecognized types yield Unknown with a nil error.
func Decode(payload []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &MalformedError{Reason: "invalid JSON", Err: err}
	}
	return env.Message()
}

// Message converts the envelope into its typed form.
func (env *Envelope) Message() (Message, error) {
	actor := Actor{ID: env.UserID, Name: env.UserName}

	switch env.Type {
	case TypeConnection:
		return Connection{ProjectID: env.ProjectID, UserID: env.UserID}, nil
	case TypeTaskCreated:
		if err := requireTask(env); err != nil {
			return nil, err
		}
		return TaskCreated{Task: env.Task, Actor: actor}, nil
	case TypeTaskUpdated:
		if err := requireTask(env); err != nil {
			return nil, err
		}
		return TaskUpdated{Task: env.Task, UpdatedFields: env.UpdatedFields, Actor: actor}, nil
	case TypeTaskDeleted:
		id := env.TaskID
		if id == "" && env.Task != nil {
			id = env.Task.ID
		}
		if id == "" {
			return nil, &MalformedError{Type: env.Type, Reason: "missing task_id"}
		}
		return TaskDeleted{TaskID: id, Actor: actor}, nil
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	case TypeUserJoined:
		return UserJoined{Actor: actor}, nil
	case TypeUserLeft:
		return UserLeft{Actor: actor}, nil
	case "":
		return nil, &MalformedError{Reason: "missing type"}
	default:
		return Unknown{Type: env.Type}, nil
	}
}

func requireTask(env *Envelope) error {
	if env.Task == nil {
		return &MalformedError{Type: env.Type, Reason: "missing task"}
	}
	if err := model.ValidateTask(env.Task); err != nil {
		return &MalformedError{Type: env.Type, Reason: "invalid task", Err: err}
	}
	return nil
}

// PingFrame returns the keepalive control message sent by clients.
func PingFrame() []byte {
	return []byte(`{"type":"ping"}`)
}

// Encode marshals an envelope for the wire.
func Encode(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}
	return data, nil
}

// Publisher emits envelopes on a board's push channel. Client sessions only
// consume; publishers exist for operators and tests.
type Publisher interface {
	Publish(ctx context.Context, boardID string, env *Envelope) error
	Close() error
}

// Subject and channel names shared by the brokered transports.

// NATSSubject is the subject carrying board events.
func NATSSubject(boardID string) string { return "boards." + boardID + ".events" }

// NATSControlSubject is the subject clients publish control frames on.
func NATSControlSubject(boardID string) string { return "boards." + boardID + ".control" }

// RedisChannel is the pub/sub channel carrying board events.
func RedisChannel(boardID string) string { return "board:" + boardID + ":events" }

// RedisControlChannel is the pub/sub channel clients publish control frames on.
func RedisControlChannel(boardID string) string { return "board:" + boardID + ":control" }
