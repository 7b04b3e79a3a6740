package store

import (
	"context"

	"PRelay/module/chat/model"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// CreateMessageParams carries the client-supplied fields of a new message;
// id, status and timestamps are assigned by the store.
type CreateMessageParams struct {
	SenderID       int64
	ConversationID int64
	GroupID        int64
	ChannelID      int64
	Content        string
	Type           string
	ReplyToID      int64
}

// CreateCallParams carries the initiate-time fields of a call session.
type CreateCallParams struct {
	InitiatorID    int64
	ConversationID int64
	GroupID        int64
	Type           string
	ParticipantIDs []int64
}

// Store is the durable side of the relay. The websocket core only talks to
// this interface; production wires the Mongo implementation.
type Store interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetUserStatus(ctx context.Context, id int64, status string) error
	GetContacts(ctx context.Context, userID int64) ([]model.Contact, error)

	GetConversation(ctx context.Context, id int64) (*model.Conversation, error)
	GetGroup(ctx context.Context, id int64) (*model.Group, error)
	GetChannel(ctx context.Context, id int64) (*model.Channel, error)

	CreateMessage(ctx context.Context, p CreateMessageParams) (*model.Message, error)
	UpdateMessageStatus(ctx context.Context, id int64, status string) (*model.Message, error)

	CreateCall(ctx context.Context, p CreateCallParams) (*model.Call, error)
	GetCall(ctx context.Context, id int64) (*model.Call, error)
	UpdateCallStatus(ctx context.Context, id int64, status string) (*model.Call, error)
	AddCallParticipant(ctx context.Context, callID, userID int64) error
	GetActiveCallForUser(ctx context.Context, userID int64) (*model.Call, error)
}
