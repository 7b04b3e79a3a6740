package chat

import (
	"encoding/json"
	"time"

	"PRelay/module/chat/model"

	"github.com/pkg/errors"
)

// Envelope types exchanged over the socket.
const (
	FrameAuth          = "auth"
	FrameMessage       = "message"
	FrameMessageStatus = "message_status"
	FrameTyping        = "typing"
	FrameCall          = "call"
	FramePresence      = "presence"
	FrameError         = "error"
)

// Call actions.
const (
	CallActionInitiate  = "initiate"
	CallActionIncoming  = "incoming"
	CallActionInitiated = "initiated"
	CallActionAccept    = "accept"
	CallActionReject    = "reject"
	CallActionHangup    = "hangup"
	CallActionMissed    = "missed"
)

// Frame is an inbound envelope. Payload stays a dynamic map until the
// handler decodes it into its typed payload via tools/decode.
type Frame struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, "unmarshal frame")
	}
	if f.Type == "" {
		return nil, errors.New("frame has no type")
	}
	return f, nil
}

// Outbound is a server-built envelope.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func Encode(o *Outbound) ([]byte, error) {
	data, err := json.Marshal(o)
	return data, errors.Wrap(err, "marshal frame")
}

// ---- typed inbound payloads ----

type AuthPayload struct {
	Token string `json:"token"`
}

type MessagePayload struct {
	TempID         string `json:"tempId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	ConversationID int64  `json:"conversationId"`
	GroupID        int64  `json:"groupId"`
	ChannelID      int64  `json:"channelId"`
	ReplyToID      int64  `json:"replyToId"`
}

type TypingPayload struct {
	ConversationID int64 `json:"conversationId"`
	GroupID        int64 `json:"groupId"`
	IsTyping       bool  `json:"isTyping"`
}

type StatusPayload struct {
	MessageID int64  `json:"messageId"`
	Status    string `json:"status"`
}

type CallPayload struct {
	Action         string `json:"action"`
	CallType       string `json:"callType"`
	ConversationID int64  `json:"conversationId"`
	GroupID        int64  `json:"groupId"`
	RecipientID    int64  `json:"recipientId"`
	CallID         int64  `json:"callId"`
}

// ---- outbound builders ----

type messageEnvelope struct {
	Message *model.Message `json:"message"`
	TempID  string         `json:"tempId,omitempty"`
}

// BuildMessageAck is the confirmation to the originating connection only;
// it echoes the client tempId verbatim for optimistic-UI reconciliation.
func BuildMessageAck(rec *model.Message, tempID string) *Outbound {
	return &Outbound{Type: FrameMessage, Payload: messageEnvelope{Message: rec, TempID: tempID}}
}

// BuildMessage is the fan-out shape: same record, no tempId key.
func BuildMessage(rec *model.Message) *Outbound {
	return &Outbound{Type: FrameMessage, Payload: messageEnvelope{Message: rec}}
}

func BuildStatus(rec *model.Message) *Outbound {
	return &Outbound{Type: FrameMessageStatus, Payload: map[string]any{
		"messageId": rec.ID,
		"status":    rec.Status,
		"updatedAt": rec.UpdatedAt.Format(time.RFC3339Nano),
	}}
}

func BuildTyping(p *TypingPayload, userID int64) *Outbound {
	payload := map[string]any{
		"userId":   userID,
		"isTyping": p.IsTyping,
	}
	if p.ConversationID != 0 {
		payload["conversationId"] = p.ConversationID
	}
	if p.GroupID != 0 {
		payload["groupId"] = p.GroupID
	}
	return &Outbound{Type: FrameTyping, Payload: payload}
}

func BuildPresence(userID int64, status string) *Outbound {
	return &Outbound{Type: FramePresence, Payload: map[string]any{
		"userId": userID,
		"status": status,
	}}
}

func BuildCallIncoming(call *model.Call) *Outbound {
	payload := map[string]any{
		"action":      CallActionIncoming,
		"callId":      call.ID,
		"initiatorId": call.InitiatorID,
		"callType":    call.Type,
	}
	if call.ConversationID != 0 {
		payload["conversationId"] = call.ConversationID
	}
	if call.GroupID != 0 {
		payload["groupId"] = call.GroupID
	}
	return &Outbound{Type: FrameCall, Payload: payload}
}

func BuildCallInitiated(callID int64) *Outbound {
	return &Outbound{Type: FrameCall, Payload: map[string]any{
		"action": CallActionInitiated,
		"callId": callID,
	}}
}

// BuildCallAction is the relay shape for accept/reject/hangup/missed.
// userID is the acting participant; zero for coordinator-driven actions.
func BuildCallAction(action string, callID, userID int64) *Outbound {
	payload := map[string]any{
		"action": action,
		"callId": callID,
	}
	if userID != 0 {
		payload["userId"] = userID
	}
	return &Outbound{Type: FrameCall, Payload: payload}
}

func BuildError(msg string) *Outbound {
	return &Outbound{Type: FrameError, Payload: map[string]any{"message": msg}}
}
