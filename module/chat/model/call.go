package model

import "time"

// Call status lifecycle: initiated -> ongoing -> ended; initiated may also
// terminate as missed or rejected. Terminal states have no transitions out.
const (
	CallStatusInitiated = "initiated"
	CallStatusOngoing   = "ongoing"
	CallStatusEnded     = "ended"
	CallStatusMissed    = "missed"
	CallStatusRejected  = "rejected"
)

const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

// Call is the durable call session. ParticipantIDs is fixed at initiate
// time; later signaling actions fan out over it rather than re-deriving
// conversation membership.
type Call struct {
	ID             int64      `bson:"_id" json:"id"`
	InitiatorID    int64      `bson:"initiator_id" json:"initiatorId"`
	ConversationID int64      `bson:"conversation_id,omitempty" json:"conversationId,omitempty"`
	GroupID        int64      `bson:"group_id,omitempty" json:"groupId,omitempty"`
	Type           string     `bson:"type" json:"type"`
	Status         string     `bson:"status" json:"status"`
	ParticipantIDs []int64    `bson:"participant_ids" json:"participantIds"`
	StartedAt      *time.Time `bson:"started_at,omitempty" json:"startedAt,omitempty"`
	EndedAt        *time.Time `bson:"ended_at,omitempty" json:"endedAt,omitempty"`
	CreatedAt      time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updatedAt"`
}

func (Call) TableName() string { return "calls" }

// Terminal reports whether no further status transitions are allowed.
func (c *Call) Terminal() bool {
	switch c.Status {
	case CallStatusEnded, CallStatusMissed, CallStatusRejected:
		return true
	}
	return false
}
