package model

import "time"

// Conversation is a 1:1 chat context. Participant ids are embedded so the
// router can resolve the recipient set in one read.
type Conversation struct {
	ID             int64     `bson:"_id" json:"id"`
	CreatorID      int64     `bson:"creator_id" json:"creatorId"`
	ParticipantIDs []int64   `bson:"participant_ids" json:"participantIds"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt"`
}

func (Conversation) TableName() string { return "conversations" }
