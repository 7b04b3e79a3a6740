package model

import "time"

type Group struct {
	ID        int64     `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	OwnerID   int64     `bson:"owner_id" json:"ownerId"`
	MemberIDs []int64   `bson:"member_ids" json:"memberIds"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (Group) TableName() string { return "groups" }
