package model

import "time"

type Channel struct {
	ID            int64     `bson:"_id" json:"id"`
	Name          string    `bson:"name" json:"name"`
	OwnerID       int64     `bson:"owner_id" json:"ownerId"`
	SubscriberIDs []int64   `bson:"subscriber_ids" json:"subscriberIds"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updatedAt"`
}

func (Channel) TableName() string { return "channels" }
