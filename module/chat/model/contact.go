package model

import "time"

// Contact is one edge of a user's contact graph; presence fan-out walks
// these rows.
type Contact struct {
	ID        int64     `bson:"_id" json:"id"`
	UserID    int64     `bson:"user_id" json:"userId"`
	ContactID int64     `bson:"contact_id" json:"contactId"`
	Nickname  string    `bson:"nickname,omitempty" json:"nickname,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

func (Contact) TableName() string { return "contacts" }
