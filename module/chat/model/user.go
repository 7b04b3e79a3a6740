package model

import "time"

// User status values.
const (
	UserStatusOnline  = "online"
	UserStatusOffline = "offline"
	UserStatusAway    = "away"
)

type User struct {
	ID           int64      `bson:"_id" json:"id"`
	Email        string     `bson:"email" json:"email"`
	Username     string     `bson:"username" json:"username"`
	PasswordHash string     `bson:"password" json:"-"`
	FirstName    string     `bson:"first_name" json:"firstName"`
	LastName     string     `bson:"last_name,omitempty" json:"lastName,omitempty"`
	Status       string     `bson:"status" json:"status"`
	LastSeen     *time.Time `bson:"last_seen,omitempty" json:"lastSeen,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }
