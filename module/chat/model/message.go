package model

import "time"

// Message status lifecycle: sending -> sent -> delivered -> read.
const (
	MessageStatusSending   = "sending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// Message content types mirror what clients can post.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
)

// Message is the durable chat record. The json tags are the wire shape of
// the record embedded in message envelopes.
type Message struct {
	ID             int64      `bson:"_id" json:"id"`
	SenderID       int64      `bson:"sender_id" json:"senderId"`
	ConversationID int64      `bson:"conversation_id,omitempty" json:"conversationId,omitempty"`
	GroupID        int64      `bson:"group_id,omitempty" json:"groupId,omitempty"`
	ChannelID      int64      `bson:"channel_id,omitempty" json:"channelId,omitempty"`
	Content        string     `bson:"content" json:"content"`
	Type           string     `bson:"type" json:"type"`
	ReplyToID      int64      `bson:"reply_to_id,omitempty" json:"replyToId,omitempty"`
	Status         string     `bson:"status" json:"status"`
	SentAt         time.Time  `bson:"sent_at" json:"sentAt"`
	DeliveredAt    *time.Time `bson:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
	ReadAt         *time.Time `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CreatedAt      time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updatedAt"`
}

func (Message) TableName() string { return "messages" }
