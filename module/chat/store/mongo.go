package store

import (
	"context"
	"time"

	"PRelay/module/chat/model"
	"PRelay/tools/ids"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo implements Store on top of a mongo database.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "mongo ping")
	}
	return &Mongo{db: cli.Database(dbName)}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.db.Client().Disconnect(ctx)
}

func (m *Mongo) col(name string) *mongo.Collection { return m.db.Collection(name) }

func wrapFindErr(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return errors.Wrap(err, what)
}

func (m *Mongo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := m.col(u.TableName()).FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		return nil, wrapFindErr(err, "get user")
	}
	return &u, nil
}

func (m *Mongo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := m.col(u.TableName()).FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		return nil, wrapFindErr(err, "get user by email")
	}
	return &u, nil
}

func (m *Mongo) SetUserStatus(ctx context.Context, id int64, status string) error {
	now := time.Now()
	set := bson.M{"status": status, "updated_at": now}
	if status == model.UserStatusOffline {
		set["last_seen"] = now
	}
	_, err := m.col(model.User{}.TableName()).UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": set})
	return errors.Wrap(err, "set user status")
}

func (m *Mongo) GetContacts(ctx context.Context, userID int64) ([]model.Contact, error) {
	cur, err := m.col(model.Contact{}.TableName()).Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, errors.Wrap(err, "get contacts")
	}
	defer cur.Close(ctx)
	var out []model.Contact
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode contacts")
	}
	return out, nil
}

func (m *Mongo) GetConversation(ctx context.Context, id int64) (*model.Conversation, error) {
	var c model.Conversation
	err := m.col(c.TableName()).FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		return nil, wrapFindErr(err, "get conversation")
	}
	return &c, nil
}

func (m *Mongo) GetGroup(ctx context.Context, id int64) (*model.Group, error) {
	var g model.Group
	err := m.col(g.TableName()).FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if err != nil {
		return nil, wrapFindErr(err, "get group")
	}
	return &g, nil
}

func (m *Mongo) GetChannel(ctx context.Context, id int64) (*model.Channel, error) {
	var ch model.Channel
	err := m.col(ch.TableName()).FindOne(ctx, bson.M{"_id": id}).Decode(&ch)
	if err != nil {
		return nil, wrapFindErr(err, "get channel")
	}
	return &ch, nil
}

// CreateMessage inserts the record in `sending` state, then promotes it to
// `sent` so the returned record is what both sender and recipients see.
func (m *Mongo) CreateMessage(ctx context.Context, p CreateMessageParams) (*model.Message, error) {
	now := time.Now()
	msg := &model.Message{
		ID:             ids.Generate(),
		SenderID:       p.SenderID,
		ConversationID: p.ConversationID,
		GroupID:        p.GroupID,
		ChannelID:      p.ChannelID,
		Content:        p.Content,
		Type:           p.Type,
		ReplyToID:      p.ReplyToID,
		Status:         model.MessageStatusSending,
		SentAt:         now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if msg.Type == "" {
		msg.Type = model.MessageTypeText
	}
	col := m.col(msg.TableName())
	if _, err := col.InsertOne(ctx, msg); err != nil {
		return nil, errors.Wrap(err, "insert message")
	}
	_, err := col.UpdateOne(ctx, bson.M{"_id": msg.ID},
		bson.M{"$set": bson.M{"status": model.MessageStatusSent, "updated_at": time.Now()}})
	if err != nil {
		return nil, errors.Wrap(err, "promote message to sent")
	}
	msg.Status = model.MessageStatusSent
	return msg, nil
}

func (m *Mongo) UpdateMessageStatus(ctx context.Context, id int64, status string) (*model.Message, error) {
	now := time.Now()
	set := bson.M{"status": status, "updated_at": now}
	switch status {
	case model.MessageStatusDelivered:
		set["delivered_at"] = now
	case model.MessageStatusRead:
		set["read_at"] = now
	}
	var msg model.Message
	err := m.col(msg.TableName()).FindOneAndUpdate(ctx,
		bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&msg)
	if err != nil {
		return nil, wrapFindErr(err, "update message status")
	}
	return &msg, nil
}

func (m *Mongo) CreateCall(ctx context.Context, p CreateCallParams) (*model.Call, error) {
	now := time.Now()
	call := &model.Call{
		ID:             ids.Generate(),
		InitiatorID:    p.InitiatorID,
		ConversationID: p.ConversationID,
		GroupID:        p.GroupID,
		Type:           p.Type,
		Status:         model.CallStatusInitiated,
		ParticipantIDs: p.ParticipantIDs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if call.Type == "" {
		call.Type = model.CallTypeAudio
	}
	if _, err := m.col(call.TableName()).InsertOne(ctx, call); err != nil {
		return nil, errors.Wrap(err, "insert call")
	}
	return call, nil
}

func (m *Mongo) GetCall(ctx context.Context, id int64) (*model.Call, error) {
	var c model.Call
	err := m.col(c.TableName()).FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		return nil, wrapFindErr(err, "get call")
	}
	return &c, nil
}

func (m *Mongo) UpdateCallStatus(ctx context.Context, id int64, status string) (*model.Call, error) {
	now := time.Now()
	set := bson.M{"status": status, "updated_at": now}
	switch status {
	case model.CallStatusOngoing:
		set["started_at"] = now
	case model.CallStatusEnded, model.CallStatusMissed, model.CallStatusRejected:
		set["ended_at"] = now
	}
	var c model.Call
	err := m.col(c.TableName()).FindOneAndUpdate(ctx,
		bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return nil, wrapFindErr(err, "update call status")
	}
	return &c, nil
}

func (m *Mongo) AddCallParticipant(ctx context.Context, callID, userID int64) error {
	_, err := m.col(model.Call{}.TableName()).UpdateOne(ctx,
		bson.M{"_id": callID},
		bson.M{"$addToSet": bson.M{"participant_ids": userID}, "$set": bson.M{"updated_at": time.Now()}})
	return errors.Wrap(err, "add call participant")
}

func (m *Mongo) GetActiveCallForUser(ctx context.Context, userID int64) (*model.Call, error) {
	var c model.Call
	err := m.col(c.TableName()).FindOne(ctx, bson.M{
		"participant_ids": userID,
		"status":          bson.M{"$in": []string{model.CallStatusInitiated, model.CallStatusOngoing}},
	}, options.FindOne().SetSort(bson.M{"created_at": -1})).Decode(&c)
	if err != nil {
		return nil, wrapFindErr(err, "get active call")
	}
	return &c, nil
}
