package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"PRelay/global"
	"PRelay/module/chat/model"
	"PRelay/module/chat/store"
	"PRelay/tools/security"
)

// memStore is an in-memory Store used to drive the router, presence and
// call coordinator without Mongo.
type memStore struct {
	mu       sync.Mutex
	users    map[int64]*model.User
	contacts map[int64][]model.Contact
	convs    map[int64]*model.Conversation
	groups   map[int64]*model.Group
	channels map[int64]*model.Channel
	messages map[int64]*model.Message
	calls    map[int64]*model.Call

	statusLog []string // "<uid> <status>" in call order
	nextID    int64

	failCreateMessage bool
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*model.User),
		contacts: make(map[int64][]model.Contact),
		convs:    make(map[int64]*model.Conversation),
		groups:   make(map[int64]*model.Group),
		channels: make(map[int64]*model.Channel),
		messages: make(map[int64]*model.Message),
		calls:    make(map[int64]*model.Call),
		nextID:   1000,
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) SetUserStatus(_ context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Status = status
	}
	s.statusLog = append(s.statusLog, statusEntry(id, status))
	return nil
}

func (s *memStore) GetContacts(_ context.Context, userID int64) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Contact(nil), s.contacts[userID]...), nil
}

func (s *memStore) GetConversation(_ context.Context, id int64) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (s *memStore) GetGroup(_ context.Context, id int64) (*model.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (s *memStore) GetChannel(_ context.Context, id int64) (*model.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[id]; ok {
		cp := *ch
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (s *memStore) CreateMessage(_ context.Context, p store.CreateMessageParams) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateMessage {
		return nil, store.ErrNotFound
	}
	msg := &model.Message{
		ID:             s.id(),
		SenderID:       p.SenderID,
		ConversationID: p.ConversationID,
		GroupID:        p.GroupID,
		ChannelID:      p.ChannelID,
		Content:        p.Content,
		Type:           p.Type,
		ReplyToID:      p.ReplyToID,
		Status:         model.MessageStatusSent,
	}
	if msg.Type == "" {
		msg.Type = model.MessageTypeText
	}
	cp := *msg
	s.messages[msg.ID] = &cp
	return msg, nil
}

func (s *memStore) UpdateMessageStatus(_ context.Context, id int64, status string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m.Status = status
	cp := *m
	return &cp, nil
}

func (s *memStore) CreateCall(_ context.Context, p store.CreateCallParams) (*model.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := &model.Call{
		ID:             s.id(),
		InitiatorID:    p.InitiatorID,
		ConversationID: p.ConversationID,
		GroupID:        p.GroupID,
		Type:           p.Type,
		Status:         model.CallStatusInitiated,
		ParticipantIDs: append([]int64(nil), p.ParticipantIDs...),
	}
	if call.Type == "" {
		call.Type = model.CallTypeAudio
	}
	cp := *call
	s.calls[call.ID] = &cp
	return call, nil
}

func (s *memStore) GetCall(_ context.Context, id int64) (*model.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.calls[id]; ok {
		cp := *c
		cp.ParticipantIDs = append([]int64(nil), c.ParticipantIDs...)
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (s *memStore) UpdateCallStatus(_ context.Context, id int64, status string) (*model.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.Status = status
	cp := *c
	cp.ParticipantIDs = append([]int64(nil), c.ParticipantIDs...)
	return &cp, nil
}

func (s *memStore) AddCallParticipant(_ context.Context, callID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[callID]
	if !ok {
		return store.ErrNotFound
	}
	for _, uid := range c.ParticipantIDs {
		if uid == userID {
			return nil
		}
	}
	c.ParticipantIDs = append(c.ParticipantIDs, userID)
	return nil
}

func (s *memStore) GetActiveCallForUser(_ context.Context, userID int64) (*model.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.Status != model.CallStatusInitiated && c.Status != model.CallStatusOngoing {
			continue
		}
		for _, uid := range c.ParticipantIDs {
			if uid == userID {
				cp := *c
				return &cp, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statusLog...)
}

func statusEntry(id int64, status string) string {
	b, _ := json.Marshal([]any{id, status})
	return string(b)
}

// ---- test fixtures ----

func testConfig() *global.AppConfig {
	return &global.AppConfig{
		JWTSecret:       "unit-test-secret",
		PingIntervalSec: 30,
		RingTimeoutSec:  0, // timers driven manually via expire()
	}
}

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	srv := NewServer(testConfig(), st, nil)
	t.Cleanup(srv.Stop)
	return srv
}

// newTestConn builds a connection with no transport: writePump is never
// started, so queued frames stay in c.send for inspection.
func newTestConn() *WsConn {
	return newConn(nil)
}

// bind registers and authenticates a test connection.
func bind(srv *Server, uid int64) *WsConn {
	c := newTestConn()
	srv.reg.Track(c)
	srv.reg.Bind(uid, c)
	return c
}

func token(t *testing.T, uid int64) string {
	t.Helper()
	tok, _, err := security.Generate(security.DefaultOptions([]byte(testConfig().JWTSecret)), uid)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

type outFrame struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// recv pops the next queued frame, failing the test when none is pending.
func recv(t *testing.T, c *WsConn) *outFrame {
	t.Helper()
	select {
	case data := <-c.send:
		f := &outFrame{}
		if err := json.Unmarshal(data, f); err != nil {
			t.Fatalf("decode frame %q: %v", data, err)
		}
		return f
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

func mustEmpty(t *testing.T, c *WsConn, who string) {
	t.Helper()
	if n := len(c.send); n != 0 {
		data := <-c.send
		t.Fatalf("%s: expected no frames, found %d, first=%s", who, n, data)
	}
}

func num(t *testing.T, payload map[string]any, key string) float64 {
	t.Helper()
	v, ok := payload[key].(float64)
	if !ok {
		t.Fatalf("payload[%q] = %v (%T), want number", key, payload[key], payload[key])
	}
	return v
}
