package chat

import (
	"testing"

	"PRelay/module/chat/model"
)

// twoUserFixture wires users 1 and 2 as mutual contacts sharing
// conversation 42.
func twoUserFixture() *memStore {
	st := newMemStore()
	st.users[1] = &model.User{ID: 1, Email: "a@x.io", Username: "a"}
	st.users[2] = &model.User{ID: 2, Email: "b@x.io", Username: "b"}
	st.contacts[1] = []model.Contact{{ID: 10, UserID: 1, ContactID: 2}}
	st.contacts[2] = []model.Contact{{ID: 11, UserID: 2, ContactID: 1}}
	st.convs[42] = &model.Conversation{ID: 42, ParticipantIDs: []int64{1, 2}}
	return st
}

func TestAuthBindsAndBroadcastsPresence(t *testing.T) {
	st := twoUserFixture()
	srv := newTestServer(t, st)

	b := bind(srv, 2) // contact already online

	a := newTestConn()
	srv.reg.Track(a)
	srv.dispatch(a, &Frame{Type: FrameAuth, Payload: map[string]any{"token": token(t, 1)}})

	if !a.Authorized() || a.UserID() != 1 {
		t.Fatalf("auth did not bind: user=%d", a.UserID())
	}
	if got, ok := srv.reg.Lookup(1); !ok || got != a {
		t.Fatal("registry does not route to the authenticated connection")
	}

	f := recv(t, b)
	if f.Type != FramePresence {
		t.Fatalf("contact got %q, want presence", f.Type)
	}
	if num(t, f.Payload, "userId") != 1 || f.Payload["status"] != model.UserStatusOnline {
		t.Fatalf("presence payload = %v", f.Payload)
	}
	mustEmpty(t, a, "authenticating conn")

	found := false
	for _, s := range st.statuses() {
		if s == statusEntry(1, model.UserStatusOnline) {
			found = true
		}
	}
	if !found {
		t.Fatal("durable status not set to online")
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	srv := newTestServer(t, twoUserFixture())
	a := newTestConn()
	srv.reg.Track(a)

	srv.dispatch(a, &Frame{Type: FrameAuth, Payload: map[string]any{"token": "garbage"}})

	if a.Authorized() {
		t.Fatal("connection authorized with a bad token")
	}
	f := recv(t, a)
	if f.Type != FrameError {
		t.Fatalf("got %q, want error envelope", f.Type)
	}
}

func TestUnauthenticatedFramesRejected(t *testing.T) {
	srv := newTestServer(t, twoUserFixture())
	a := newTestConn()
	srv.reg.Track(a)

	srv.dispatch(a, &Frame{Type: FrameMessage, Payload: map[string]any{
		"content": "hi", "conversationId": 42,
	}})

	f := recv(t, a)
	if f.Type != FrameError {
		t.Fatalf("got %q, want error envelope", f.Type)
	}
	if f.Payload["message"] != "not authenticated" {
		t.Fatalf("error message = %v", f.Payload["message"])
	}
}

func TestMessageAckAndFanOut(t *testing.T) {
	st := twoUserFixture()
	srv := newTestServer(t, st)
	a := bind(srv, 1)
	b := bind(srv, 2)

	srv.dispatch(a, &Frame{Type: FrameMessage, Payload: map[string]any{
		"tempId": "abc", "content": "hello", "conversationId": 42,
	}})

	ack := recv(t, a)
	if ack.Type != FrameMessage {
		t.Fatalf("sender got %q", ack.Type)
	}
	if ack.Payload["tempId"] != "abc" {
		t.Fatalf("ack lost tempId: %v", ack.Payload)
	}
	rec := ack.Payload["message"].(map[string]any)
	if rec["status"] != model.MessageStatusSent || rec["content"] != "hello" {
		t.Fatalf("ack record = %v", rec)
	}

	out := recv(t, b)
	if out.Type != FrameMessage {
		t.Fatalf("recipient got %q", out.Type)
	}
	if _, ok := out.Payload["tempId"]; ok {
		t.Fatalf("fan-out leaked tempId: %v", out.Payload)
	}
	fanRec := out.Payload["message"].(map[string]any)
	if fanRec["id"] != rec["id"] {
		t.Fatal("recipient saw a different record than the ack")
	}
	mustEmpty(t, a, "sender")
	mustEmpty(t, b, "recipient")
}

func TestMessageOfflineRecipient(t *testing.T) {
	srv := newTestServer(t, twoUserFixture())
	a := bind(srv, 1) // user 2 never connects

	srv.dispatch(a, &Frame{Type: FrameMessage, Payload: map[string]any{
		"tempId": "t1", "content": "anyone there", "conversationId": 42,
	}})

	ack := recv(t, a)
	if ack.Type != FrameMessage || ack.Payload["tempId"] != "t1" {
		t.Fatalf("sender confirmation wrong: %+v", ack)
	}
	mustEmpty(t, a, "sender")
}

func TestMessageWithoutTarget(t *testing.T) {
	srv := newTestServer(t, twoUserFixture())
	a := bind(srv, 1)

	srv.dispatch(a, &Frame{Type: FrameMessage, Payload: map[string]any{
		"tempId": "t2", "content": "lost",
	}})

	f := recv(t, a)
	if f.Type != FrameError {
		t.Fatalf("got %q, want error envelope", f.Type)
	}
	if f.Payload["message"] != "message has no target context" {
		t.Fatalf("error message = %v", f.Payload["message"])
	}
}

func TestMessageStoreFailureDropsEvent(t *testing.T) {
	st := twoUserFixture()
	st.failCreateMessage = true
	srv := newTestServer(t, st)
	a := bind(srv, 1)
	b := bind(srv, 2)

	srv.dispatch(a, &Frame{Type: FrameMessage, Payload: map[string]any{
		"tempId": "t3", "content": "doomed", "conversationId": 42,
	}})

	f := recv(t, a)
	if f.Type != FrameError {
		t.Fatalf("got %q, want error envelope", f.Type)
	}
	mustEmpty(t, b, "recipient")
}

func TestStatusUpdateNotifiesSender(t *testing.T) {
	st := twoUserFixture()
	srv := newTestServer(t, st)
	a := bind(srv, 1)
	b := bind(srv, 2)

	srv.dispatch(a, &Frame{Type: FrameMessage, Payload: map[string]any{
		"content": "read me", "conversationId": 42,
	}})
	ack := recv(t, a)
	msgID := num(t, ack.Payload["message"].(map[string]any), "id")
	recv(t, b) // fan-out copy

	srv.dispatch(b, &Frame{Type: FrameMessageStatus, Payload: map[string]any{
		"messageId": int64(msgID), "status": "read",
	}})

	f := recv(t, a)
	if f.Type != FrameMessageStatus {
		t.Fatalf("sender got %q", f.Type)
	}
	if num(t, f.Payload, "messageId") != msgID || f.Payload["status"] != model.MessageStatusRead {
		t.Fatalf("status payload = %v", f.Payload)
	}
	mustEmpty(t, b, "reporter")
}

func TestStatusUpdateBySenderNotEchoed(t *testing.T) {
	st := twoUserFixture()
	srv := newTestServer(t, st)
	a := bind(srv, 1)

	srv.dispatch(a, &Frame{Type: FrameMessage, Payload: map[string]any{
		"content": "self", "conversationId": 42,
	}})
	ack := recv(t, a)
	msgID := num(t, ack.Payload["message"].(map[string]any), "id")

	srv.dispatch(a, &Frame{Type: FrameMessageStatus, Payload: map[string]any{
		"messageId": int64(msgID), "status": "delivered",
	}})

	mustEmpty(t, a, "sender reporting own message")
}

func TestStatusUpdateValidation(t *testing.T) {
	srv := newTestServer(t, twoUserFixture())
	a := bind(srv, 1)

	srv.dispatch(a, &Frame{Type: FrameMessageStatus, Payload: map[string]any{
		"messageId": 1, "status": "vanished",
	}})
	if f := recv(t, a); f.Type != FrameError {
		t.Fatalf("got %q, want error for bad status value", f.Type)
	}

	srv.dispatch(a, &Frame{Type: FrameMessageStatus, Payload: map[string]any{
		"messageId": 999999, "status": "read",
	}})
	if f := recv(t, a); f.Type != FrameError {
		t.Fatalf("got %q, want error for unknown message", f.Type)
	}
}

func TestTypingRelay(t *testing.T) {
	srv := newTestServer(t, twoUserFixture())
	a := bind(srv, 1)
	b := bind(srv, 2)

	srv.dispatch(a, &Frame{Type: FrameTyping, Payload: map[string]any{
		"conversationId": 42, "isTyping": true,
	}})

	f := recv(t, b)
	if f.Type != FrameTyping {
		t.Fatalf("got %q", f.Type)
	}
	if num(t, f.Payload, "userId") != 1 || f.Payload["isTyping"] != true {
		t.Fatalf("typing payload = %v", f.Payload)
	}
	mustEmpty(t, a, "typist")
}

func TestUnknownFrameType(t *testing.T) {
	srv := newTestServer(t, twoUserFixture())
	a := bind(srv, 1)

	srv.dispatch(a, &Frame{Type: "subscribe", Payload: map[string]any{}})

	f := recv(t, a)
	if f.Type != FrameError {
		t.Fatalf("got %q, want error envelope", f.Type)
	}
}

func TestNilPayloadRejected(t *testing.T) {
	srv := newTestServer(t, twoUserFixture())
	a := bind(srv, 1)

	srv.dispatch(a, &Frame{Type: FrameMessage, Payload: nil})

	f := recv(t, a)
	if f.Type != FrameError {
		t.Fatalf("got %q, want error envelope", f.Type)
	}
}
