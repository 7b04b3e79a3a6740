package chat

import (
	"context"
	"time"

	"PRelay/logger"
	"PRelay/module/chat/store"
	"PRelay/tools/decode"
	"PRelay/tools/errs"
	"PRelay/tools/security"

	"github.com/pkg/errors"
)

const routeTimeout = 5 * time.Second

// dispatch routes one inbound frame. Any error or panic while handling is
// surfaced as an error envelope to the originating connection; the
// connection stays open for further frames. Frames from a single connection
// are handled in strict arrival order (the read loop calls this serially);
// there is no ordering guarantee across connections; consumers order by the
// durable record timestamps.
func (s *Server) dispatch(c *WsConn, f *Frame) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[router] panic handling %s conn=%s: %v", f.Type, c.ID, r)
			s.sendError(c, errs.ErrInternal)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), routeTimeout)
	defer cancel()

	if f.Type == FrameAuth {
		if err := s.handleAuth(ctx, c, f); err != nil {
			s.replyError(c, f.Type, err)
		}
		return
	}

	// everything past this point requires a bound identity
	if !c.Authorized() {
		s.sendError(c, errs.ErrNotAuthorized)
		return
	}

	var err error
	switch f.Type {
	case FrameMessage:
		err = s.handleMessage(ctx, c, f)
	case FrameMessageStatus:
		err = s.handleStatus(ctx, c, f)
	case FrameTyping:
		err = s.handleTyping(ctx, c, f)
	case FrameCall:
		err = s.handleCall(ctx, c, f)
	default:
		err = errs.ErrArgs.WithDetail("unknown frame type " + f.Type)
	}
	if err != nil {
		s.replyError(c, f.Type, err)
	}
}

func (s *Server) replyError(c *WsConn, frameType string, err error) {
	logger.Warnf("[router] %s conn=%s user=%d err=%v", frameType, c.ID, c.UserID(), err)
	var ce *errs.CodeError
	if errors.As(err, &ce) {
		s.sendError(c, ce)
		return
	}
	s.sendError(c, errs.ErrInternal)
}

func (s *Server) sendError(c *WsConn, ce *errs.CodeError) {
	if data, err := Encode(BuildError(ce.Msg)); err == nil {
		c.Enqueue(data)
	}
}

// handleAuth verifies the token, binds the connection and fires the online
// presence path. A failed verify leaves the connection open, unauthenticated.
func (s *Server) handleAuth(ctx context.Context, c *WsConn, f *Frame) error {
	p, err := decode.Struct[AuthPayload](f.Payload)
	if err != nil {
		return errs.ErrArgs.WithDetail(err.Error())
	}
	uid, err := security.Verify(security.DefaultOptions([]byte(s.cfg.JWTSecret)), p.Token)
	if err != nil {
		return errs.ErrTokenInvalid
	}
	s.reg.Bind(uid, c)
	logger.Infof("[WS] bound conn=%s user=%d", c.ID, uid)
	s.presence.Online(ctx, uid)
	return nil
}

// handleMessage persists the message, confirms to the sender with the echoed
// tempId, and fans the record out to the live participants of the target
// context. Offline recipients receive nothing; delivery here is at-most-once.
func (s *Server) handleMessage(ctx context.Context, c *WsConn, f *Frame) error {
	p, err := decode.Struct[MessagePayload](f.Payload)
	if err != nil {
		return errs.ErrArgs.WithDetail(err.Error())
	}
	if p.ConversationID == 0 && p.GroupID == 0 && p.ChannelID == 0 {
		return errs.ErrNoTarget
	}
	sender := c.UserID()

	rec, err := s.store.CreateMessage(ctx, store.CreateMessageParams{
		SenderID:       sender,
		ConversationID: p.ConversationID,
		GroupID:        p.GroupID,
		ChannelID:      p.ChannelID,
		Content:        p.Content,
		Type:           p.Type,
		ReplyToID:      p.ReplyToID,
	})
	if err != nil {
		return errs.ErrStorage.WithDetail(err.Error())
	}

	// confirmation goes to the originating connection only, not via the
	// user mapping: a racing rebind must not steal the tempId echo
	if data, encErr := Encode(BuildMessageAck(rec, p.TempID)); encErr == nil {
		c.Enqueue(data)
	}

	recipients, err := s.resolveRecipients(ctx, p.ConversationID, p.GroupID, p.ChannelID, sender)
	if err != nil {
		return errs.ErrStorage.WithDetail(err.Error())
	}
	if len(recipients) == 0 {
		return nil
	}
	data, err := Encode(BuildMessage(rec))
	if err != nil {
		return errs.ErrInternal.WithDetail(err.Error())
	}
	for _, uid := range recipients {
		s.reg.SendRaw(uid, data)
	}
	return nil
}

// handleStatus persists a delivered/read transition and notifies the
// original sender if live. Transitions are accepted as reported: a read
// arriving before delivered is stored as-is (clients report what they saw;
// ordering across connections is not guaranteed anyway).
func (s *Server) handleStatus(ctx context.Context, c *WsConn, f *Frame) error {
	p, err := decode.Struct[StatusPayload](f.Payload)
	if err != nil {
		return errs.ErrArgs.WithDetail(err.Error())
	}
	if p.Status != "delivered" && p.Status != "read" {
		return errs.ErrArgs.WithDetail("status must be delivered or read")
	}
	rec, err := s.store.UpdateMessageStatus(ctx, p.MessageID, p.Status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.ErrArgs.WithDetail("unknown message")
		}
		return errs.ErrStorage.WithDetail(err.Error())
	}
	if rec.SenderID != c.UserID() {
		s.reg.Send(rec.SenderID, BuildStatus(rec))
	}
	return nil
}

// handleTyping relays an ephemeral typing flag to the target participants.
// Nothing durable, no confirmation to the sender.
func (s *Server) handleTyping(ctx context.Context, c *WsConn, f *Frame) error {
	p, err := decode.Struct[TypingPayload](f.Payload)
	if err != nil {
		return errs.ErrArgs.WithDetail(err.Error())
	}
	sender := c.UserID()
	recipients, err := s.resolveRecipients(ctx, p.ConversationID, p.GroupID, 0, sender)
	if err != nil {
		return errs.ErrStorage.WithDetail(err.Error())
	}
	if len(recipients) == 0 {
		return nil
	}
	data, err := Encode(BuildTyping(p, sender))
	if err != nil {
		return errs.ErrInternal.WithDetail(err.Error())
	}
	for _, uid := range recipients {
		s.reg.SendRaw(uid, data)
	}
	return nil
}

func (s *Server) handleCall(ctx context.Context, c *WsConn, f *Frame) error {
	p, err := decode.Struct[CallPayload](f.Payload)
	if err != nil {
		return errs.ErrArgs.WithDetail(err.Error())
	}
	return s.calls.Signal(ctx, c, p)
}

// resolveRecipients computes the participant set of the target context,
// minus the sender, fresh from the store. The context ids are trusted client
// intent; conversation wins when several are set. A missing context resolves
// to no recipients rather than an error, matching how stale clients behave.
func (s *Server) resolveRecipients(ctx context.Context, convID, groupID, chanID, exclude int64) ([]int64, error) {
	var members []int64
	switch {
	case convID != 0:
		conv, err := s.store.GetConversation(ctx, convID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		members = conv.ParticipantIDs
	case groupID != 0:
		g, err := s.store.GetGroup(ctx, groupID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		members = g.MemberIDs
	case chanID != 0:
		ch, err := s.store.GetChannel(ctx, chanID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		members = ch.SubscriberIDs
	default:
		return nil, nil
	}
	out := make([]int64, 0, len(members))
	for _, uid := range members {
		if uid != exclude {
			out = append(out, uid)
		}
	}
	return out, nil
}
