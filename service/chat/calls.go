package chat

import (
	"context"
	"strconv"
	"sync"
	"time"

	"PRelay/logger"
	"PRelay/module/chat/model"
	"PRelay/module/chat/store"
	"PRelay/tools/errs"

	"github.com/pkg/errors"
)

// CallCoordinator drives the call session state machine:
//
//	initiated -(accept)-> ongoing -(hangup)-> ended
//	initiated -(reject)-> rejected
//	initiated -(ring timeout)-> missed
//
// initiate resolves recipients from the conversation/group or an explicit
// recipient id; every later action fans out over the call's own participant
// record; membership is not re-derived once the session exists. A call
// nobody answers within ringTimeout is marked missed by a local timer.
type CallCoordinator struct {
	reg         *ConnManager
	store       store.Store
	ringTimeout time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer
}

func newCallCoordinator(reg *ConnManager, st store.Store, ringTimeout time.Duration) *CallCoordinator {
	return &CallCoordinator{
		reg:         reg,
		store:       st,
		ringTimeout: ringTimeout,
		timers:      make(map[int64]*time.Timer),
	}
}

// Signal handles one call action from an authenticated connection.
func (cc *CallCoordinator) Signal(ctx context.Context, c *WsConn, p *CallPayload) error {
	switch p.Action {
	case CallActionInitiate:
		return cc.initiate(ctx, c, p)
	case CallActionAccept:
		return cc.transition(ctx, c, p, model.CallStatusOngoing)
	case CallActionReject:
		return cc.transition(ctx, c, p, model.CallStatusRejected)
	case CallActionHangup:
		return cc.transition(ctx, c, p, model.CallStatusEnded)
	default:
		return errs.ErrArgs.WithDetail("unknown call action " + p.Action)
	}
}

func (cc *CallCoordinator) initiate(ctx context.Context, c *WsConn, p *CallPayload) error {
	caller := c.UserID()

	// one active session per user
	if active, err := cc.store.GetActiveCallForUser(ctx, caller); err == nil {
		return errs.ErrCallState.WithDetail("already in call " + strconv.FormatInt(active.ID, 10))
	} else if !errors.Is(err, store.ErrNotFound) {
		return errs.ErrStorage.WithDetail(err.Error())
	}

	var recipients []int64
	switch {
	case p.ConversationID != 0:
		conv, err := cc.store.GetConversation(ctx, p.ConversationID)
		if err != nil {
			return errs.ErrStorage.WithDetail(err.Error())
		}
		recipients = exclude(conv.ParticipantIDs, caller)
	case p.GroupID != 0:
		g, err := cc.store.GetGroup(ctx, p.GroupID)
		if err != nil {
			return errs.ErrStorage.WithDetail(err.Error())
		}
		recipients = exclude(g.MemberIDs, caller)
	case p.RecipientID != 0:
		recipients = []int64{p.RecipientID}
	default:
		return errs.ErrNoTarget
	}

	call, err := cc.store.CreateCall(ctx, store.CreateCallParams{
		InitiatorID:    caller,
		ConversationID: p.ConversationID,
		GroupID:        p.GroupID,
		Type:           p.CallType,
		ParticipantIDs: append([]int64{caller}, recipients...),
	})
	if err != nil {
		return errs.ErrStorage.WithDetail(err.Error())
	}

	// ring the live recipients; offline ones just never see it, the session
	// still exists and will expire to missed
	if data, encErr := Encode(BuildCallIncoming(call)); encErr == nil {
		for _, uid := range recipients {
			cc.reg.SendRaw(uid, data)
		}
	}

	// ack to the caller's own connection only
	if data, encErr := Encode(BuildCallInitiated(call.ID)); encErr == nil {
		c.Enqueue(data)
	}

	cc.armRingTimer(call.ID)
	return nil
}

func (cc *CallCoordinator) transition(ctx context.Context, c *WsConn, p *CallPayload, status string) error {
	if p.CallID == 0 {
		return errs.ErrArgs.WithDetail("callId required")
	}
	actor := c.UserID()

	call, err := cc.store.GetCall(ctx, p.CallID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.ErrCallNotFound
		}
		return errs.ErrStorage.WithDetail(err.Error())
	}
	if call.Terminal() {
		return errs.ErrCallState.WithDetail("call already " + call.Status)
	}
	if status == model.CallStatusOngoing && call.Status != model.CallStatusInitiated {
		return errs.ErrCallState.WithDetail("accept requires initiated, call is " + call.Status)
	}

	// an acceptor reached through membership that changed after initiate
	// joins the participant record here
	if status == model.CallStatusOngoing && !contains(call.ParticipantIDs, actor) {
		if err := cc.store.AddCallParticipant(ctx, call.ID, actor); err != nil {
			return errs.ErrStorage.WithDetail(err.Error())
		}
		call.ParticipantIDs = append(call.ParticipantIDs, actor)
	}

	call, err = cc.store.UpdateCallStatus(ctx, call.ID, status)
	if err != nil {
		return errs.ErrStorage.WithDetail(err.Error())
	}
	cc.cancelRingTimer(call.ID)

	if data, encErr := Encode(BuildCallAction(p.Action, call.ID, actor)); encErr == nil {
		for _, uid := range call.ParticipantIDs {
			if uid != actor {
				cc.reg.SendRaw(uid, data)
			}
		}
	}
	return nil
}

func (cc *CallCoordinator) armRingTimer(callID int64) {
	if cc.ringTimeout <= 0 {
		return
	}
	cc.mu.Lock()
	cc.timers[callID] = time.AfterFunc(cc.ringTimeout, func() { cc.expire(callID) })
	cc.mu.Unlock()
}

func (cc *CallCoordinator) cancelRingTimer(callID int64) {
	cc.mu.Lock()
	if t, ok := cc.timers[callID]; ok {
		t.Stop()
		delete(cc.timers, callID)
	}
	cc.mu.Unlock()
}

// expire marks a still-unanswered call missed and tells the participants.
// Racing an accept is fine: the status re-check makes the late path a no-op.
func (cc *CallCoordinator) expire(callID int64) {
	cc.cancelRingTimer(callID)

	ctx, cancel := context.WithTimeout(context.Background(), routeTimeout)
	defer cancel()

	call, err := cc.store.GetCall(ctx, callID)
	if err != nil {
		logger.Warnf("[call] expire lookup call=%d err=%v", callID, err)
		return
	}
	if call.Status != model.CallStatusInitiated {
		return
	}
	call, err = cc.store.UpdateCallStatus(ctx, callID, model.CallStatusMissed)
	if err != nil {
		logger.Errorf("[call] expire update call=%d err=%v", callID, err)
		return
	}
	logger.Infof("[call] ring timeout, call=%d missed", callID)
	if data, encErr := Encode(BuildCallAction(CallActionMissed, call.ID, 0)); encErr == nil {
		for _, uid := range call.ParticipantIDs {
			cc.reg.SendRaw(uid, data)
		}
	}
}

// Stop cancels all pending ring timers; used on shutdown.
func (cc *CallCoordinator) Stop() {
	cc.mu.Lock()
	for id, t := range cc.timers {
		t.Stop()
		delete(cc.timers, id)
	}
	cc.mu.Unlock()
}

func contains(ids []int64, uid int64) bool {
	for _, id := range ids {
		if id == uid {
			return true
		}
	}
	return false
}

func exclude(ids []int64, uid int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != uid {
			out = append(out, id)
		}
	}
	return out
}
