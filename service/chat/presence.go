package chat

import (
	"context"

	"PRelay/logger"
	"PRelay/module/chat/model"
	"PRelay/module/chat/store"
	online "PRelay/service/storage"
)

// Presence updates durable user status and notifies the user's contact
// graph. Fan-out is O(contacts) and best-effort: contacts without a live
// connection are silently skipped. Failures here are logged, never surfaced
// to the peer; presence is maintenance, not a user action.
type Presence struct {
	reg    *ConnManager
	store  store.Store
	online *online.Online // nil when the Redis index is disabled
}

func newPresence(reg *ConnManager, st store.Store, idx *online.Online) *Presence {
	return &Presence{reg: reg, store: st, online: idx}
}

// Online fires after a successful auth bind.
func (p *Presence) Online(ctx context.Context, userID int64) {
	if err := p.store.SetUserStatus(ctx, userID, model.UserStatusOnline); err != nil {
		logger.Errorf("[presence] set online user=%d err=%v", userID, err)
	}
	if p.online != nil {
		if err := p.online.Up(ctx, userID); err != nil {
			logger.Warnf("[presence] index up user=%d err=%v", userID, err)
		}
	}
	p.broadcast(ctx, userID, model.UserStatusOnline)
}

// Offline fires on connection close or liveness eviction; the caller
// guarantees it runs at most once per connection.
func (p *Presence) Offline(ctx context.Context, userID int64) {
	if err := p.store.SetUserStatus(ctx, userID, model.UserStatusOffline); err != nil {
		logger.Errorf("[presence] set offline user=%d err=%v", userID, err)
	}
	if p.online != nil {
		if err := p.online.Down(ctx, userID); err != nil {
			logger.Warnf("[presence] index down user=%d err=%v", userID, err)
		}
	}
	p.broadcast(ctx, userID, model.UserStatusOffline)
}

func (p *Presence) broadcast(ctx context.Context, userID int64, status string) {
	contacts, err := p.store.GetContacts(ctx, userID)
	if err != nil {
		logger.Errorf("[presence] get contacts user=%d err=%v", userID, err)
		return
	}
	if len(contacts) == 0 {
		return
	}
	data, err := Encode(BuildPresence(userID, status))
	if err != nil {
		return
	}
	for _, ct := range contacts {
		p.reg.SendRaw(ct.ContactID, data)
	}
}
