package chat

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"PRelay/global"
	"PRelay/logger"
	"PRelay/module/chat/store"
	online "PRelay/service/storage"
	"PRelay/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server owns the websocket side of the relay: one read loop per
// connection, a shared registry, and the background liveness sweep.
type Server struct {
	cfg      *global.AppConfig
	reg      *ConnManager
	store    store.Store
	presence *Presence
	calls    *CallCoordinator
	online   *online.Online

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewServer(cfg *global.AppConfig, st store.Store, idx *online.Online) *Server {
	reg := NewConnManager()
	return &Server{
		cfg:      cfg,
		reg:      reg,
		store:    st,
		presence: newPresence(reg, st, idx),
		calls:    newCallCoordinator(reg, st, cfg.RingTimeout()),
		online:   idx,
		stopCh:   make(chan struct{}),
	}
}

func (s *Server) Registry() *ConnManager { return s.reg }

// Start launches the liveness monitor.
func (s *Server) Start() {
	go s.monitorLoop()
}

func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.calls.Stop()
		s.reg.Close()
	})
}

// HandleWS upgrades the request and runs the connection's read loop. The
// loop is the only reader; frames are dispatched in arrival order. On exit
// the disconnect path runs exactly once, whether the peer closed, a read
// failed, or the sweep evicted us concurrently.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[WS] upgrade error: %v", err)
		return
	}

	wc := newConn(ws)
	ws.SetReadLimit(1 << 20) // 1MB
	ws.SetPongHandler(func(string) error {
		wc.alive.Store(true)
		return nil
	})
	s.reg.Track(wc)
	go wc.writePump()
	logger.Infof("[WS] open conn=%s remote=%s", wc.ID, ws.RemoteAddr())

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed conn=%s err=%v", wc.ID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout conn=%s err=%v", wc.ID, rerr)
			} else {
				logger.Infof("[WS] read err conn=%s err=%v", wc.ID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[WS] bad frame conn=%s err=%v sample=%q", wc.ID, perr, sample)
			s.sendError(wc, errs.ErrMalformed)
			continue
		}
		s.dispatch(wc, frame)
	}

	s.disconnect(wc)
}

// disconnect is the single cleanup path for a connection: unbind (only if
// this connection is still the user's current one), offline presence, and
// transport teardown. Guarded so a peer close racing a sweep eviction runs
// it once.
func (s *Server) disconnect(wc *WsConn) {
	wc.cleanupOnce.Do(func() {
		uid := wc.UserID()
		wasCurrent := false
		if uid != 0 {
			wasCurrent = s.reg.UnbindConn(uid, wc)
		}
		s.reg.Untrack(wc)
		wc.terminate()
		if wasCurrent {
			ctx, cancel := context.WithTimeout(context.Background(), routeTimeout)
			defer cancel()
			s.presence.Offline(ctx, uid)
		}
		logger.Infof("[WS] closed conn=%s user=%d", wc.ID, uid)
	})
}

// monitorLoop is the liveness sweep: every interval, evict connections that
// did not answer the previous probe, then clear flags and probe again.
// One-strike: probes are cheap relative to the interval, so no retries.
func (s *Server) monitorLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep runs the in-memory probe pass, then hands the store and index work
// to a background goroutine. The probe loop itself never waits on I/O, so a
// slow store during a mass eviction cannot delay probing the remaining
// connections into a spurious strike.
func (s *Server) sweep() {
	evicted, renew := s.probe()
	if len(evicted) > 0 || len(renew) > 0 {
		go s.cleanup(evicted, renew)
	}
}

// probe is the I/O-free phase: terminate connections that missed the last
// probe, clear flags and ping the rest. Returns the terminated connections
// and the user ids whose index lease is due for renewal.
func (s *Server) probe() (evicted []*WsConn, renew []int64) {
	for _, wc := range s.reg.Snapshot() {
		if !wc.alive.Load() {
			logger.Infof("[WS] evict unresponsive conn=%s user=%d", wc.ID, wc.UserID())
			wc.terminate()
			evicted = append(evicted, wc)
			continue
		}
		wc.alive.Store(false)
		if err := wc.ping(); err != nil {
			logger.Infof("[WS] probe failed conn=%s err=%v", wc.ID, err)
			wc.terminate()
			evicted = append(evicted, wc)
			continue
		}
		if uid := wc.UserID(); uid != 0 {
			renew = append(renew, uid)
		}
	}
	return evicted, renew
}

// cleanup runs the durable side of a sweep: disconnect bookkeeping for the
// evicted connections and index lease renewal for the live ones. disconnect
// is cleanupOnce-guarded, so racing the evicted connection's own read-loop
// exit is fine.
func (s *Server) cleanup(evicted []*WsConn, renew []int64) {
	for _, wc := range evicted {
		s.disconnect(wc)
	}
	if s.online == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), routeTimeout)
	defer cancel()
	for _, uid := range renew {
		if err := s.online.Renew(ctx, uid); err != nil {
			logger.Warnf("[WS] index renew user=%d err=%v", uid, err)
		}
	}
}
