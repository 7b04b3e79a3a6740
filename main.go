package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"PRelay/global"
	"PRelay/logger"
	"PRelay/middleware"
	"PRelay/module/chat/store"
	"PRelay/module/user"
	"PRelay/service/chat"
	"PRelay/service/storage"
	"PRelay/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func main() {
	cfgPath := os.Getenv("RELAY_CONFIG")
	cfg, err := global.Load(cfgPath)
	if err != nil {
		logger.Errorf("[boot] load config: %v", err)
		os.Exit(1)
	}
	ids.SetNodeID(int64(cfg.NodeID))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	cancel()
	if err != nil {
		logger.Errorf("[boot] mongo: %v", err)
		os.Exit(1)
	}

	var idx *storage.Online
	if cfg.RedisAddr != "" {
		gatewayID := "relay-" + uuid.NewString()
		octx, ocancel := context.WithTimeout(context.Background(), 5*time.Second)
		idx, err = storage.NewOnline(octx, storage.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			GatewayID: gatewayID,
		})
		ocancel()
		if err != nil {
			logger.Errorf("[boot] redis: %v", err)
			os.Exit(1)
		}
		logger.Infof("[boot] presence index on %s gateway=%s", cfg.RedisAddr, gatewayID)
	} else {
		logger.Warn("[boot] no redis addr configured, presence index disabled")
	}

	srv := chat.NewServer(cfg, st, idx)
	srv.Start()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Origin())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": srv.Registry().Count()})
	})
	r.POST("/api/login", user.HandlerLogin(cfg, st))
	r.GET("/ws", srv.HandleWS)
	if idx != nil {
		r.GET("/api/presence/:id", func(c *gin.Context) {
			uid, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"message": "bad user id"})
				return
			}
			gw, on, err := idx.Lookup(c.Request.Context(), uid)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": uid, "online": on, "gateway": gw})
		})
	}

	httpSrv := &http.Server{Addr: ":" + strconv.Itoa(cfg.Port), Handler: r}
	go func() {
		logger.Infof("[boot] relay listening on :%d", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("[boot] http server: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("[boot] shutting down")

	srv.Stop()
	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	_ = httpSrv.Shutdown(sctx)
	if idx != nil {
		_ = idx.Close()
	}
	_ = st.Close(sctx)
	logger.Sync()
}
