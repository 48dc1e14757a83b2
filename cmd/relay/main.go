// Package main provides the WebSocket relay server for noname rooms.
// It accepts client connections, tracks sessions and room ownership, and
// relays guest traffic to room owners.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/xiaoas/noname-server/internal/admin"
	"github.com/xiaoas/noname-server/internal/config"
	"github.com/xiaoas/noname-server/internal/frontend/websocket"
	"github.com/xiaoas/noname-server/internal/idgen"
	"github.com/xiaoas/noname-server/internal/observability"
	"github.com/xiaoas/noname-server/internal/relay"
	"github.com/xiaoas/noname-server/internal/server"
	"github.com/xiaoas/noname-server/internal/session"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file (empty for defaults and environment only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting noname relay",
		zap.String("websocket_addr", cfg.WebSocket.Addr()),
		zap.String("path", cfg.WebSocket.Path),
		zap.String("id_scheme", cfg.Relay.IDScheme),
	)

	ids, err := idgen.FromScheme(cfg.Relay.IDScheme)
	if err != nil {
		logger.Fatal("selecting id scheme", zap.Error(err))
	}

	// Build services
	sessions := session.NewRegistry()
	router := relay.NewRouter(sessions, logger)
	handler := relay.NewSessionHandler(sessions, router, ids, cfg.WebSocket.PingInterval, logger)
	acceptor := websocket.NewAcceptor(cfg.WebSocket, handler, logger)

	logStats := func(msg string) {
		logger.Info(msg, observability.StatsFields(sessions.Stats())...)
	}

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	if cfg.Admin.Enabled {
		adminServer := admin.NewServer(cfg.Admin, logger)
		lifecycle.Add("admin", adminServer)
	}

	if cfg.Relay.StatsInterval > 0 {
		lifecycle.Add("stats", server.NewTickerService(cfg.Relay.StatsInterval, func() {
			logStats("registry stats")
		}))
	}

	logger.Info("relay initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Bool("admin_enabled", cfg.Admin.Enabled),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logStats("registry stats at shutdown")
		logger.Fatal("server error", zap.Error(err))
	}
	logStats("registry stats at shutdown")
}
